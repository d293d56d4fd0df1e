package app

import (
	"errors"
	"io"
	"net/http"

	"RoverLink/internal/parser"
	"RoverLink/internal/router"
	"RoverLink/internal/util"
)

const maxControlBody = 4 << 10

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := parser.Encode(v)
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		a.log.WithError(err).Debug("failed to write response")
	}
}

// handleVehicles lists registered vehicle ids in registration order.
func (a *App) handleVehicles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ids := a.backend.Vehicles()
	if ids == nil {
		ids = []string{}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"vehicles": ids})
}

// handleControl injects a drive command into the router.
func (a *App) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer func() {
		if cerr := r.Body.Close(); cerr != nil {
			a.log.WithError(cerr).Debug("failed to close control body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxControlBody))
	if err != nil {
		http.Error(w, "failed to read control command", http.StatusBadRequest)
		return
	}
	c, err := parser.DecodeControl(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := a.backend.InjectControl(r.Context(), c)
	switch {
	case errors.Is(err, router.ErrNoVehicle):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	a.log.WithFields(util.Fields{"vehicle_id": id, "command": c.Command}).Info("control injected over HTTP")
	a.writeJSON(w, http.StatusAccepted, map[string]string{"vehicle_id": id, "command": c.Command})
}

// handleHealth reports router counters.
func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s := a.backend.Snapshot()
	if s.Status == "" {
		s.Status = "ok"
	}
	if s.Vehicles == nil {
		s.Vehicles = []string{}
	}
	a.writeJSON(w, http.StatusOK, s)
}
