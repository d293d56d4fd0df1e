// Package core contains the runtime and orchestration layer for RoverLink.
// It defines the BaseStation, Rover and System types that manage their
// lifecycle.
package core

import (
	"sync"

	"RoverLink/internal/model"
	"RoverLink/internal/util"
)

// System manages the lifecycle of the configured components. Either part may
// be absent; the simulation runs both in one process.
type System struct {
	cfg   *model.Config
	Base  *BaseStation
	Rover *Rover

	started   bool
	startLock sync.Mutex
}

// NewSystem loads the YAML configuration at cfgPath and constructs a System.
func NewSystem(cfgPath string) (*System, error) {
	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return NewSystemFromConfig(cfg)
}

// NewSystemFromConfig builds components from an already finalized config.
func NewSystemFromConfig(cfg *model.Config) (*System, error) {
	s := &System{cfg: cfg}
	if cfg.BaseStation != nil {
		b, err := NewBaseStation(*cfg.BaseStation)
		if err != nil {
			return nil, err
		}
		s.Base = b
	}
	if cfg.Vehicle != nil {
		r, err := NewRover(*cfg.Vehicle)
		if err != nil {
			if s.Base != nil {
				s.Base.Stop()
			}
			return nil, err
		}
		s.Rover = r
	}
	return s, nil
}

// Config returns the finalized configuration.
func (s *System) Config() *model.Config { return s.cfg }

// StartAll starts the base station first so a co-located rover finds it.
func (s *System) StartAll() error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return nil
	}
	if s.Base != nil {
		if err := s.Base.Start(); err != nil {
			return err
		}
	}
	if s.Rover != nil {
		if err := s.Rover.Start(); err != nil {
			if s.Base != nil {
				s.Base.Stop()
			}
			return err
		}
	}
	s.started = true
	util.Info(util.Fields{"component": "system", "base": s.Base != nil, "rover": s.Rover != nil}, "system started")
	return nil
}

// Err reports a fatal base-station server error, or nil without a base
// station.
func (s *System) Err() <-chan error {
	if s.Base == nil {
		return nil
	}
	return s.Base.Err()
}

// StopAll stops all running components gracefully, rover first.
func (s *System) StopAll() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if !s.started {
		return
	}
	if s.Rover != nil {
		s.Rover.Stop()
	}
	if s.Base != nil {
		s.Base.Stop()
	}
	s.started = false
}
