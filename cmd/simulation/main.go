// Simulation: a base station with a synthetic station camera and a simulated
// rover in one process. Open http://localhost:<port>/ to watch and drive it.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"RoverLink/internal/core"
	"RoverLink/internal/model"
	"RoverLink/internal/util"
)

func main() {
	port := flag.Int("port", 8080, "HTTP port")
	mode := flag.String("mode", "telemetry", "rover mode: manual or telemetry")
	motion := flag.String("motion", "sweep", "synthetic target motion: static, sweep or approach")
	level := flag.String("log", "info", "log level")
	flag.Parse()

	log := util.Logger()
	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	cfg := &model.Config{
		Log: model.LogConfig{Level: *level},
		BaseStation: &model.BaseStationConfig{
			Listen: addr,
			Tracker: &model.TrackerConfig{
				Camera: model.CameraConfig{TargetColor: "target_orange", TargetSize: 32, Motion: *motion},
				Color:  model.ColorConfig{Preset: "target_orange"},
			},
		},
		Vehicle: &model.VehicleConfig{
			ID:        "SIM_ROVER_01",
			ServerURL: "ws://" + addr + "/ws",
			Mode:      *mode,
			Camera:    model.CameraConfig{TargetColor: "green", TargetSize: 24, Motion: "approach"},
			Link:      model.LinkConfig{ReconnectMs: 500},
		},
	}
	if err := core.Finalize(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := util.SetupLogger(cfg.Log); err != nil {
		log.Fatalf("logger: %v", err)
	}

	sys, err := core.NewSystemFromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to create simulation: %v", err)
	}
	if err := sys.StartAll(); err != nil {
		log.Fatalf("failed to start simulation: %v", err)
	}
	util.Info(util.Fields{"url": "http://" + addr + "/"}, "simulation running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-sys.Err():
		log.Errorf("server failed: %v", err)
	}
	sys.StopAll()
}
