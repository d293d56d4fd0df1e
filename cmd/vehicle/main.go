// Vehicle agent: connects to the base station, runs on-board detection with
// the forward-motion veto and drives the motors from remote commands or
// target telemetry. Resources are released on exit.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"RoverLink/internal/core"
	"RoverLink/internal/model"
	"RoverLink/internal/util"
)

func main() {
	id := flag.String("id", model.DefaultVehicleID, "vehicle id")
	server := flag.String("server", model.DefaultServerURL, "base station websocket URL")
	mode := flag.String("mode", "manual", "manual or telemetry")
	backend := flag.String("motor", "memory", "motor backend: memory, serial, l298n, dirpwm")
	pins := flag.String("pins", "", "pin driver for l298n/dirpwm: memory or sysfs")
	serialDev := flag.String("serial", "/dev/ttyUSB0", "motor controller serial device")
	baud := flag.Int("baud", 115200, "motor controller baud rate")
	cam := flag.String("camera", "synthetic", "camera kind: synthetic or none")
	level := flag.String("log", "info", "log level")
	flag.Parse()

	log := util.Logger()
	if err := core.LoadEnv(""); err != nil {
		log.Fatalf("env: %v", err)
	}
	cfg := &model.Config{
		Log: model.LogConfig{Level: *level},
		Vehicle: &model.VehicleConfig{
			ID:        *id,
			ServerURL: *server,
			Mode:      *mode,
			Camera:    model.CameraConfig{Kind: *cam},
			Motor: model.MotorConfig{
				Backend:      *backend,
				Pins:         *pins,
				SerialDevice: *serialDev,
				SerialBaud:   *baud,
			},
		},
	}
	if err := core.Finalize(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := util.SetupLogger(cfg.Log); err != nil {
		log.Fatalf("logger: %v", err)
	}

	r, err := core.NewRover(*cfg.Vehicle)
	if err != nil {
		log.Fatalf("vehicle: %v", err)
	}
	if err := r.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	r.Stop()
}
