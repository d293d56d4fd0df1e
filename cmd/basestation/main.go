// Base station: serves the router on /ws, the live dashboard on / and the
// control API. Optionally runs the external camera tracker and mirrors
// traffic to MQTT.
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
	listen := flag.String("listen", ":80", "HTTP listen address")
	maxPeers := flag.Int("max-peers", model.DefaultMaxPeers, "maximum concurrent connections")
	frameRate := flag.Float64("frame-rate", 15, "per-vehicle inbound frame limit (fps), 0 for none")
	tracker := flag.Bool("tracker", false, "run the synthetic station camera tracker")
	color := flag.String("color", "target_orange", "tracker color preset")
	broker := flag.String("mqtt", "", "MQTT broker address, empty to disable")
	level := flag.String("log", "info", "log level")
	flag.Parse()

	log := util.Logger()
	if err := core.LoadEnv(""); err != nil {
		log.Fatalf("env: %v", err)
	}
	bs := &model.BaseStationConfig{Listen: *listen, MaxPeers: *maxPeers, FrameRate: *frameRate}
	if *tracker {
		bs.Tracker = &model.TrackerConfig{
			Camera: model.CameraConfig{TargetColor: *color, TargetSize: 30, Motion: "sweep"},
			Color:  model.ColorConfig{Preset: *color},
		}
	}
	if *broker != "" {
		bs.MQTT = &model.MQTTConfig{Broker: *broker}
	}
	cfg := &model.Config{Log: model.LogConfig{Level: *level}, BaseStation: bs}
	if err := core.Finalize(cfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := util.SetupLogger(cfg.Log); err != nil {
		log.Fatalf("logger: %v", err)
	}

	b, err := core.NewBaseStation(*cfg.BaseStation)
	if err != nil {
		log.Fatalf("base station: %v", err)
	}
	if err := b.Start(); err != nil {
		log.Fatalf("start: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-b.Err():
		log.Errorf("server failed: %v", err)
	}
	b.Stop()
}
