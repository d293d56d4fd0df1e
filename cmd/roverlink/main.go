// Package main is the entry point of the RoverLink system.
// It loads the configuration, sets up logging, constructs the base station
// and/or rover the file describes and runs them until interrupted.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"RoverLink/internal/core"
	"RoverLink/internal/util"
)

func main() {
	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	envPath := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	log := util.Logger()
	if err := core.LoadEnv(*envPath); err != nil {
		log.Fatalf("env: %v", err)
	}
	cfg, err := core.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", *cfgPath, err)
	}
	if err := util.SetupLogger(cfg.Log); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer util.Close()
	util.Info(util.Fields{"config": *cfgPath}, "using config")

	sys, err := core.NewSystemFromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to create system: %v", err)
	}
	if err := sys.StartAll(); err != nil {
		log.Fatalf("failed to start system: %v", err)
	}

	// wait for Ctrl+C, SIGTERM or a dead web server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		util.Warn(util.Fields{"signal": sig.String()}, "signal received")
	case err := <-sys.Err():
		util.Error(util.Fields{"error": err.Error()}, "base station failed")
	}

	log.Info("shutting down system")
	sys.StopAll()
	log.Info("system stopped cleanly")
}
