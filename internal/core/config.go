package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"RoverLink/internal/model"
)

// Environment overrides applied after the YAML file is read.
const (
	EnvServerURL  = "ROVERLINK_SERVER_URL"
	EnvVehicleID  = "ROVERLINK_VEHICLE_ID"
	EnvListen     = "ROVERLINK_LISTEN"
	EnvLogLevel   = "ROVERLINK_LOG_LEVEL"
	EnvMQTTBroker = "ROVERLINK_MQTT_BROKER"
)

var validate = validator.New()

// LoadEnv loads a .env file into the environment. A missing file is not an
// error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func LoadConfig(path string) (*model.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(b []byte) (*model.Config, error) {
	var cfg model.Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := Finalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize applies defaults and validates a config built in code.
func Finalize(cfg *model.Config) error {
	if cfg.BaseStation == nil && cfg.Vehicle == nil {
		return errors.New("config: need a base_station or vehicle section")
	}
	cfg.ApplyDefaults()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func applyEnv(cfg *model.Config) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if bs := cfg.BaseStation; bs != nil {
		if v := os.Getenv(EnvListen); v != "" {
			bs.Listen = v
		}
		if v := os.Getenv(EnvMQTTBroker); v != "" {
			if bs.MQTT == nil {
				bs.MQTT = &model.MQTTConfig{}
			}
			bs.MQTT.Broker = v
		}
	}
	if vc := cfg.Vehicle; vc != nil {
		if v := os.Getenv(EnvServerURL); v != "" {
			vc.ServerURL = v
		}
		if v := os.Getenv(EnvVehicleID); v != "" {
			vc.ID = v
		}
	}
}
