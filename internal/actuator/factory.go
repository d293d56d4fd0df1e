package actuator

import (
	"fmt"
	"time"

	"RoverLink/internal/device"
	"RoverLink/internal/model"
)

const defaultSysfsRoot = "/sys/class"

// New builds the backend selected by cfg.
func New(cfg model.MotorConfig) (Actuator, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewL298N(memoryL298N(), memoryL298N())
	case "serial":
		dev, err := device.NewSerialDevice(cfg.SerialDevice, cfg.SerialBaud)
		if err != nil {
			return nil, err
		}
		d, err := NewSerialDriver(dev, time.Duration(cfg.AckTimeoutMs)*time.Millisecond)
		if err != nil {
			_ = dev.Close()
			return nil, err
		}
		return d, nil
	case "l298n":
		if cfg.Pins != "sysfs" {
			return NewL298N(memoryL298N(), memoryL298N())
		}
		left, err := sysfsL298N(cfg, cfg.LeftIn1, cfg.LeftIn2, cfg.LeftPWM)
		if err != nil {
			return nil, err
		}
		right, err := sysfsL298N(cfg, cfg.RightIn1, cfg.RightIn2, cfg.RightPWM)
		if err != nil {
			return nil, err
		}
		return NewL298N(left, right)
	case "dirpwm":
		if cfg.Pins != "sysfs" {
			return NewDirPWM(
				DirPWMMotor{Dir: &MemoryPin{}, PWM: &MemoryPWM{}},
				DirPWMMotor{Dir: &MemoryPin{}, PWM: &MemoryPWM{}, Invert: true},
			)
		}
		left, err := sysfsDirPWM(cfg, cfg.LeftIn1, cfg.LeftPWM, false)
		if err != nil {
			return nil, err
		}
		right, err := sysfsDirPWM(cfg, cfg.RightIn1, cfg.RightPWM, true)
		if err != nil {
			return nil, err
		}
		return NewDirPWM(left, right)
	default:
		return nil, fmt.Errorf("unknown motor backend %q", cfg.Backend)
	}
}

func memoryL298N() L298NMotor {
	return L298NMotor{IN1: &MemoryPin{}, IN2: &MemoryPin{}, EN: &MemoryPWM{}}
}

func sysfsRoot(cfg model.MotorConfig) string {
	if cfg.SysfsRoot != "" {
		return cfg.SysfsRoot
	}
	return defaultSysfsRoot
}

func sysfsL298N(cfg model.MotorConfig, in1, in2, pwm int) (L298NMotor, error) {
	root := sysfsRoot(cfg)
	a, err := OpenSysfsGPIO(root, in1)
	if err != nil {
		return L298NMotor{}, err
	}
	b, err := OpenSysfsGPIO(root, in2)
	if err != nil {
		return L298NMotor{}, err
	}
	en, err := OpenSysfsPWM(root, cfg.PWMChip, pwm, cfg.PWMPeriodNs)
	if err != nil {
		return L298NMotor{}, err
	}
	return L298NMotor{IN1: a, IN2: b, EN: en}, nil
}

func sysfsDirPWM(cfg model.MotorConfig, dir, pwm int, invert bool) (DirPWMMotor, error) {
	root := sysfsRoot(cfg)
	d, err := OpenSysfsGPIO(root, dir)
	if err != nil {
		return DirPWMMotor{}, err
	}
	p, err := OpenSysfsPWM(root, cfg.PWMChip, pwm, cfg.PWMPeriodNs)
	if err != nil {
		return DirPWMMotor{}, err
	}
	return DirPWMMotor{Dir: d, PWM: p, Invert: invert}, nil
}
