package actuator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Linux sysfs GPIO and PWM outputs. Root is normally "/sys/class" and is a
// parameter so a temp directory can stand in for it.

// SysfsGPIO is a DigitalPin under <root>/gpio/gpio<N>.
type SysfsGPIO struct {
	value string
}

// OpenSysfsGPIO exports pin n if needed and sets it as an output.
func OpenSysfsGPIO(root string, n int) (*SysfsGPIO, error) {
	dir := filepath.Join(root, "gpio", "gpio"+strconv.Itoa(n))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := writeFile(filepath.Join(root, "gpio", "export"), strconv.Itoa(n)); err != nil {
			return nil, fmt.Errorf("export gpio %d: %w", n, err)
		}
	}
	if err := writeFile(filepath.Join(dir, "direction"), "out"); err != nil {
		return nil, fmt.Errorf("gpio %d direction: %w", n, err)
	}
	return &SysfsGPIO{value: filepath.Join(dir, "value")}, nil
}

// Set implements DigitalPin.
func (g *SysfsGPIO) Set(high bool) error {
	if high {
		return writeFile(g.value, "1")
	}
	return writeFile(g.value, "0")
}

// SysfsPWM is a PWMChannel under <root>/pwm/pwmchip<C>/pwm<N>.
type SysfsPWM struct {
	duty     string
	periodNs int
}

// OpenSysfsPWM exports channel n of chip c, sets the period and enables it.
func OpenSysfsPWM(root string, chip, n, periodNs int) (*SysfsPWM, error) {
	if periodNs <= 0 {
		return nil, errors.New("pwm period must be positive")
	}
	chipDir := filepath.Join(root, "pwm", "pwmchip"+strconv.Itoa(chip))
	dir := filepath.Join(chipDir, "pwm"+strconv.Itoa(n))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := writeFile(filepath.Join(chipDir, "export"), strconv.Itoa(n)); err != nil {
			return nil, fmt.Errorf("export pwm %d/%d: %w", chip, n, err)
		}
	}
	if err := writeFile(filepath.Join(dir, "period"), strconv.Itoa(periodNs)); err != nil {
		return nil, fmt.Errorf("pwm %d/%d period: %w", chip, n, err)
	}
	p := &SysfsPWM{duty: filepath.Join(dir, "duty_cycle"), periodNs: periodNs}
	if err := p.SetDuty(0); err != nil {
		return nil, err
	}
	if err := writeFile(filepath.Join(dir, "enable"), "1"); err != nil {
		return nil, fmt.Errorf("pwm %d/%d enable: %w", chip, n, err)
	}
	return p, nil
}

// SetDuty implements PWMChannel, scaling 0..255 onto the period.
func (p *SysfsPWM) SetDuty(duty uint8) error {
	ns := p.periodNs * int(duty) / MaxSpeed
	return writeFile(p.duty, strconv.Itoa(ns))
}

func writeFile(path, v string) error {
	return os.WriteFile(path, []byte(v), 0o644)
}
