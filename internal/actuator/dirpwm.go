package actuator

import (
	"errors"
	"sync"
)

// DirPWMMotor is a driver channel with one direction pin and a hardware PWM.
type DirPWMMotor struct {
	Dir    DigitalPin
	PWM    PWMChannel
	Invert bool // flips the forward level for a motor mounted mirrored
}

func (m DirPWMMotor) drive(speed int) error {
	forward := speed >= 0
	if m.Invert {
		forward = !forward
	}
	return errors.Join(m.Dir.Set(forward), m.PWM.SetDuty(uint8(abs(speed))))
}

// DirPWM drives two motors through direction+PWM drivers. These drivers have
// no brake input, so EmergencyStop cuts the duty to zero.
type DirPWM struct {
	left, right DirPWMMotor

	mu         sync.Mutex
	lSpd, rSpd int
}

// NewDirPWM checks the wiring and stops both motors.
func NewDirPWM(left, right DirPWMMotor) (*DirPWM, error) {
	if left.Dir == nil || left.PWM == nil || right.Dir == nil || right.PWM == nil {
		return nil, errors.New("dirpwm: every motor needs Dir and PWM")
	}
	d := &DirPWM{left: left, right: right}
	if err := d.SetSpeeds(0, 0); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSpeeds implements Actuator.
func (d *DirPWM) SetSpeeds(left, right int) error {
	left, right = Clamp(left), Clamp(right)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := errors.Join(d.left.drive(left), d.right.drive(right)); err != nil {
		return fault("dirpwm set speeds", err)
	}
	d.lSpd, d.rSpd = left, right
	return nil
}

// EmergencyStop implements Actuator.
func (d *DirPWM) EmergencyStop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lSpd, d.rSpd = 0, 0
	return fault("dirpwm stop", errors.Join(d.left.PWM.SetDuty(0), d.right.PWM.SetDuty(0)))
}

// Speeds implements Actuator.
func (d *DirPWM) Speeds() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lSpd, d.rSpd
}

// Close stops both motors.
func (d *DirPWM) Close() error {
	return d.SetSpeeds(0, 0)
}
