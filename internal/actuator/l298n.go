package actuator

import (
	"errors"
	"sync"
)

// L298NMotor is one H-bridge channel: two direction inputs and an enable PWM.
type L298NMotor struct {
	IN1 DigitalPin
	IN2 DigitalPin
	EN  PWMChannel
}

func (m L298NMotor) valid() bool { return m.IN1 != nil && m.IN2 != nil && m.EN != nil }

func (m L298NMotor) drive(speed int) error {
	var in1, in2 bool
	switch {
	case speed > 0:
		in1 = true
	case speed < 0:
		in2 = true
	}
	return errors.Join(m.IN1.Set(in1), m.IN2.Set(in2), m.EN.SetDuty(uint8(abs(speed))))
}

func (m L298NMotor) brake() error {
	return errors.Join(m.IN1.Set(true), m.IN2.Set(true), m.EN.SetDuty(MaxSpeed))
}

// L298N drives two motors through direction pin pairs. Zero speed coasts;
// EmergencyStop shorts both windings for an active brake.
type L298N struct {
	left, right L298NMotor

	mu         sync.Mutex
	lSpd, rSpd int
}

// NewL298N checks the wiring and leaves both motors coasting.
func NewL298N(left, right L298NMotor) (*L298N, error) {
	if !left.valid() || !right.valid() {
		return nil, errors.New("l298n: every motor needs IN1, IN2 and EN")
	}
	d := &L298N{left: left, right: right}
	if err := d.SetSpeeds(0, 0); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSpeeds implements Actuator.
func (d *L298N) SetSpeeds(left, right int) error {
	left, right = Clamp(left), Clamp(right)
	d.mu.Lock()
	defer d.mu.Unlock()
	err := errors.Join(d.left.drive(left), d.right.drive(right))
	if err != nil {
		return fault("l298n set speeds", err)
	}
	d.lSpd, d.rSpd = left, right
	return nil
}

// EmergencyStop implements Actuator.
func (d *L298N) EmergencyStop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lSpd, d.rSpd = 0, 0
	return fault("l298n brake", errors.Join(d.left.brake(), d.right.brake()))
}

// Speeds implements Actuator.
func (d *L298N) Speeds() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lSpd, d.rSpd
}

// Close coasts both motors.
func (d *L298N) Close() error {
	return d.SetSpeeds(0, 0)
}
