package actuator

import (
	"sync"
	"time"

	"RoverLink/internal/device"
	"RoverLink/internal/parser"
)

// SerialDriver forwards speeds to a motor controller board over a line
// protocol (see parser.EncodeMotor). With a non-zero ack timeout every write
// waits for the board's OK.
type SerialDriver struct {
	dev        device.Device
	ackTimeout time.Duration

	mu         sync.Mutex
	lSpd, rSpd int
}

// NewSerialDriver wraps an open device and commands a stop.
func NewSerialDriver(dev device.Device, ackTimeout time.Duration) (*SerialDriver, error) {
	d := &SerialDriver{dev: dev, ackTimeout: ackTimeout}
	if err := d.SetSpeeds(0, 0); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *SerialDriver) send(f parser.MotorFrame) error {
	if err := d.dev.WriteLine(parser.EncodeMotor(f)); err != nil {
		return fault("serial write", err)
	}
	if d.ackTimeout <= 0 {
		return nil
	}
	reply, err := d.dev.ReadLine(d.ackTimeout)
	if err != nil {
		return fault("serial ack", err)
	}
	return fault("serial ack", parser.DecodeAck(reply))
}

// SetSpeeds implements Actuator.
func (d *SerialDriver) SetSpeeds(left, right int) error {
	left, right = Clamp(left), Clamp(right)
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.send(parser.MotorFrame{Left: left, Right: right}); err != nil {
		return err
	}
	d.lSpd, d.rSpd = left, right
	return nil
}

// EmergencyStop implements Actuator.
func (d *SerialDriver) EmergencyStop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lSpd, d.rSpd = 0, 0
	return d.send(parser.MotorFrame{Brake: true})
}

// Speeds implements Actuator.
func (d *SerialDriver) Speeds() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lSpd, d.rSpd
}

// Close stops the motors and closes the device.
func (d *SerialDriver) Close() error {
	stopErr := d.SetSpeeds(0, 0)
	if err := d.dev.Close(); err != nil {
		return err
	}
	return stopErr
}

// EmulatedController answers motor protocol lines the way the board firmware
// does. It backs device.Loopback in simulation.
func EmulatedController(line string) string {
	f, err := parser.DecodeMotor(line)
	if err != nil {
		return "ERR," + err.Error()
	}
	if !f.Brake && (abs(f.Left) > MaxSpeed || abs(f.Right) > MaxSpeed) {
		return "ERR,range"
	}
	return "OK"
}
