package actuator

import "sync"

// DigitalPin is one GPIO output.
type DigitalPin interface {
	Set(high bool) error
}

// PWMChannel is one duty-cycle output with 8-bit resolution.
type PWMChannel interface {
	SetDuty(duty uint8) error
}

// MemoryPin is a DigitalPin that only remembers its level.
type MemoryPin struct {
	mu   sync.Mutex
	high bool
	err  error
}

// Set stores the level, or returns the injected error.
func (p *MemoryPin) Set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.high = high
	return nil
}

// High returns the stored level.
func (p *MemoryPin) High() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

// Fail makes Set return err until cleared with nil.
func (p *MemoryPin) Fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// MemoryPWM is a PWMChannel that only remembers its duty.
type MemoryPWM struct {
	mu   sync.Mutex
	duty uint8
}

// SetDuty stores the duty.
func (p *MemoryPWM) SetDuty(duty uint8) error {
	p.mu.Lock()
	p.duty = duty
	p.mu.Unlock()
	return nil
}

// Duty returns the stored duty.
func (p *MemoryPWM) Duty() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}
