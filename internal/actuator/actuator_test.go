package actuator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverLink/internal/device"
	"RoverLink/internal/model"
)

type memMotor struct {
	in1, in2 *MemoryPin
	en       *MemoryPWM
}

func newMemMotor() memMotor {
	return memMotor{in1: &MemoryPin{}, in2: &MemoryPin{}, en: &MemoryPWM{}}
}

func (m memMotor) l298n() L298NMotor { return L298NMotor{IN1: m.in1, IN2: m.in2, EN: m.en} }

func TestClamp(t *testing.T) {
	assert.Equal(t, 255, Clamp(300))
	assert.Equal(t, -255, Clamp(-1000))
	assert.Equal(t, 42, Clamp(42))
	assert.Equal(t, Command{Left: 255, Right: -255, Brake: true}, Command{Left: 999, Right: -999, Brake: true}.Clamped())
}

func TestNetForward(t *testing.T) {
	assert.True(t, Command{Left: 100, Right: 100}.NetForward())
	assert.False(t, Command{Left: 100, Right: -100}.NetForward())
	assert.False(t, Command{Left: -50, Right: -50}.NetForward())
	assert.False(t, Command{Left: 100, Right: 100, Brake: true}.NetForward())
}

func TestL298NDirectionAndDuty(t *testing.T) {
	l, r := newMemMotor(), newMemMotor()
	d, err := NewL298N(l.l298n(), r.l298n())
	require.NoError(t, err)

	require.NoError(t, d.SetSpeeds(180, -400))
	assert.True(t, l.in1.High())
	assert.False(t, l.in2.High())
	assert.Equal(t, uint8(180), l.en.Duty())
	assert.False(t, r.in1.High())
	assert.True(t, r.in2.High())
	assert.Equal(t, uint8(255), r.en.Duty())
	left, right := d.Speeds()
	assert.Equal(t, 180, left)
	assert.Equal(t, -255, right)

	require.NoError(t, d.SetSpeeds(0, 0))
	assert.False(t, l.in1.High())
	assert.False(t, l.in2.High())
	assert.Equal(t, uint8(0), l.en.Duty())
}

func TestL298NEmergencyStopBrakes(t *testing.T) {
	l, r := newMemMotor(), newMemMotor()
	d, err := NewL298N(l.l298n(), r.l298n())
	require.NoError(t, err)
	require.NoError(t, d.SetSpeeds(100, 100))

	require.NoError(t, Apply(d, Command{Brake: true}))
	for _, m := range []memMotor{l, r} {
		assert.True(t, m.in1.High())
		assert.True(t, m.in2.High())
		assert.Equal(t, uint8(255), m.en.Duty())
	}
	left, right := d.Speeds()
	assert.Zero(t, left)
	assert.Zero(t, right)
}

func TestL298NPinFaultIsTransient(t *testing.T) {
	l, r := newMemMotor(), newMemMotor()
	d, err := NewL298N(l.l298n(), r.l298n())
	require.NoError(t, err)
	require.NoError(t, d.SetSpeeds(50, 50))

	l.in1.Fail(errors.New("bus error"))
	err = d.SetSpeeds(120, 120)
	assert.ErrorIs(t, err, ErrFault)
	left, _ := d.Speeds()
	assert.Equal(t, 50, left, "failed write keeps the last applied speeds")

	l.in1.Fail(nil)
	require.NoError(t, d.SetSpeeds(120, 120))
	left, _ = d.Speeds()
	assert.Equal(t, 120, left)
}

func TestL298NRejectsMissingPins(t *testing.T) {
	_, err := NewL298N(L298NMotor{IN1: &MemoryPin{}}, newMemMotor().l298n())
	assert.Error(t, err)
}

func TestDirPWM(t *testing.T) {
	ld, rd := &MemoryPin{}, &MemoryPin{}
	lp, rp := &MemoryPWM{}, &MemoryPWM{}
	d, err := NewDirPWM(DirPWMMotor{Dir: ld, PWM: lp}, DirPWMMotor{Dir: rd, PWM: rp, Invert: true})
	require.NoError(t, err)

	require.NoError(t, d.SetSpeeds(140, 140))
	assert.True(t, ld.High())
	assert.False(t, rd.High(), "inverted side flips the direction level")
	assert.Equal(t, uint8(140), lp.Duty())
	assert.Equal(t, uint8(140), rp.Duty())

	require.NoError(t, d.SetSpeeds(-80, 20))
	assert.False(t, ld.High())
	assert.Equal(t, uint8(80), lp.Duty())

	require.NoError(t, d.EmergencyStop())
	assert.Equal(t, uint8(0), lp.Duty())
	assert.Equal(t, uint8(0), rp.Duty())
	left, right := d.Speeds()
	assert.Zero(t, left)
	assert.Zero(t, right)
}

func TestSerialDriverWithAck(t *testing.T) {
	dev := device.NewLoopback(EmulatedController)
	d, err := NewSerialDriver(dev, 50*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, d.SetSpeeds(180, -300))
	require.NoError(t, d.EmergencyStop())
	assert.Equal(t, []string{"M,0,0", "M,180,-255", "E"}, dev.Written())
	left, right := d.Speeds()
	assert.Zero(t, left)
	assert.Zero(t, right)
}

func TestSerialDriverFaults(t *testing.T) {
	dev := device.NewLoopback(func(string) string { return "ERR,overcurrent" })
	_, err := NewSerialDriver(dev, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrFault)

	silent := device.NewLoopback(nil)
	d, err := NewSerialDriver(silent, 0)
	require.NoError(t, err, "no ack expected without a timeout")

	silent.FailWrites(errors.New("unplugged"))
	assert.ErrorIs(t, d.SetSpeeds(10, 10), ErrFault)

	waiting, err := NewSerialDriver(device.NewLoopback(nil), 0)
	require.NoError(t, err)
	waiting.ackTimeout = 5 * time.Millisecond
	err = waiting.SetSpeeds(10, 10)
	assert.ErrorIs(t, err, ErrFault)
	assert.ErrorContains(t, err, "serial ack")
}

func TestEmulatedController(t *testing.T) {
	assert.Equal(t, "OK", EmulatedController("M,10,-10"))
	assert.Equal(t, "OK", EmulatedController("E"))
	assert.Equal(t, "ERR,range", EmulatedController("M,300,0"))
	assert.Contains(t, EmulatedController("X"), "ERR,")
}

func TestSysfsPins(t *testing.T) {
	root := t.TempDir()
	gpio := filepath.Join(root, "gpio", "gpio17")
	require.NoError(t, os.MkdirAll(gpio, 0o755))
	pwm := filepath.Join(root, "pwm", "pwmchip0", "pwm1")
	require.NoError(t, os.MkdirAll(pwm, 0o755))

	pin, err := OpenSysfsGPIO(root, 17)
	require.NoError(t, err)
	require.NoError(t, pin.Set(true))
	assertFile(t, filepath.Join(gpio, "direction"), "out")
	assertFile(t, filepath.Join(gpio, "value"), "1")

	ch, err := OpenSysfsPWM(root, 0, 1, 1000000)
	require.NoError(t, err)
	assertFile(t, filepath.Join(pwm, "enable"), "1")
	require.NoError(t, ch.SetDuty(255))
	assertFile(t, filepath.Join(pwm, "duty_cycle"), "1000000")
	require.NoError(t, ch.SetDuty(0))
	assertFile(t, filepath.Join(pwm, "duty_cycle"), "0")

	_, err = OpenSysfsPWM(root, 0, 1, 0)
	assert.Error(t, err)
}

func assertFile(t *testing.T, path, want string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, string(b))
}

func TestNewBackends(t *testing.T) {
	for _, backend := range []string{"", "memory", "l298n", "dirpwm"} {
		a, err := New(model.MotorConfig{Backend: backend})
		require.NoError(t, err, backend)
		require.NoError(t, a.SetSpeeds(10, -10))
		require.NoError(t, a.Close())
	}
	_, err := New(model.MotorConfig{Backend: "warp"})
	assert.Error(t, err)
}
