package device

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackReplies(t *testing.T) {
	l := NewLoopback(func(line string) string { return "OK" })
	require.NoError(t, l.WriteLine("M,1,2"))

	reply, err := l.ReadLine(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "OK", reply)
	assert.Equal(t, []string{"M,1,2"}, l.Written())

	_, err = l.ReadLine(5 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestLoopbackFailuresAndClose(t *testing.T) {
	l := NewLoopback(nil)
	boom := errors.New("unplugged")
	l.FailWrites(boom)
	assert.ErrorIs(t, l.WriteLine("E"), boom)
	l.FailWrites(nil)
	require.NoError(t, l.WriteLine("E"))

	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.WriteLine("E"), ErrClosed)
}

func TestOpenMissingSerialPort(t *testing.T) {
	_, err := NewSerialDevice("/dev/does-not-exist-roverlink", 115200)
	assert.Error(t, err)
}
