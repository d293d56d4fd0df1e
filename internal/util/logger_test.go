package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverLink/internal/model"
)

func TestSetupLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "rover.log")

	require.NoError(t, SetupLogger(model.LogConfig{Level: "debug", File: logPath, Quiet: true, NoColors: true}))
	defer Close()

	Component("router").WithField("conn_id", "c1").Info("peer joined")
	Info(Fields{"vehicle_id": "v1"}, "status sent")

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "peer joined")
	assert.Contains(t, string(b), "router")
	assert.Contains(t, string(b), "status sent")
	assert.Equal(t, logrus.DebugLevel, Logger().GetLevel())
}

func TestSetupLoggerRejectsBadLevel(t *testing.T) {
	err := SetupLogger(model.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
