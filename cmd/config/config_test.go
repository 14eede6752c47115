package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	cfgFile = path
	t.Cleanup(func() {
		cfgFile = ""
		viper.Reset()
	})
	InitConfig()
}

func TestDefaults(t *testing.T) {
	withConfigFile(t, "")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "simulated", s.AutomationType)
	assert.Empty(t, s.DesktopFile)
	assert.True(t, s.WatchDesktop)
	assert.Equal(t, 150*time.Millisecond, s.HoverInterval)
	assert.Equal(t, 100*time.Millisecond, s.FocusInterval)
	assert.Equal(t, "warn", s.LogLevel)
	assert.NotEmpty(t, s.ExportDir)
	assert.False(t, s.EnableXPath)
}

func TestFileOverridesDefaults(t *testing.T) {
	withConfigFile(t, `
desktop_file: /tmp/desktop.yaml
watch_desktop: false
hover_interval: 250ms
log_level: debug
enable_xpath: true
`)

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/desktop.yaml", s.DesktopFile)
	assert.False(t, s.WatchDesktop)
	assert.Equal(t, 250*time.Millisecond, s.HoverInterval)
	assert.Equal(t, 100*time.Millisecond, s.FocusInterval)
	assert.Equal(t, "debug", s.LogLevel)
	assert.True(t, s.EnableXPath)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("INSPECT_FOCUS_INTERVAL", "40ms")
	withConfigFile(t, "focus_interval: 300ms\n")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, s.FocusInterval)
}

func TestRejectsNonPositiveInterval(t *testing.T) {
	withConfigFile(t, "hover_interval: 0s\n")

	_, err := Load()
	assert.ErrorContains(t, err, "hover_interval")
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "inspect.log")
	logger, closeLog, err := NewLogger(&Settings{LogLevel: "info", LogFile: logFile}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.Logger.GetLevel())

	logger.Info("hello")
	require.NoError(t, closeLog())
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	_, _, err = NewLogger(&Settings{LogLevel: "loud"}, io.Discard)
	assert.Error(t, err)
}

func TestFlagsOverrideConfig(t *testing.T) {
	withConfigFile(t, "desktop_file: /from/config.yaml\n")

	cmd := &cobra.Command{Use: "test", Run: func(*cobra.Command, []string) {}}
	AddGlobalFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--desktop", "/from/flag.yaml"}))
	require.NoError(t, BindFlags(cmd))

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.yaml", s.DesktopFile)
	assert.Equal(t, "warn", s.LogLevel, "unset flags keep the configured value")
}
