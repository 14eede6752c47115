package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-inspect/pkg/automation/simulated"
	"github.com/mattsolo1/grove-inspect/pkg/export"
)

var cfgFile string

// Settings is the decoded configuration.
type Settings struct {
	AutomationType string        `mapstructure:"automation_type"`
	DesktopFile    string        `mapstructure:"desktop_file"`
	WatchDesktop   bool          `mapstructure:"watch_desktop"`
	HoverInterval  time.Duration `mapstructure:"hover_interval"`
	FocusInterval  time.Duration `mapstructure:"focus_interval"`
	ExportDir      string        `mapstructure:"export_dir"`
	EnableXPath    bool          `mapstructure:"enable_xpath"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file"`
}

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "grove-inspect")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("INSPECT")

	// Set defaults
	viper.SetDefault("automation_type", simulated.Kind)
	viper.SetDefault("desktop_file", "")
	viper.SetDefault("watch_desktop", true)
	viper.SetDefault("hover_interval", 150*time.Millisecond)
	viper.SetDefault("focus_interval", 100*time.Millisecond)
	viper.SetDefault("export_dir", export.DefaultDir())
	viper.SetDefault("enable_xpath", false)
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_file", "")

	if err := viper.ReadInConfig(); err == nil {
		// Do not print this in normal operation, it's noisy.
		// fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// Load decodes the settings gathered by InitConfig.
func Load() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if s.HoverInterval <= 0 {
		return nil, fmt.Errorf("hover_interval must be positive, got %s", s.HoverInterval)
	}
	if s.FocusInterval <= 0 {
		return nil, fmt.Errorf("focus_interval must be positive, got %s", s.FocusInterval)
	}
	return &s, nil
}

// NewLogger builds the library logger. Output goes to log_file when it is
// set and to fallback otherwise. The returned func closes the log file.
func NewLogger(s *Settings, fallback io.Writer) (*logrus.Entry, func() error, error) {
	level, err := logrus.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log_level: %w", err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(fallback)
	closer := func() error { return nil }
	if s.LogFile != "" {
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f.Close
	}
	return logrus.NewEntry(logger).WithField("app", "grove-inspect"), closer, nil
}

func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/grove-inspect/config.yaml)")
	cmd.PersistentFlags().String("desktop", "", "YAML desktop definition for the simulated backend")
	cmd.PersistentFlags().String("log-level", "", "library log level (debug, info, warn, error)")
}

// flagKeys maps global flags to the config keys they override.
var flagKeys = map[string]string{
	"desktop":   "desktop_file",
	"log-level": "log_level",
}

// BindFlags lets the global flags of the running command override config
// values. Commands without the flags are left alone.
func BindFlags(cmd *cobra.Command) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}
