package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-inspect/cmd/config"
	"github.com/mattsolo1/grove-inspect/pkg/automation"
	"github.com/mattsolo1/grove-inspect/pkg/inspect"
	"github.com/mattsolo1/grove-inspect/pkg/observe"
)

// Env is the state every subcommand shares. It is built once before the
// subcommand runs.
type Env struct {
	Settings *config.Settings
	Logger   *logrus.Entry
	closeLog func() error
}

// NewEnv loads the configuration for the running command and builds the
// library logger.
func NewEnv(cmd *cobra.Command) (*Env, error) {
	config.InitConfig()
	if err := config.BindFlags(cmd); err != nil {
		return nil, err
	}
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, closeLog, err := config.NewLogger(settings, os.Stderr)
	if err != nil {
		return nil, err
	}
	return &Env{Settings: settings, Logger: logger, closeLog: closeLog}, nil
}

// Close releases the log file, if any.
func (e *Env) Close() error {
	if e == nil || e.closeLog == nil {
		return nil
	}
	return e.closeLog()
}

// OpenBackend opens the configured automation backend.
func (e *Env) OpenBackend(ctx context.Context) (automation.Backend, error) {
	backend, err := automation.Open(ctx, e.Settings.AutomationType, automation.Options{
		Source: e.Settings.DesktopFile,
		Watch:  e.Settings.WatchDesktop,
		Logger: e.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open automation backend: %w", err)
	}
	return backend, nil
}

// NewSession creates a session over backend with the hover and focus
// sources registered but not started.
func (e *Env) NewSession(backend automation.Backend) *inspect.Session {
	sess := inspect.New(backend, e.Logger)
	// Not running yet, so this never blocks.
	_ = sess.SetXPath(context.Background(), e.Settings.EnableXPath)
	sess.Register(observe.NewHoverObserver(backend, backend, e.Settings.HoverInterval, e.Logger))
	sess.Register(observe.NewFocusObserver(backend, backend, e.Settings.FocusInterval, e.Logger))
	return sess
}
