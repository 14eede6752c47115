package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattsolo1/grove-inspect/cmd/config"
	"github.com/mattsolo1/grove-inspect/internal/tui/inspector"
	"github.com/mattsolo1/grove-inspect/pkg/inspect"
)

// NewTuiCmd creates the `inspect tui` command.
func NewTuiCmd(env **Env) *cobra.Command {
	var hover, focus bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Browse the automation tree interactively",
		Long: `Launch an interactive Terminal User Interface over the live automation tree.
Hover and focus tracking keep the selection on the element under the pointer
or with keyboard focus; toggle them with h and f.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Check for TTY
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return fmt.Errorf("TUI mode requires an interactive terminal")
			}

			e := *env
			if e.Settings.LogFile == "" {
				// Library logs would tear the alternate screen.
				e.Logger.Logger.SetOutput(io.Discard)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			backend, err := e.OpenBackend(ctx)
			if err != nil {
				return err
			}
			defer backend.Close()

			sess := e.NewSession(backend)
			model := inspector.New(sess, e.Settings.ExportDir)
			p := tea.NewProgram(model, tea.WithAltScreen())
			sess.Subscribe(func(snap inspect.Snapshot) {
				p.Send(inspector.SnapshotMsg(snap))
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return sess.Run(gctx)
			})
			g.Go(func() error {
				defer cancel()
				if _, err := p.Run(); err != nil {
					return fmt.Errorf("error running TUI: %w", err)
				}
				return nil
			})
			for name, on := range map[string]bool{"hover": hover, "focus": focus} {
				if on {
					if err := sess.SetTracking(ctx, name, true); err != nil {
						cancel()
						_ = g.Wait()
						return err
					}
				}
			}
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&hover, "hover", false, "Start with hover tracking enabled")
	cmd.Flags().BoolVar(&focus, "focus", false, "Start with focus tracking enabled")
	config.AddGlobalFlags(cmd)

	return cmd
}
