package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mattsolo1/grove-inspect/cmd/config"
	"github.com/mattsolo1/grove-inspect/pkg/inspect"
)

var watchUlog = grovelogging.NewUnifiedLogger("grove-inspect.cmd.watch")

// NewWatchCmd creates the `inspect watch` command.
func NewWatchCmd(env **Env) *cobra.Command {
	var (
		hover    bool
		focus    bool
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow hover or focus and print every synchronized selection",
		Long: `Track the element under the pointer and/or the focused element without a UI.
Every time the mirrored tree is synchronized to a new element the selected
path is printed. Focus tracking is used when neither flag is given.

Examples:
  inspect watch --hover
  inspect watch --focus --duration 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *env
			if !hover && !focus {
				focus = true
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			backend, err := e.OpenBackend(ctx)
			if err != nil {
				return err
			}
			defer backend.Close()

			sess := e.NewSession(backend)
			syncs := 0
			sess.Subscribe(func(snap inspect.Snapshot) {
				if snap.Stats.Syncs == syncs || snap.LastSync == nil {
					return
				}
				syncs = snap.Stats.Syncs
				logSync(ctx, snap.LastSync)
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return sess.Run(gctx)
			})
			for name, on := range map[string]bool{"hover": hover, "focus": focus} {
				if !on {
					continue
				}
				if err := sess.SetTracking(gctx, name, true); err != nil {
					stop()
					_ = g.Wait()
					return err
				}
			}
			if err := g.Wait(); err != nil {
				return err
			}

			watchUlog.Info("Stopped watching").
				Field("syncs", syncs).
				Field("hover", hover).
				Field("focus", focus).
				Pretty(fmt.Sprintf("Stopped after %d synchronization(s)", syncs)).
				PrettyOnly().
				Emit()
			return nil
		},
	}

	cmd.Flags().BoolVar(&hover, "hover", false, "Track the element under the pointer")
	cmd.Flags().BoolVar(&focus, "focus", false, "Track the focused element")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (default: until interrupted)")
	config.AddGlobalFlags(cmd)

	return cmd
}

func logSync(ctx context.Context, last *inspect.SyncReport) {
	pretty := fmt.Sprintf("[%s] %s", last.Source, last.Selected)
	if last.ForcedReloads > 0 {
		pretty += fmt.Sprintf(" (%d forced reload(s))", last.ForcedReloads)
	}
	if last.Err != "" {
		pretty += " - " + last.Err
	}
	watchUlog.Info("Selection synchronized").
		Field("source", last.Source).
		Field("target", last.Target).
		Field("selected", last.Selected).
		Field("matched", last.Matched).
		Field("path_len", last.PathLen).
		Field("forced_reloads", last.ForcedReloads).
		Pretty(pretty).
		PrettyOnly().
		Log(ctx)
}
