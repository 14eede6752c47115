package cmd

import (
	"context"
	"fmt"
	"strings"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-inspect/cmd/config"
	"github.com/mattsolo1/grove-inspect/pkg/export"
	"github.com/mattsolo1/grove-inspect/pkg/inspect"
)

var dumpUlog = grovelogging.NewUnifiedLogger("grove-inspect.cmd.dump")

func NewDumpCmd(env **Env) *cobra.Command {
	var (
		outDir string
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "dump [element path]",
		Short: "Dump an element and its descendants to JSON",
		Long: `Synchronize the tree to an element and write its subtree as JSON.

The element is named by the names of its ancestors below the desktop root,
separated by slashes. Without a path the whole desktop is dumped.

Examples:
  inspect dump "Calculator/Number pad"
  inspect dump Calculator --out /tmp
  inspect dump Calculator --stdout`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *env
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if outDir == "" {
				outDir = e.Settings.ExportDir
			}

			var (
				written string
				doc     *export.UIElement
			)
			err := withSession(context.Background(), e, func(ctx context.Context, sess *inspect.Session) error {
				el, err := inspect.FindByPath(ctx, sess.Facade(), path)
				if err != nil {
					return err
				}
				res, err := sess.Sync(ctx, "dump", el)
				if err != nil {
					return err
				}
				if res.Err != nil {
					return res.Err
				}
				if stdout {
					doc, err = sess.ScanSelected(ctx)
					return err
				}
				written, doc, err = sess.ExportSelected(ctx, outDir)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to dump %q: %w", path, err)
			}

			if stdout {
				data, err := export.Marshal(doc)
				if err != nil {
					return err
				}
				dumpUlog.Info("Dump").
					Field("elements", doc.Count()).
					Pretty(string(data)).
					PrettyOnly().
					Emit()
				return nil
			}

			dumpUlog.Success("Dumped subtree").
				Field("element", strings.Trim(path, "/")).
				Field("elements", doc.Count()).
				Field("path", written).
				Pretty(fmt.Sprintf("Dumped %d element(s) to %s", doc.Count(), written)).
				PrettyOnly().
				Emit()
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory to write to (default: export_dir)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the JSON instead of writing a file")
	config.AddGlobalFlags(cmd)

	return cmd
}
