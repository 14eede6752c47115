package main

import (
	"os"

	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-inspect/cmd"
	_ "github.com/mattsolo1/grove-inspect/pkg/automation/simulated"
)

var env *cmd.Env

func main() {
	rootCmd := cli.NewStandardCommand(
		"inspect",
		"A live inspector for desktop UI automation trees",
	)

	rootCmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		// This runs once before any subcommand
		var err error
		env, err = cmd.NewEnv(c)
		return err
	}
	rootCmd.PersistentPostRunE = func(c *cobra.Command, args []string) error {
		return env.Close()
	}

	// Add subcommands
	rootCmd.AddCommand(cmd.NewTuiCmd(&env))
	rootCmd.AddCommand(cmd.NewWatchCmd(&env))
	rootCmd.AddCommand(cmd.NewTreeCmd(&env))
	rootCmd.AddCommand(cmd.NewDumpCmd(&env))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
