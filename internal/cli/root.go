// Package cli holds the echopath command tree. The run command lives in
// cmd/echopath because it pulls in the OpenCV bindings.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"echopath/internal/config"

	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

// Globals carries state shared by subcommands.
type Globals struct {
	ConfigPath string
	Config     *config.Config
}

// NewRootCmd builds the root command with the one-shot subcommands attached.
func NewRootCmd(g *Globals) *cobra.Command {
	root := &cobra.Command{
		Use:           "echopath",
		Short:         "Smart cane object narration",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.ConfigPath)
			if err != nil {
				return err
			}
			g.Config = cfg
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().StringVar(&g.ConfigPath, "config", "", "YAML configuration file (default: $CONFIG_FILE)")

	root.AddCommand(newSayCmd(g), newNarrateCmd(g), newHistoryCmd(g))
	return root
}

// Execute runs root with a context cancelled on Ctrl+C (SIGINT) or SIGTERM.
func Execute(root *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "echopath:", err)
		stop()
		os.Exit(1)
	}
}
