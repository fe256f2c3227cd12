// superclip: read the Wayland clipboard from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "superclip",
		Short: "Read the Wayland clipboard",
		Long: `superclip talks to the compositor directly over the Wayland socket and
prints the current clipboard selection as UTF-8 text.

Only text/plain;charset=utf-8 is read. Use --show-mime to see what else the
clipboard holds.

Config file (first found wins):
  path supplied via --config
  $XDG_CONFIG_HOME/superclip/superclip.toml
  /etc/superclip/superclip.toml

All flags can be set via SUPERCLIP_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolP("debug", "d", false, "log debug traces to stderr")

	root.AddCommand(
		newPasteCmd(),
		newCopyCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "superclip %s\n", Version)
		},
	}
}
