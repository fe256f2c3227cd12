package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/superclip/internal/clip"
)

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Print the clipboard to stdout (like wl-paste)",
		Long: `Reads the current clipboard selection as UTF-8 text and writes it to
stdout followed by a newline.

Fails with "no suitable data found" when nothing on the clipboard is offered
as text/plain;charset=utf-8. To see what is offered instead:

  superclip paste --show-mime`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runPaste(cmd, v) },
	}

	addPasteFlags(cmd)

	return cmd
}

func runPaste(cmd *cobra.Command, v *viper.Viper) error {
	setupLogging(v)
	opts, err := loadPasteOptions(v)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cfg := opts.clipConfig()
	cfg.Logger = slog.Default()
	b, err := clip.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	types, err := b.Types(ctx)
	if err != nil {
		return err
	}
	if opts.ShowMime && len(types) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), strings.Join(types, "\n"))
	}

	text, err := b.ReadText(ctx)
	if err != nil {
		return err
	}
	clip.LogRead(ctx, slog.Default(), b.Name(), types, text)

	out := cmd.OutOrStdout()
	if opts.NoNewline {
		_, err = fmt.Fprint(out, text)
	} else {
		_, err = fmt.Fprintln(out, text)
	}
	return err
}
