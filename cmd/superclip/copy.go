package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var errCopyUnsupported = errors.New("copy is not implemented: superclip only reads the clipboard")

func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy",
		Short: "Copy stdin to the clipboard (not implemented)",
		Args:  cobra.NoArgs,
		RunE:  func(*cobra.Command, []string) error { return errCopyUnsupported },
	}
}
