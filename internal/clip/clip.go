// Package clip reads text from the clipboard of a running graphical session.
//
//	clip_wayland.go  speaks the Wayland data-device protocol directly
//	clip_system.go   golang.design/x/clipboard, opt-in with --backend system
package clip

import (
	"context"
	"fmt"
	"log/slog"

	"go.klb.dev/superclip/internal/wayland"
)

// Backend names accepted by Config.Backend.
const (
	BackendWayland = "wayland"
	BackendSystem  = "system"
)

// Backend is the interface every clipboard implementation satisfies.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Types returns the advertised content types, sorted.
	Types(ctx context.Context) ([]string, error)

	// ReadText returns the clipboard as UTF-8 text. It may be called more
	// than once; each call runs a fresh transfer from the current offers.
	ReadText(ctx context.Context) (string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// AnchorFunc establishes whatever client identity the compositor requires
// before it will share the selection, typically a mapped surface. It runs
// after the registry is synced and before the data device is created.
type AnchorFunc func(ctx context.Context, conn *wayland.Conn, reg *wayland.Registry) error

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Display overrides WAYLAND_DISPLAY.
	Display string
	Anchor  AnchorFunc
	Logger  *slog.Logger
}

// New opens the configured backend. The Wayland backend is the default;
// nothing falls back to another backend on failure.
func New(ctx context.Context, cfg Config) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case "", BackendWayland:
		b, err = openWayland(ctx, cfg)
	case BackendSystem:
		b, err = openSystem()
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q (want %s or %s)", cfg.Backend, BackendWayland, BackendSystem)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
