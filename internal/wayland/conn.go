// Package wayland wraps go-wayland's client with what the clipboard path
// needs: endpoint resolution, context-bounded roundtrips, a registry
// snapshot with version-window binding, and typed errors.
//
// Nothing runs in the background. Events are read and their handlers invoked
// only inside Dispatch and Roundtrip, on the caller's goroutine, so handlers
// never run concurrently with each other or with the caller. A Conn is not
// safe for concurrent use.
package wayland

import (
	"context"
	"log/slog"
	"os"

	"github.com/rajveermalviya/go-wayland/wayland/client"

	"go.klb.dev/superclip/internal/logging"
)

type options struct {
	display string
	logger  *slog.Logger
	getenv  func(string) string
}

// Option configures Connect.
type Option func(*options)

// WithDisplay names the display to connect to, overriding WAYLAND_DISPLAY.
// Absolute paths are used as is. An explicit display also takes precedence
// over an inherited WAYLAND_SOCKET, which libwayland would check first.
func WithDisplay(name string) Option { return func(o *options) { o.display = name } }

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func withGetenv(f func(string) string) Option { return func(o *options) { o.getenv = f } }

// Conn is a connection to a Wayland display server.
type Conn struct {
	display *client.Display
	wctx    *client.Context
	log     *slog.Logger
	// err is sticky: a protocol error or an abandoned read ends the session.
	err    error
	closed bool
}

// Connect opens a connection to the session's display server. It fails with
// *ConnectionError when no endpoint is configured or reachable.
func Connect(opts ...Option) (*Conn, error) {
	o := options{getenv: os.Getenv}
	for _, opt := range opts {
		opt(&o)
	}
	path, err := resolveEndpoint(o.display, o.getenv)
	if err != nil {
		return nil, err
	}
	display, err := client.Connect(path)
	if err != nil {
		return nil, &ConnectionError{Reason: path, Err: err}
	}
	c := &Conn{
		display: display,
		wctx:    display.Context(),
		log:     logging.OrDiscard(o.logger),
	}
	display.SetErrorHandler(c.handleError)
	c.log.Debug("connected to display server", "path", path)
	return c, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.wctx.Close()
}

// DispatchPending handles events already read from the socket and queued
// client side. go-wayland dispatches each event as it reads it, so the
// queue is always empty: DispatchPending never blocks, never reads, and
// only reports a sticky connection error.
func (c *Conn) DispatchPending() error { return c.err }

// Dispatch blocks until one event arrives and handles it. A ctx that ends
// first abandons the read by closing the connection; the Conn is unusable
// afterwards and every later call returns the context's error.
func (c *Conn) Dispatch(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = c.wctx.Close()
	})
	err := c.wctx.Dispatch()
	if !stop() {
		<-fired
		c.closed = true
		c.err = ctx.Err()
		return c.err
	}
	if c.err != nil {
		return c.err
	}
	return err
}

// Roundtrip sends wl_display.sync and dispatches events until the matching
// wl_callback.done arrives. Every event the server queued before handling the
// sync has been delivered when Roundtrip returns.
//
// Roundtrip waits as long as ctx allows; with context.Background it blocks
// until the server answers.
func (c *Conn) Roundtrip(ctx context.Context) error {
	if c.err != nil {
		return &RoundtripError{Err: c.err}
	}
	cb, err := c.display.Sync()
	if err != nil {
		return &RoundtripError{Err: err}
	}
	defer func() { _ = cb.Destroy() }()

	done := false
	cb.SetDoneHandler(func(client.CallbackDoneEvent) { done = true })
	for !done {
		if err := c.Dispatch(ctx); err != nil {
			return &RoundtripError{Err: err}
		}
	}
	c.log.Debug("roundtrip complete", "callback", cb.ID())
	return nil
}

func (c *Conn) handleError(e client.DisplayErrorEvent) {
	pe := &ProtocolError{Code: e.Code, Message: e.Message}
	if e.ObjectId != nil {
		pe.ObjectID = e.ObjectId.ID()
	}
	c.err = pe
}
