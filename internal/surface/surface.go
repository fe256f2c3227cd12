// Package surface maps a throwaway 1x1 toplevel so the compositor treats
// the client as a regular window. Some compositors only hand the selection
// to clients that have one.
package surface

import (
	"context"
	"fmt"

	"github.com/rajveermalviya/go-wayland/wayland/client"
	xdg_shell "github.com/rajveermalviya/go-wayland/wayland/stable/xdg-shell"
	"golang.org/x/sys/unix"

	"go.klb.dev/superclip/internal/wayland"
)

// Title is the toplevel title and app id.
const Title = "superclip"

const (
	bufferWidth, bufferHeight = 1, 1
	bytesPerPixel             = 4
	formatARGB8888            = 0
)

// Establish creates the surface, gives it a toplevel role and maps it with
// a transparent 1x1 buffer. xdg_wm_base is preferred; wl_shell is used when
// the compositor lacks it.
func Establish(ctx context.Context, conn *wayland.Conn, reg *wayland.Registry) error {
	compositor, _, err := wayland.Bind(reg, "wl_compositor", 1, 4, client.NewCompositor)
	if err != nil {
		return err
	}
	shm, _, err := wayland.Bind(reg, "wl_shm", 1, 1, client.NewShm)
	if err != nil {
		return err
	}
	surf, err := compositor.CreateSurface()
	if err != nil {
		return fmt.Errorf("create surface: %w", err)
	}

	switch {
	case has(reg, "xdg_wm_base"):
		err = xdgToplevel(reg, surf)
	case has(reg, "wl_shell"):
		err = shellToplevel(reg, surf)
	default:
		return &wayland.MissingCapabilityError{Name: "xdg_wm_base", Min: 1}
	}
	if err != nil {
		return err
	}
	if err := conn.Roundtrip(ctx); err != nil {
		return err
	}

	buf, err := newBuffer(shm)
	if err != nil {
		return err
	}
	if err := surf.Attach(buf, 0, 0); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	if err := surf.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return conn.Roundtrip(ctx)
}

func has(reg *wayland.Registry, iface string) bool {
	_, ok := reg.Lookup(iface)
	return ok
}

// xdgToplevel assigns the xdg_toplevel role and sends the initial empty
// commit. The configure that follows is acked from its handler.
func xdgToplevel(reg *wayland.Registry, surf *client.Surface) error {
	wm, _, err := wayland.Bind(reg, "xdg_wm_base", 1, 2, xdg_shell.NewWmBase)
	if err != nil {
		return err
	}
	wm.SetPingHandler(func(e xdg_shell.WmBasePingEvent) { _ = wm.Pong(e.Serial) })

	xs, err := wm.GetXdgSurface(surf)
	if err != nil {
		return fmt.Errorf("get xdg surface: %w", err)
	}
	xs.SetConfigureHandler(func(e xdg_shell.SurfaceConfigureEvent) { _ = xs.AckConfigure(e.Serial) })

	toplevel, err := xs.GetToplevel()
	if err != nil {
		return fmt.Errorf("get toplevel: %w", err)
	}
	if err := toplevel.SetTitle(Title); err != nil {
		return err
	}
	if err := toplevel.SetAppId(Title); err != nil {
		return err
	}
	return surf.Commit()
}

func shellToplevel(reg *wayland.Registry, surf *client.Surface) error {
	shell, _, err := wayland.Bind(reg, "wl_shell", 1, 1, client.NewShell)
	if err != nil {
		return err
	}
	ss, err := shell.GetShellSurface(surf)
	if err != nil {
		return fmt.Errorf("get shell surface: %w", err)
	}
	ss.SetPingHandler(func(e client.ShellSurfacePingEvent) { _ = ss.Pong(e.Serial) })
	return ss.SetToplevel()
}

// newBuffer backs a 1x1 ARGB8888 wl_buffer with anonymous shared memory.
// The pool and our descriptor are released once the buffer exists.
func newBuffer(shm *client.Shm) (*client.Buffer, error) {
	const stride = bufferWidth * bytesPerPixel
	const size = stride * bufferHeight

	fd, err := sharedMemory(size)
	if err != nil {
		return nil, fmt.Errorf("shm buffer: %w", err)
	}
	defer unix.Close(fd)

	pool, err := shm.CreatePool(fd, size)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	buf, err := pool.CreateBuffer(0, bufferWidth, bufferHeight, stride, formatARGB8888)
	if err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}
	if err := pool.Destroy(); err != nil {
		return nil, err
	}
	return buf, nil
}
