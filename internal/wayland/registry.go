package wayland

import (
	"context"
	"fmt"

	"github.com/rajveermalviya/go-wayland/wayland/client"
)

// Global is one interface the server advertises.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Registry is the snapshot of globals taken during the initial roundtrip.
// Later global and global_remove events are traced but do not change it.
type Registry struct {
	conn    *Conn
	reg     *client.Registry
	globals []Global
	frozen  bool
}

// Registry binds wl_registry and waits one roundtrip for the globals.
func (c *Conn) Registry(ctx context.Context) (*Registry, error) {
	reg, err := c.display.GetRegistry()
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	r := &Registry{conn: c, reg: reg}
	reg.SetGlobalHandler(r.handleGlobal)
	reg.SetGlobalRemoveHandler(r.handleGlobalRemove)
	if err := c.Roundtrip(ctx); err != nil {
		return nil, err
	}
	r.frozen = true
	c.log.Debug("registry synced", "globals", len(r.globals))
	return r, nil
}

func (r *Registry) handleGlobal(e client.RegistryGlobalEvent) {
	g := Global{Name: e.Name, Interface: e.Interface, Version: e.Version}
	if r.frozen {
		r.conn.log.Debug("global added after sync", "interface", g.Interface, "version", g.Version)
		return
	}
	r.globals = append(r.globals, g)
}

func (r *Registry) handleGlobalRemove(e client.RegistryGlobalRemoveEvent) {
	r.conn.log.Debug("global removed", "name", e.Name)
}

// Globals returns the advertised globals in announcement order.
func (r *Registry) Globals() []Global {
	out := make([]Global, len(r.globals))
	copy(out, r.globals)
	return out
}

// Lookup returns the first global advertising iface.
func (r *Registry) Lookup(iface string) (Global, bool) {
	for _, g := range r.globals {
		if g.Interface == iface {
			return g, true
		}
	}
	return Global{}, false
}

// Bind binds iface at the highest version in [lo, hi] the server supports,
// using newProxy to create the client object, and returns that version. It
// fails with *MissingCapabilityError when the interface is absent or only
// advertised below lo.
//
//	seat, v, err := wayland.Bind(reg, "wl_seat", 1, 7, client.NewSeat)
func Bind[P client.Proxy](r *Registry, iface string, lo, hi uint32, newProxy func(*client.Context) P) (P, uint32, error) {
	var zero P
	g, ok := r.Lookup(iface)
	if !ok {
		return zero, 0, &MissingCapabilityError{Name: iface, Min: lo}
	}
	if g.Version < lo {
		return zero, 0, &MissingCapabilityError{Name: iface, Version: g.Version, Min: lo}
	}
	version := min(g.Version, hi)
	p := newProxy(r.conn.wctx)
	if err := r.reg.Bind(g.Name, iface, version, p); err != nil {
		return zero, 0, fmt.Errorf("bind %s: %w", iface, err)
	}
	r.conn.log.Debug("bound global", "interface", iface, "version", version, "id", p.ID())
	return p, version, nil
}
