package wayland

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rajveermalviya/go-wayland/wayland/client"

	"go.klb.dev/superclip/internal/wayland/wltest"
)

// Request opcodes as the fake server records them.
const (
	displaySync          = 0
	registryBind         = 0
	managerGetDataDevice = 1
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		display  string
		env      map[string]string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "relative display under runtime dir",
			env:      map[string]string{"WAYLAND_DISPLAY": "wayland-1", "XDG_RUNTIME_DIR": "/run/user/1000"},
			wantPath: "/run/user/1000/wayland-1",
		},
		{
			name:     "absolute display",
			env:      map[string]string{"WAYLAND_DISPLAY": "/tmp/wl.sock"},
			wantPath: "/tmp/wl.sock",
		},
		{
			name:     "explicit display wins over environment",
			display:  "wayland-9",
			env:      map[string]string{"WAYLAND_SOCKET": "7", "WAYLAND_DISPLAY": "wayland-0", "XDG_RUNTIME_DIR": "/run"},
			wantPath: "/run/wayland-9",
		},
		{
			name:    "inherited socket refused",
			env:     map[string]string{"WAYLAND_SOCKET": "7", "WAYLAND_DISPLAY": "wayland-0", "XDG_RUNTIME_DIR": "/run"},
			wantErr: true,
		},
		{
			name:    "no display",
			env:     map[string]string{"XDG_RUNTIME_DIR": "/run"},
			wantErr: true,
		},
		{
			name:    "relative display without runtime dir",
			env:     map[string]string{"WAYLAND_DISPLAY": "wayland-0"},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path, err := resolveEndpoint(tc.display, env(tc.env))
			if tc.wantErr {
				var ce *ConnectionError
				if !errors.As(err, &ce) {
					t.Fatalf("err = %v, want *ConnectionError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveEndpoint: %v", err)
			}
			if path != tc.wantPath {
				t.Fatalf("path = %q, want %q", path, tc.wantPath)
			}
		})
	}
}

func TestConnectWithoutDisplay(t *testing.T) {
	_, err := Connect(withGetenv(env(nil)))
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("Connect = %v, want *ConnectionError", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	_, err := Connect(WithDisplay(t.TempDir() + "/wayland-gone"))
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("Connect = %v, want *ConnectionError", err)
	}
}

func TestConnectViaRuntimeDir(t *testing.T) {
	dir := t.TempDir()
	srv := &wltest.Server{}
	srv.Listen(t, dir, "wayland-test")

	c, err := Connect(withGetenv(env(map[string]string{
		"WAYLAND_DISPLAY": "wayland-test",
		"XDG_RUNTIME_DIR": dir,
	})))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	if err := c.Roundtrip(context.Background()); err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	if got := len(srv.Find("wl_display", displaySync)); got != 1 {
		t.Fatalf("server saw %d syncs, want 1", got)
	}
}

func TestWithDisplayOverridesEnvironment(t *testing.T) {
	srv := &wltest.Server{}
	path := srv.Start(t)

	c, err := Connect(WithDisplay(path), withGetenv(env(map[string]string{
		"WAYLAND_SOCKET":  "3",
		"WAYLAND_DISPLAY": "wayland-elsewhere",
		"XDG_RUNTIME_DIR": t.TempDir(),
	})))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()
	if err := c.Roundtrip(context.Background()); err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
}

func newTestConn(t *testing.T, srv *wltest.Server) *Conn {
	t.Helper()
	c, err := Connect(WithDisplay(srv.Start(t)))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRegistrySnapshot(t *testing.T) {
	srv := &wltest.Server{}
	c := newTestConn(t, srv)

	reg, err := c.Registry(context.Background())
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	globals := reg.Globals()
	if len(globals) != len(wltest.DefaultGlobals()) {
		t.Fatalf("got %d globals, want %d", len(globals), len(wltest.DefaultGlobals()))
	}
	g, ok := reg.Lookup(SeatInterface)
	if !ok || g.Version != 7 {
		t.Fatalf("Lookup(wl_seat) = %+v, %v", g, ok)
	}
	if _, ok := reg.Lookup("zwp_nothing"); ok {
		t.Fatal("Lookup found an unadvertised interface")
	}
}

func TestBindClampsVersion(t *testing.T) {
	srv := &wltest.Server{}
	c := newTestConn(t, srv)
	reg, err := c.Registry(context.Background())
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}

	_, v, err := Bind(reg, SeatInterface, 1, 5, client.NewSeat)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if v != 5 {
		t.Fatalf("version = %d, want 5 (clamped)", v)
	}
	_, v, err = Bind(reg, DataDeviceManagerInterface, MinVersion, MaxVersion, client.NewDataDeviceManager)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if v != 3 {
		t.Fatalf("version = %d, want 3 (advertised)", v)
	}
	if err := c.Roundtrip(context.Background()); err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	binds := srv.Find("wl_registry", registryBind)
	if len(binds) != 2 || binds[0].Detail != uint32(5) || binds[1].Detail != uint32(3) {
		t.Fatalf("server binds = %+v", binds)
	}

	_, _, err = Bind(reg, SeatInterface, 8, 10, client.NewSeat)
	var mce *MissingCapabilityError
	if !errors.As(err, &mce) || mce.Version != 7 || mce.Min != 8 {
		t.Fatalf("Bind above advertised = %v", err)
	}
}

func TestResolveDataDeviceMissingManager(t *testing.T) {
	srv := &wltest.Server{Globals: []wltest.Global{{Interface: "wl_seat", Version: 5}}}
	c := newTestConn(t, srv)
	reg, err := c.Registry(context.Background())
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	_, err = ResolveDataDevice(reg)
	var mce *MissingCapabilityError
	if !errors.As(err, &mce) {
		t.Fatalf("err = %v, want *MissingCapabilityError", err)
	}
	if mce.Name != DataDeviceManagerInterface {
		t.Fatalf("missing = %q", mce.Name)
	}
}

func TestDataOfferEventsReachSubscriber(t *testing.T) {
	srv := &wltest.Server{
		Staggered: true,
		Offers:    []wltest.Offer{{Types: []string{"text/plain", "text/html"}}},
	}
	c := newTestConn(t, srv)
	reg, err := c.Registry(context.Background())
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	dev, err := ResolveDataDevice(reg)
	if err != nil {
		t.Fatalf("ResolveDataDevice: %v", err)
	}

	var offers []*DataOffer
	var types []string
	dev.OnDataOffer(func(o *DataOffer) {
		offers = append(offers, o)
		o.OnOffer(func(mime string) { types = append(types, mime) })
	})

	if err := c.Roundtrip(context.Background()); err != nil {
		t.Fatalf("first Roundtrip: %v", err)
	}
	if len(offers) != 1 || len(types) != 0 {
		t.Fatalf("after first roundtrip: %d offers, types %v", len(offers), types)
	}
	if err := c.Roundtrip(context.Background()); err != nil {
		t.Fatalf("second Roundtrip: %v", err)
	}
	if len(types) != 2 || types[0] != "text/plain" || types[1] != "text/html" {
		t.Fatalf("types = %v", types)
	}
}

func TestDispatchPendingDoesNotRead(t *testing.T) {
	srv := &wltest.Server{Offers: []wltest.Offer{{Types: []string{"text/plain"}}}}
	c := newTestConn(t, srv)
	reg, err := c.Registry(context.Background())
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	dev, err := ResolveDataDevice(reg)
	if err != nil {
		t.Fatalf("ResolveDataDevice: %v", err)
	}
	var offers int
	dev.OnDataOffer(func(*DataOffer) { offers++ })

	// Wait until the server has answered get_data_device, so the offer
	// events sit unread in the socket.
	deadline := time.Now().Add(5 * time.Second)
	for len(srv.Find(DataDeviceManagerInterface, managerGetDataDevice)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never saw get_data_device")
		}
		time.Sleep(5 * time.Millisecond)
	}

	done := make(chan error, 1)
	go func() { done <- c.DispatchPending() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("DispatchPending: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("DispatchPending blocked with nothing buffered")
	}
	if offers != 0 {
		t.Fatalf("DispatchPending handled %d unread offers", offers)
	}

	if err := c.Roundtrip(context.Background()); err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	if offers != 1 {
		t.Fatalf("offers after roundtrip = %d, want 1", offers)
	}
}

func TestRoundtripHonorsDeadline(t *testing.T) {
	srv := &wltest.Server{Mute: true}
	c := newTestConn(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Roundtrip(ctx)
	var rte *RoundtripError
	if !errors.As(err, &rte) {
		t.Fatalf("err = %v, want *RoundtripError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRoundtripHonorsCancel(t *testing.T) {
	srv := &wltest.Server{Mute: true}
	c := newTestConn(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	if err := c.Roundtrip(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// The abandoned read closed the connection; later calls must not touch it.
	if err := c.Dispatch(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Dispatch after cancel = %v, want sticky context.Canceled", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close after cancel: %v", err)
	}
}

func TestProtocolErrorIsFatal(t *testing.T) {
	srv := &wltest.Server{FailReceive: true, Offers: []wltest.Offer{{Types: []string{"text/plain"}}}}
	c := newTestConn(t, srv)
	reg, err := c.Registry(context.Background())
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	dev, err := ResolveDataDevice(reg)
	if err != nil {
		t.Fatalf("ResolveDataDevice: %v", err)
	}
	var offer *DataOffer
	dev.OnDataOffer(func(o *DataOffer) { offer = o })
	if err := c.Roundtrip(context.Background()); err != nil {
		t.Fatalf("Roundtrip: %v", err)
	}
	if offer == nil {
		t.Fatal("no offer announced")
	}

	r, w, err := pipeForTest()
	if err != nil {
		t.Fatal(err)
	}
	defer closeForTest(r)
	if err := offer.Receive("text/plain", w); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	closeForTest(w)

	err = c.Roundtrip(context.Background())
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ProtocolError", err)
	}
	if pe.ObjectID != offer.ID() || pe.Message != "receive refused" {
		t.Fatalf("protocol error = %+v", pe)
	}
	// The connection is dead from here on.
	if err := c.Roundtrip(context.Background()); !errors.As(err, &pe) {
		t.Fatalf("second Roundtrip = %v, want sticky protocol error", err)
	}
}
