// Package wltest provides an in-process Wayland compositor for tests.
//
// The server speaks the real wire format over a socket and implements just
// enough of wl_display, wl_registry, the data-device family and the surface
// interfaces for clipboard reads: it announces the configured offers when a
// data device is created and writes offer payloads into the descriptors it
// receives.
package wltest

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

const serverIDBase = 0xff000000

// Global is an advertised interface.
type Global struct {
	Interface string
	Version   uint32
}

// Offer is a clipboard offer the server announces.
type Offer struct {
	Types []string
	// Data maps a MIME type to the bytes written on receive. Types absent
	// from Data produce an empty transfer.
	Data map[string][]byte
}

// Request is a client request the server observed.
type Request struct {
	Interface string
	Object    uint32
	Opcode    uint16
	// Detail carries the interesting argument, if any: the MIME type of a
	// receive, the title of set_title, the serial of ack_configure/pong.
	Detail any
}

// Server is a fake compositor. Configure the exported fields, then call
// Start or Listen.
type Server struct {
	Globals []Global
	Offers  []Offer

	// Staggered holds back each offer's type events until the next sync,
	// so clients see data_offer and its types in separate roundtrips.
	Staggered bool

	// Mute makes the server swallow sync requests without answering.
	Mute bool

	// FailReceive answers wl_data_offer.receive with a protocol error.
	FailReceive bool

	// ConfigureSerial is sent with xdg_surface.configure.
	ConfigureSerial uint32

	// PingSerial, when non-zero, is sent as a ping once a shell surface exists.
	PingSerial uint32

	mu       sync.Mutex
	requests []Request

	sock     *socket
	objects  map[uint32]string
	offerIDs map[uint32]Offer
	nextID   uint32
	serial   uint32
	// Held-back events: deferred moves to ready at one sync and is
	// written at the next.
	deferred []*msg
	ready    []*msg
	writers  sync.WaitGroup
}

// DefaultGlobals is a compositor exposing everything superclip binds.
func DefaultGlobals() []Global {
	return []Global{
		{"wl_compositor", 4},
		{"wl_shm", 1},
		{"wl_seat", 7},
		{"wl_data_device_manager", 3},
		{"xdg_wm_base", 2},
	}
}

// Start serves a single client on a socket in a fresh temporary directory
// and returns the socket's absolute path.
func (s *Server) Start(t testing.TB) string {
	t.Helper()
	return s.Listen(t, t.TempDir(), "wayland-test")
}

// Listen serves a single client on a socket named name inside dir and
// returns the socket path.
func (s *Server) Listen(t testing.TB, dir, name string) string {
	t.Helper()
	if s.Globals == nil {
		s.Globals = DefaultGlobals()
	}
	s.objects = map[uint32]string{1: "wl_display"}
	s.offerIDs = make(map[uint32]Offer)
	s.nextID = serverIDBase

	path := filepath.Join(dir, name)
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatalf("wltest: listen: %v", err)
	}
	accepted := make(chan *socket, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		uc, err := ln.AcceptUnix()
		_ = ln.Close()
		if err != nil {
			close(accepted)
			return
		}
		s.sock = newSocket(uc)
		accepted <- s.sock
		s.serve()
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		sock, ok := <-accepted
		if ok {
			_ = sock.conn.Close()
		}
		<-done
		if ok {
			sock.closeFDs()
		}
		s.writers.Wait()
		_ = os.Remove(path)
	})
	return path
}

// Requests returns every request handled so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Find returns the requests matching iface and opcode.
func (s *Server) Find(iface string, opcode uint16) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Interface == iface && r.Opcode == opcode {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(r Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.mu.Unlock()
}

func (s *Server) serve() {
	for {
		m, err := s.sock.read()
		if err != nil {
			return
		}
		if err := s.handle(m); err != nil {
			return
		}
	}
}

func (s *Server) send(m *msg) error {
	return s.sock.write(m)
}

func (s *Server) newServerID(iface string) uint32 {
	id := s.nextID
	s.nextID++
	s.objects[id] = iface
	return id
}

func (s *Server) protocolError(object, code uint32, text string) error {
	_ = s.send(event(1, 0).uint(object).uint(code).str(text))
	return errors.New(text)
}

func (s *Server) handle(m *msg) error {
	iface, ok := s.objects[m.sender]
	if !ok {
		return s.protocolError(1, 0, "invalid object")
	}
	r := &args{m: m, fds: &s.sock.fds}
	req := Request{Interface: iface, Object: m.sender, Opcode: m.opcode}
	defer func() { s.record(req) }()

	switch iface {
	case "wl_display":
		id := r.uint()
		switch m.opcode {
		case 0: // sync
			s.objects[id] = "wl_callback"
			if s.Mute {
				return nil
			}
			for _, ev := range s.ready {
				if err := s.send(ev); err != nil {
					return err
				}
			}
			s.ready, s.deferred = s.deferred, nil
			s.serial++
			if err := s.send(event(id, 0).uint(s.serial)); err != nil {
				return err
			}
			delete(s.objects, id)
			return s.send(event(1, 1).uint(id))
		case 1: // get_registry
			s.objects[id] = "wl_registry"
			for i, g := range s.Globals {
				if err := s.send(event(id, 0).uint(uint32(i + 1)).str(g.Interface).uint(g.Version)); err != nil {
					return err
				}
			}
		}

	case "wl_registry":
		if m.opcode == 0 { // bind
			name := r.uint()
			bound := r.str()
			version := r.uint()
			id := r.uint()
			if name == 0 || int(name) > len(s.Globals) || s.Globals[name-1].Interface != bound {
				return s.protocolError(m.sender, 0, "invalid global")
			}
			s.objects[id] = bound
			req.Detail = version
		}

	case "wl_data_device_manager":
		if m.opcode == 1 { // get_data_device
			id := r.uint()
			s.objects[id] = "wl_data_device"
			return s.announceOffers(id)
		}

	case "wl_data_offer":
		switch m.opcode {
		case 1: // receive
			mime := r.str()
			fd := r.fd()
			if err := r.err; err != nil {
				return err
			}
			req.Detail = mime
			if s.FailReceive {
				_ = unix.Close(fd)
				return s.protocolError(m.sender, 1, "receive refused")
			}
			s.write(fd, s.offerIDs[m.sender].Data[mime])
		case 2: // destroy
			delete(s.objects, m.sender)
		}

	case "wl_compositor":
		if m.opcode == 0 { // create_surface
			s.objects[r.uint()] = "wl_surface"
		}

	case "wl_shm":
		if m.opcode == 0 { // create_pool
			id := r.uint()
			fd := r.fd()
			size := r.int()
			if fd >= 0 {
				_ = unix.Close(fd)
			}
			s.objects[id] = "wl_shm_pool"
			req.Detail = size
		}

	case "wl_shm_pool":
		if m.opcode == 0 { // create_buffer
			s.objects[r.uint()] = "wl_buffer"
		}

	case "xdg_wm_base":
		switch m.opcode {
		case 2: // get_xdg_surface
			s.objects[r.uint()] = "xdg_surface"
		case 3: // pong
			req.Detail = r.uint()
		}

	case "xdg_surface":
		switch m.opcode {
		case 1: // get_toplevel
			id := r.uint()
			s.objects[id] = "xdg_toplevel"
			if s.PingSerial != 0 {
				if wm, ok := s.find("xdg_wm_base"); ok {
					if err := s.send(event(wm, 0).uint(s.PingSerial)); err != nil {
						return err
					}
				}
			}
			return s.send(event(m.sender, 0).uint(s.ConfigureSerial))
		case 4: // ack_configure
			req.Detail = r.uint()
		}

	case "xdg_toplevel":
		if m.opcode == 2 || m.opcode == 3 { // set_title, set_app_id
			req.Detail = r.str()
		}

	case "wl_shell":
		if m.opcode == 0 { // get_shell_surface
			id := r.uint()
			s.objects[id] = "wl_shell_surface"
			if s.PingSerial != 0 {
				return s.send(event(id, 0).uint(s.PingSerial))
			}
		}

	case "wl_shell_surface":
		if m.opcode == 0 { // pong
			req.Detail = r.uint()
		}
	}
	return nil
}

func (s *Server) find(iface string) (uint32, bool) {
	for id, name := range s.objects {
		if name == iface {
			return id, true
		}
	}
	return 0, false
}

func (s *Server) announceOffers(device uint32) error {
	var last uint32
	for _, o := range s.Offers {
		id := s.newServerID("wl_data_offer")
		s.offerIDs[id] = o
		last = id
		if err := s.send(event(device, 0).uint(id)); err != nil {
			return err
		}
		for _, mime := range o.Types {
			ev := event(id, 0).str(mime)
			if s.Staggered {
				s.deferred = append(s.deferred, ev)
				continue
			}
			if err := s.send(ev); err != nil {
				return err
			}
		}
	}
	sel := event(device, 5).uint(last)
	if s.Staggered {
		s.deferred = append(s.deferred, sel)
		return nil
	}
	return s.send(sel)
}

// write plays the source client: it fills fd from a goroutine and closes it,
// as a real source would after the compositor forwards the descriptor.
func (s *Server) write(fd int, data []byte) {
	s.writers.Add(1)
	go func() {
		defer s.writers.Done()
		f := os.NewFile(uintptr(fd), "wltest-transfer")
		defer f.Close()
		_, _ = f.Write(data)
	}()
}
