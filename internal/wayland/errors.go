package wayland

import "fmt"

// ConnectionError reports that no display server endpoint could be reached.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot connect to wayland: %s: %v", e.Reason, e.Err)
	}
	return "cannot connect to wayland: " + e.Reason
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MissingCapabilityError reports a global the session does not advertise,
// or advertises below the version we need.
type MissingCapabilityError struct {
	Name    string
	Version uint32 // advertised version, 0 if absent
	Min     uint32
}

func (e *MissingCapabilityError) Error() string {
	if e.Version == 0 {
		return fmt.Sprintf("compositor does not advertise %s", e.Name)
	}
	return fmt.Sprintf("compositor advertises %s v%d, need at least v%d", e.Name, e.Version, e.Min)
}

// RoundtripError wraps any failure while waiting for a sync acknowledgement:
// socket I/O, a protocol error raised by the server, or cancellation.
type RoundtripError struct {
	Err error
}

func (e *RoundtripError) Error() string { return "roundtrip: " + e.Err.Error() }

func (e *RoundtripError) Unwrap() error { return e.Err }

// ProtocolError is a fatal wl_display.error sent by the server.
type ProtocolError struct {
	ObjectID uint32
	Code     uint32
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error on object %d (code %d): %s", e.ObjectID, e.Code, e.Message)
}
