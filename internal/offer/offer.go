// Package offer tracks clipboard offers as the display server announces them.
//
// The Store is filled from event handlers running inside the connection's
// dispatch and read by the caller between dispatches. Each insert and read
// takes the store lock for just that operation.
package offer

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"go.klb.dev/superclip/internal/logging"
)

// Handle is the protocol object behind an offer.
type Handle interface {
	// Receive asks for the offer's content in format mime, written to fd.
	Receive(mime string, fd int) error
}

// State is where an offer is in its lifecycle.
type State int

const (
	Announced State = iota
	TypesRegistering
	TransferRequested
	TransferComplete
	TransferFailed
)

func (s State) String() string {
	switch s {
	case Announced:
		return "announced"
	case TypesRegistering:
		return "types-registering"
	case TransferRequested:
		return "transfer-requested"
	case TransferComplete:
		return "transfer-complete"
	case TransferFailed:
		return "transfer-failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Offer is one announced clipboard offer. Offers are identified by pointer.
type Offer struct {
	handle Handle
	seq    int

	mu    sync.Mutex
	types []string
	state State
}

// Handle returns the protocol object.
func (o *Offer) Handle() Handle { return o.handle }

// Seq is the offer's position in announcement order, starting at 0.
func (o *Offer) Seq() int { return o.seq }

// Types returns the advertised MIME types in arrival order.
func (o *Offer) Types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.types)
}

// State returns the current lifecycle state.
func (o *Offer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Offer) addType(mime string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Announced {
		o.state = TypesRegistering
	}
	if !slices.Contains(o.types, mime) {
		o.types = append(o.types, mime)
	}
}

// Receive requests the content in format mime and moves the offer to
// TransferRequested. A failed request marks the offer TransferFailed.
// Only one transfer may be in flight; once it is finished the offer can be
// asked again, since the source keeps serving it until it is replaced.
func (o *Offer) Receive(mime string, fd int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == TransferRequested {
		return fmt.Errorf("offer already %s", o.state)
	}
	if err := o.handle.Receive(mime, fd); err != nil {
		o.state = TransferFailed
		return err
	}
	o.state = TransferRequested
	return nil
}

// Finish records the outcome of a requested transfer.
func (o *Offer) Finish(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.state = TransferFailed
		return
	}
	o.state = TransferComplete
}

// NoSuchOfferError reports a lookup for a type no offer advertised.
type NoSuchOfferError struct {
	Type string
}

func (e *NoSuchOfferError) Error() string {
	return fmt.Sprintf("no offer advertises %q", e.Type)
}

// Store maps each advertised MIME type to the offer that most recently
// advertised it.
type Store struct {
	log *slog.Logger

	mu     sync.Mutex
	byType map[string]*Offer
	offers []*Offer
}

// NewStore returns an empty store. log may be nil.
func NewStore(log *slog.Logger) *Store {
	return &Store{
		log:    logging.OrDiscard(log),
		byType: make(map[string]*Offer),
	}
}

// Announce starts tracking a newly announced offer.
func (s *Store) Announce(h Handle) *Offer {
	s.mu.Lock()
	o := &Offer{handle: h, seq: len(s.offers)}
	s.offers = append(s.offers, o)
	s.mu.Unlock()

	s.log.Debug("offer announced", "seq", o.seq)
	return o
}

// Advertise records that o offers mime. A later advertisement of the same
// type by any offer replaces the earlier mapping.
func (s *Store) Advertise(o *Offer, mime string) {
	o.addType(mime)

	s.mu.Lock()
	prev := s.byType[mime]
	s.byType[mime] = o
	s.mu.Unlock()

	if prev != nil && prev != o {
		s.log.Debug("type re-advertised", "mime", mime, "from", prev.seq, "to", o.seq)
		return
	}
	s.log.Debug("type advertised", "mime", mime, "offer", o.seq)
}

// Lookup returns the offer currently mapped to mime.
func (s *Store) Lookup(mime string) (*Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byType[mime]
	if !ok {
		return nil, &NoSuchOfferError{Type: mime}
	}
	return o, nil
}

// Snapshot copies the type mapping.
func (s *Store) Snapshot() map[string]*Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byType)
}

// Types returns every advertised type, sorted.
func (s *Store) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.byType))
}

// Offers returns every announced offer in announcement order.
func (s *Store) Offers() []*Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.offers)
}
