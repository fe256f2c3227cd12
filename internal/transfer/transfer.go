// Package transfer pulls an offer's bytes through a pipe.
//
// A fetch hands the write end of a fresh pipe to the offer's source via the
// server, waits one roundtrip so the request is processed, closes its own
// write end, and reads until EOF. The read end is closed on every path.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"go.klb.dev/superclip/internal/logging"
	"go.klb.dev/superclip/internal/offer"
)

// TextType is the only content type read.
const TextType = "text/plain;charset=utf-8"

const chunkSize = 4096

// Syncer is the connection barrier the pipeline waits on.
type Syncer interface {
	Roundtrip(ctx context.Context) error
}

// Pipeline fetches offer content for a Store.
type Pipeline struct {
	store *offer.Store
	sync  Syncer
	log   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

// New returns a pipeline reading offers from store and synchronising on s.
func New(store *offer.Store, s Syncer, opts ...Option) *Pipeline {
	p := &Pipeline{store: store, sync: s}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrDiscard(p.log)
	return p
}

// Select picks the content type to read. Only TextType qualifies.
func (p *Pipeline) Select() (string, error) {
	snap := p.store.Snapshot()
	if _, ok := snap[TextType]; !ok {
		return "", &NoSuitableContentError{Available: p.store.Types()}
	}
	return TextType, nil
}

// FetchText selects TextType and fetches it.
func (p *Pipeline) FetchText(ctx context.Context) (string, error) {
	mime, err := p.Select()
	if err != nil {
		return "", err
	}
	return p.Fetch(ctx, mime)
}

// Fetch reads the content the store maps to mime and decodes it as UTF-8.
func (p *Pipeline) Fetch(ctx context.Context, mime string) (string, error) {
	o, err := p.store.Lookup(mime)
	if err != nil {
		return "", err
	}
	data, err := p.receive(ctx, o, mime)
	if err != nil {
		o.Finish(err)
		return "", err
	}
	text, err := Decode(data)
	o.Finish(err)
	if err != nil {
		return "", err
	}
	p.log.Debug("transfer complete", "mime", mime, "bytes", len(data))
	return text, nil
}

func (p *Pipeline) receive(ctx context.Context, o *offer.Offer, mime string) ([]byte, error) {
	r, w, err := pipe()
	if err != nil {
		return nil, &TransferIOError{Op: "pipe", Err: err}
	}
	defer closeFD(r)

	p.log.Debug("requesting transfer", "mime", mime, "offer", o.Seq())
	if err := o.Receive(mime, w); err != nil {
		_ = closeFD(w)
		return nil, &TransferIOError{Op: "receive", Err: err}
	}
	if err := p.sync.Roundtrip(ctx); err != nil {
		_ = closeFD(w)
		return nil, err
	}
	// Our copy must go before reading, or EOF never arrives.
	if err := closeFD(w); err != nil {
		return nil, &TransferIOError{Op: "close", Err: err}
	}
	return drain(func(b []byte) (int, error) { return readFD(r, b) }, p.log)
}

// drain reads fixed-size chunks until a zero-length read.
func drain(read func([]byte) (int, error), log *slog.Logger) ([]byte, error) {
	var (
		out   []byte
		chunk = make([]byte, chunkSize)
	)
	for {
		n, err := read(chunk)
		if err != nil {
			if isInterrupted(err) {
				continue
			}
			return nil, &TransferIOError{Op: "read", Err: err}
		}
		if n == 0 {
			return out, nil
		}
		log.Debug("read chunk", "bytes", n)
		out = append(out, chunk[:n]...)
	}
}

// Decode validates data as UTF-8. Invalid input is discarded whole.
func Decode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	off := 0
	for off < len(data) {
		r, size := utf8.DecodeRune(data[off:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		off += size
	}
	return "", &EncodingError{Offset: off}
}

// ErrNoSuitableContent matches any *NoSuitableContentError under errors.Is.
var ErrNoSuitableContent = errors.New("no suitable data found")

// NoSuitableContentError reports that no offer advertises TextType.
type NoSuitableContentError struct {
	Available []string
}

func (e *NoSuitableContentError) Error() string { return ErrNoSuitableContent.Error() }

func (e *NoSuitableContentError) Is(target error) bool { return target == ErrNoSuitableContent }

// TransferIOError reports a failure moving bytes through the pipe.
type TransferIOError struct {
	Op  string
	Err error
}

func (e *TransferIOError) Error() string { return fmt.Sprintf("transfer %s: %v", e.Op, e.Err) }

func (e *TransferIOError) Unwrap() error { return e.Err }

// EncodingError reports clipboard bytes that are not valid UTF-8.
type EncodingError struct {
	Offset int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("clipboard data is not valid UTF-8 (first bad byte at offset %d)", e.Offset)
}
