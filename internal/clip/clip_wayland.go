package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.klb.dev/superclip/internal/logging"
	"go.klb.dev/superclip/internal/offer"
	"go.klb.dev/superclip/internal/transfer"
	"go.klb.dev/superclip/internal/wayland"
)

// settleRoundtrips is how many barriers follow subscription before the store
// is read: the first surfaces data_offer, the second that offer's types.
const settleRoundtrips = 2

type waylandBackend struct {
	conn     *wayland.Conn
	device   *wayland.DataDevice
	store    *offer.Store
	pipeline *transfer.Pipeline
	log      *slog.Logger
}

func openWayland(ctx context.Context, cfg Config) (_ *waylandBackend, err error) {
	log := logging.OrDiscard(cfg.Logger)

	conn, err := wayland.Connect(wayland.WithDisplay(cfg.Display), wayland.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = conn.Close()
		}
	}()
	return newWayland(ctx, conn, cfg.Anchor, log)
}

func newWayland(ctx context.Context, conn *wayland.Conn, anchor AnchorFunc, log *slog.Logger) (*waylandBackend, error) {
	reg, err := conn.Registry(ctx)
	if err != nil {
		return nil, err
	}
	if anchor != nil {
		if err := anchor(ctx, conn, reg); err != nil {
			return nil, fmt.Errorf("anchor surface: %w", err)
		}
	}
	device, err := wayland.ResolveDataDevice(reg)
	if err != nil {
		return nil, err
	}

	b := &waylandBackend{
		conn:   conn,
		device: device,
		store:  offer.NewStore(log),
		log:    log,
	}
	b.pipeline = transfer.New(b.store, conn, transfer.WithLogger(log))
	b.track()

	for i := 0; i < settleRoundtrips; i++ {
		if err := conn.Roundtrip(ctx); err != nil {
			return nil, err
		}
		log.Debug("offers settled", "roundtrip", i+1, "types", len(b.store.Types()))
	}
	return b, nil
}

// track subscribes the store to the data device. Each new offer gets its
// type handler inside the data_offer callback, before control returns to
// the dispatch loop, so none of its offer events are missed.
func (b *waylandBackend) track() {
	b.device.OnDataOffer(func(o *wayland.DataOffer) {
		tracked := b.store.Announce(o)
		o.OnOffer(func(mime string) { b.store.Advertise(tracked, mime) })
		b.log.Debug("offer announced", "offer", o.ID(), "seq", tracked.Seq())
	})
}

func (b *waylandBackend) Name() string { return "Wayland data device" }

func (b *waylandBackend) Types(context.Context) ([]string, error) {
	return b.store.Types(), nil
}

func (b *waylandBackend) ReadText(ctx context.Context) (string, error) {
	return b.pipeline.FetchText(ctx)
}

// Close destroys the offers and the data device, then disconnects.
func (b *waylandBackend) Close() error {
	var errs []error
	for _, o := range b.store.Offers() {
		if d, ok := o.Handle().(*wayland.DataOffer); ok {
			errs = append(errs, d.Release())
		}
	}
	errs = append(errs, b.device.Release())
	errs = append(errs, b.conn.Close())
	return errors.Join(errs...)
}
