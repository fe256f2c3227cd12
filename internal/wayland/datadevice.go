package wayland

import "github.com/rajveermalviya/go-wayland/wayland/client"

// Interface names and the version window the clipboard path accepts.
const (
	SeatInterface              = "wl_seat"
	DataDeviceManagerInterface = "wl_data_device_manager"
	DataDeviceInterface        = "wl_data_device"
	DataOfferInterface         = "wl_data_offer"

	MinVersion = 1
	MaxVersion = 10
)

// wl_data_device.release arrived in version 2.
const deviceReleaseSince = 2

// DataDevice is the per-seat wl_data_device through which clipboard offers
// arrive.
type DataDevice struct {
	dev     *client.DataDevice
	version uint32
}

// DataOffer is a server-created wl_data_offer.
type DataOffer struct {
	offer *client.DataOffer
}

// ResolveDataDevice binds the first advertised seat and the data-transfer
// manager and returns the seat's data device.
func ResolveDataDevice(r *Registry) (*DataDevice, error) {
	seat, _, err := Bind(r, SeatInterface, MinVersion, MaxVersion, client.NewSeat)
	if err != nil {
		return nil, err
	}
	manager, version, err := Bind(r, DataDeviceManagerInterface, MinVersion, MaxVersion, client.NewDataDeviceManager)
	if err != nil {
		return nil, err
	}
	dev, err := manager.GetDataDevice(seat)
	if err != nil {
		return nil, &RoundtripError{Err: err}
	}
	r.conn.log.Debug("data device created", "id", dev.ID(), "version", version)
	return &DataDevice{dev: dev, version: version}, nil
}

// ID returns the device's protocol object id.
func (d *DataDevice) ID() uint32 { return d.dev.ID() }

// OnDataOffer calls fn for every data_offer event. The offer object exists
// before fn runs and fn runs before any of the offer's own events are
// dispatched, so handlers installed by fn see all of them.
func (d *DataDevice) OnDataOffer(fn func(*DataOffer)) {
	d.dev.SetDataOfferHandler(func(e client.DataDeviceDataOfferEvent) {
		fn(&DataOffer{offer: e.Id})
	})
}

// Release destroys the data device on servers that support it.
func (d *DataDevice) Release() error {
	if d.version < deviceReleaseSince {
		return nil
	}
	return d.dev.Release()
}

// ID returns the offer's protocol object id.
func (o *DataOffer) ID() uint32 { return o.offer.ID() }

// OnOffer calls fn for every MIME type the offer advertises.
func (o *DataOffer) OnOffer(fn func(mime string)) {
	o.offer.SetOfferHandler(func(e client.DataOfferOfferEvent) { fn(e.MimeType) })
}

// Receive asks the source client to write the offer in format mime to fd.
// The request carries a duplicate of fd; the caller still owns and must
// close its copy.
func (o *DataOffer) Receive(mime string, fd int) error {
	return o.offer.Receive(mime, fd)
}

// Release destroys the offer.
func (o *DataOffer) Release() error {
	return o.offer.Destroy()
}
