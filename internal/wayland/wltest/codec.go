package wltest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

const headerSize = 8

var order = binary.NativeEndian

var errNoFD = errors.New("wltest: request names an fd but none arrived")

// msg is one decoded request or an event waiting to be written.
type msg struct {
	sender  uint32
	opcode  uint16
	payload []byte
	fds     []int
}

// event starts an event on sender.
func event(sender uint32, opcode uint16) *msg { return &msg{sender: sender, opcode: opcode} }

func (m *msg) uint(v uint32) *msg {
	m.payload = order.AppendUint32(m.payload, v)
	return m
}

func (m *msg) str(s string) *msg {
	m.uint(uint32(len(s) + 1))
	m.payload = append(m.payload, s...)
	m.payload = append(m.payload, 0)
	for len(m.payload)%4 != 0 {
		m.payload = append(m.payload, 0)
	}
	return m
}

func (m *msg) encode() []byte {
	b := make([]byte, headerSize, headerSize+len(m.payload))
	order.PutUint32(b[0:4], m.sender)
	order.PutUint32(b[4:8], uint32(headerSize+len(m.payload))<<16|uint32(m.opcode))
	return append(b, m.payload...)
}

// args reads request arguments in order. The first failure sticks.
type args struct {
	m   *msg
	off int
	fds *[]int
	err error
}

func (a *args) uint() uint32 {
	if a.err != nil {
		return 0
	}
	if a.off+4 > len(a.m.payload) {
		a.err = io.ErrUnexpectedEOF
		return 0
	}
	v := order.Uint32(a.m.payload[a.off:])
	a.off += 4
	return v
}

func (a *args) int() int32 { return int32(a.uint()) }

func (a *args) str() string {
	n := int(a.uint())
	if a.err != nil || n == 0 {
		return ""
	}
	padded := (n + 3) &^ 3
	if a.off+padded > len(a.m.payload) {
		a.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(a.m.payload[a.off : a.off+n-1])
	a.off += padded
	return s
}

func (a *args) fd() int {
	if a.err != nil {
		return -1
	}
	if len(*a.fds) == 0 {
		a.err = errNoFD
		return -1
	}
	fd := (*a.fds)[0]
	*a.fds = (*a.fds)[1:]
	return fd
}

// socket frames messages on the server end of a client connection.
type socket struct {
	conn *net.UnixConn
	buf  []byte
	fds  []int
	rbuf []byte
	oob  []byte
}

func newSocket(conn *net.UnixConn) *socket {
	return &socket{
		conn: conn,
		rbuf: make([]byte, 16<<10),
		oob:  make([]byte, unix.CmsgSpace(28*4)),
	}
}

func (s *socket) write(m *msg) error {
	_, err := s.conn.Write(m.encode())
	return err
}

func (s *socket) read() (*msg, error) {
	for {
		if len(s.buf) >= headerSize {
			word := order.Uint32(s.buf[4:8])
			size := int(word >> 16)
			if size < headerSize || size%4 != 0 {
				return nil, fmt.Errorf("wltest: bad message size %d", size)
			}
			if len(s.buf) >= size {
				m := &msg{
					sender:  order.Uint32(s.buf[0:4]),
					opcode:  uint16(word),
					payload: append([]byte(nil), s.buf[headerSize:size]...),
				}
				s.buf = s.buf[size:]
				return m, nil
			}
		}
		n, oobn, _, _, err := s.conn.ReadMsgUnix(s.rbuf, s.oob)
		if oobn > 0 {
			s.takeRights(s.oob[:oobn])
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, io.EOF
		}
		s.buf = append(s.buf, s.rbuf[:n]...)
	}
}

func (s *socket) takeRights(oob []byte) {
	cmsgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return
	}
	for i := range cmsgs {
		if fds, err := unix.ParseUnixRights(&cmsgs[i]); err == nil {
			s.fds = append(s.fds, fds...)
		}
	}
}

// closeFDs closes descriptors that arrived but no request claimed.
func (s *socket) closeFDs() {
	for _, fd := range s.fds {
		_ = unix.Close(fd)
	}
	s.fds = nil
}
