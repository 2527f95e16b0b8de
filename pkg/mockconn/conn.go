package mockconn

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	stateClosed  = 1
	stateOpening = 0
)

type mockAddr string

func (m mockAddr) Network() string {
	return "tcp"
}
func (m mockAddr) String() string {
	return string(m)
}

// MockConn mock tcp conn replaying canned server replies.
type MockConn struct {
	addr mockAddr

	lock sync.Mutex
	rbuf *bytes.Buffer
	wbuf *bytes.Buffer

	Err    error
	closed int32
}

// Read serves the canned replies and io.EOF once they are used up.
func (m *MockConn) Read(b []byte) (n int, err error) {
	if atomic.LoadInt32(&m.closed) == stateClosed {
		return 0, io.EOF
	}
	if m.Err != nil {
		return 0, m.Err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.rbuf.Read(b)
}

func (m *MockConn) Write(b []byte) (n int, err error) {
	if atomic.LoadInt32(&m.closed) == stateClosed {
		return 0, io.EOF
	}
	if m.Err != nil {
		return 0, m.Err
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.wbuf.Write(b)
}

// Close marks the conn closed.
func (m *MockConn) Close() error {
	atomic.StoreInt32(&m.closed, stateClosed)
	return nil
}

// Closed reports whether Close was called.
func (m *MockConn) Closed() bool {
	return atomic.LoadInt32(&m.closed) == stateClosed
}

// Written returns everything written so far.
func (m *MockConn) Written() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.wbuf.String()
}

func (m *MockConn) LocalAddr() net.Addr  { return m.addr }
func (m *MockConn) RemoteAddr() net.Addr { return m.addr }

func (m *MockConn) SetDeadline(t time.Time) error      { return nil }
func (m *MockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *MockConn) SetWriteDeadline(t time.Time) error { return nil }

// CreateConn returns a conn whose reads yield the given raw RESP replies in
// order.
func CreateConn(replies ...string) *MockConn {
	return CreateConnAt("127.0.0.1:6379", replies...)
}

// CreateConnAt is CreateConn with a remote address.
func CreateConnAt(addr string, replies ...string) *MockConn {
	return &MockConn{
		addr: mockAddr(addr),
		rbuf: bytes.NewBufferString(strings.Join(replies, "")),
		wbuf: new(bytes.Buffer),
	}
}

// Dialer hands out one prepared conn per address. Dialing an unknown
// address fails with ErrRefused.
type Dialer struct {
	lock  sync.Mutex
	conns map[string][]*MockConn
	dials []string
}

// ErrRefused is returned for addresses without a prepared conn.
var ErrRefused = &net.OpError{Op: "dial", Net: "tcp", Err: io.ErrUnexpectedEOF}

// NewDialer returns an empty dialer.
func NewDialer() *Dialer {
	return &Dialer{conns: make(map[string][]*MockConn)}
}

// Add prepares a conn for addr replaying replies.
func (d *Dialer) Add(addr string, replies ...string) *MockConn {
	d.lock.Lock()
	defer d.lock.Unlock()
	c := CreateConnAt(addr, replies...)
	d.conns[addr] = append(d.conns[addr], c)
	return c
}

// Dial pops the next prepared conn of addr.
func (d *Dialer) Dial(network, addr string) (net.Conn, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.dials = append(d.dials, addr)
	cs := d.conns[addr]
	if len(cs) == 0 {
		return nil, ErrRefused
	}
	d.conns[addr] = cs[1:]
	return cs[0], nil
}

// Dials returns the dialed addresses in order.
func (d *Dialer) Dials() []string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]string(nil), d.dials...)
}
