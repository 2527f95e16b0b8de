package cluster

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"embedvalkey/pkg/conf"
	"embedvalkey/pkg/installation"
)

// recorder keeps the order of node events across nodes.
type recorder struct {
	lock   sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.events...)
}

type fakeNode struct {
	port     int
	rec      *recorder
	active   bool
	startErr error
	stopErr  error
}

func newFakeNode(rec *recorder, port int) *fakeNode {
	return &fakeNode{port: port, rec: rec}
}

func (n *fakeNode) Start(awaitReady bool, maxWait time.Duration) error {
	n.rec.add("start " + strconv.Itoa(n.port))
	if n.startErr != nil {
		return n.startErr
	}
	n.active = true
	return nil
}

func (n *fakeNode) Stop(forcibly bool, maxWait time.Duration, removeWorkingDir bool) error {
	n.rec.add("stop " + strconv.Itoa(n.port))
	n.active = false
	return n.stopErr
}

func (n *fakeNode) Close() error {
	return n.Stop(false, time.Second, false)
}

func (n *fakeNode) Active() bool       { return n.active }
func (n *fakeNode) Port() int          { return n.port }
func (n *fakeNode) Binds() []string    { return []string{"127.0.0.1"} }
func (n *fakeNode) Conf() *conf.Conf   { return conf.Default() }
func (n *fakeNode) WorkingDir() string { return "" }

// realSupplier skips the test unless a server binary is installed.
func realSupplier(t *testing.T) installation.Supplier {
	if testing.Short() {
		t.Skip("integration test")
	}
	s := installation.LookPath()
	if _, err := s.Install(); err != nil {
		t.Skipf("no server binary: %v", err)
	}
	return s
}
