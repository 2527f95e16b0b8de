// Package node runs single server and sentinel instances.
package node

import (
	"sync"
	"time"

	"embedvalkey/pkg/conf"
	"embedvalkey/pkg/installation"
	"embedvalkey/pkg/process"

	"github.com/pkg/errors"
)

// Instance is anything that can be started and stopped as a unit.
type Instance interface {
	Start(awaitReady bool, maxWait time.Duration) error
	Stop(forcibly bool, maxWait time.Duration, removeWorkingDir bool) error
	// Close stops gracefully and keeps the working directory.
	Close() error
}

// Node is a single server process.
type Node interface {
	Instance
	Active() bool
	// Port returns the configured port, 0 if none.
	Port() int
	Binds() []string
	Conf() *conf.Conf
	// WorkingDir returns "" until the node was started once.
	WorkingDir() string
}

// server is shared by Standalone and Sentinel. The process is created on the
// first start and reused afterwards.
type server struct {
	supplier installation.Supplier
	conf     *conf.Conf
	opts     []process.Option

	lock sync.Mutex
	proc *process.Process
}

func (s *server) start(awaitReady bool, maxWait time.Duration) error {
	inst, err := s.supplier.Install()
	if err != nil {
		return errors.Wrap(err, "supply installation")
	}
	s.lock.Lock()
	if s.proc == nil {
		opts := append([]process.Option{process.WithConf(s.conf)}, s.opts...)
		if s.proc, err = process.New(inst, opts...); err != nil {
			s.lock.Unlock()
			return err
		}
	}
	p := s.proc
	s.lock.Unlock()
	return p.Start(awaitReady, maxWait)
}

func (s *server) current() *process.Process {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.proc
}

func (s *server) Stop(forcibly bool, maxWait time.Duration, removeWorkingDir bool) error {
	if p := s.current(); p != nil {
		return p.Stop(forcibly, maxWait, removeWorkingDir)
	}
	return nil
}

func (s *server) Close() error {
	return s.Stop(false, process.DefaultMaxWait, false)
}

func (s *server) Active() bool {
	p := s.current()
	return p != nil && p.Active()
}

func (s *server) Port() int {
	port, _ := s.conf.Port()
	return port
}

func (s *server) Binds() []string {
	return s.conf.Binds()
}

func (s *server) Conf() *conf.Conf {
	return s.conf
}

func (s *server) WorkingDir() string {
	if p := s.current(); p != nil {
		return p.WorkingDir()
	}
	return ""
}

// Standalone is a plain server, a main or a replica.
type Standalone struct {
	server
}

// NewStandalone returns a standalone node running c with binaries from
// supplier.
func NewStandalone(supplier installation.Supplier, c *conf.Conf, opts ...process.Option) *Standalone {
	return &Standalone{server{supplier: supplier, conf: c, opts: opts}}
}

// Start obtains the installation and starts the server process.
func (s *Standalone) Start(awaitReady bool, maxWait time.Duration) error {
	return s.start(awaitReady, maxWait)
}

// Sentinel is a server launched in sentinel mode.
type Sentinel struct {
	server
}

// NewSentinel returns a sentinel node running c with binaries from supplier.
func NewSentinel(supplier installation.Supplier, c *conf.Conf, opts ...process.Option) *Sentinel {
	opts = append([]process.Option{process.WithSentinel()}, opts...)
	return &Sentinel{server{supplier: supplier, conf: c, opts: opts}}
}

// Start obtains the installation and starts the sentinel process.
func (s *Sentinel) Start(awaitReady bool, maxWait time.Duration) error {
	return s.start(awaitReady, maxWait)
}
