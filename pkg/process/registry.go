package process

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"embedvalkey/pkg/log"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Registry tracks running processes so the host can stop all of them on its
// own shutdown path. It is safe for concurrent use.
type Registry struct {
	lock  sync.Mutex
	procs *linkedhashmap.Map
	exit  func(code int)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		procs: linkedhashmap.New(),
		exit:  os.Exit,
	}
}

// DefaultRegistry tracks every process not given another registry.
var DefaultRegistry = NewRegistry()

func (r *Registry) add(p *Process) {
	r.lock.Lock()
	r.procs.Put(p.id, p)
	r.lock.Unlock()
}

func (r *Registry) remove(p *Process) {
	r.lock.Lock()
	r.procs.Remove(p.id)
	r.lock.Unlock()
}

// Processes returns the tracked processes in start order.
func (r *Registry) Processes() []*Process {
	r.lock.Lock()
	defer r.lock.Unlock()
	ps := make([]*Process, 0, r.procs.Size())
	r.procs.Each(func(_ interface{}, v interface{}) {
		ps = append(ps, v.(*Process))
	})
	return ps
}

// Len returns the number of tracked processes.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.procs.Size()
}

// StopAll stops every tracked process, latest first. Every stop is
// attempted; the failures are returned combined.
func (r *Registry) StopAll(forcibly bool, maxWait time.Duration) error {
	ps := r.Processes()
	var errs error
	for i := len(ps) - 1; i >= 0; i-- {
		if err := ps[i].Stop(forcibly, maxWait, false); err != nil {
			log.Errorf("stop %s failed: %v", ps[i], err)
			errs = multierr.Append(errs, err)
		}
	}
	return errors.Wrap(errs, "stop all processes")
}

// HandleSignals stops every tracked process when the host receives one of
// sigs (SIGINT and SIGTERM by default) and then exits with status 1. The
// returned func uninstalls the handler.
func (r *Registry) HandleSignals(sigs ...os.Signal) (cancel func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)
	go func() {
		select {
		case s := <-ch:
			log.Warnf("received %s, stopping %d server processes", s, r.Len())
			if err := r.StopAll(false, DefaultMaxWait); err != nil {
				log.Errorf("%v", err)
			}
			r.exit(1)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
