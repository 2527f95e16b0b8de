package ports

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"embedvalkey/pkg/log"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// port ranges
const (
	DefaultServerPort   = 6379
	DefaultSentinelPort = 26379

	// BusPortOffset is added to a server port to get its cluster bus port.
	BusPortOffset = 10000
	// MaxPort is the largest port whose bus port is still valid.
	MaxPort = 65535 - BusPortOffset
)

// ErrNoFreePort is returned when the whole range is taken.
var ErrNoFreePort = errors.New("could not find an available TCP port")

// Allocator hands out ports that are unbound on the host and were not handed
// out before, together with their bus ports. It is safe for concurrent use.
type Allocator struct {
	lock      sync.Mutex
	handedOut *treeset.Set
	locks     []*flock.Flock

	lockDir   string
	available func(port int) bool
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLockDir sets the directory of cross-process lock files. An empty dir
// disables file locking.
func WithLockDir(dir string) Option {
	return func(a *Allocator) { a.lockDir = dir }
}

// WithProbe replaces the bindability check.
func WithProbe(available func(port int) bool) Option {
	return func(a *Allocator) { a.available = available }
}

// NewAllocator returns an allocator locking in $TMPDIR/embedvalkey-ports.
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{
		handedOut: treeset.NewWithIntComparator(),
		lockDir:   filepath.Join(os.TempDir(), "embedvalkey-ports"),
		available: Available,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultAllocator is shared by all builders of this process.
var DefaultAllocator = NewAllocator()

// Next returns the lowest free port starting at 6379, or at 26379 for
// sentinels.
func (a *Allocator) Next(sentinel bool) (int, error) {
	min := DefaultServerPort
	if sentinel {
		min = DefaultSentinelPort
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	if err := a.ensureLockDir(); err != nil {
		return 0, err
	}
	for candidate := min; candidate <= MaxPort; candidate++ {
		bus := candidate + BusPortOffset
		if a.handedOut.Contains(candidate) || a.handedOut.Contains(bus) {
			continue
		}
		if !a.available(candidate) || !a.available(bus) {
			continue
		}
		if !a.tryLock(candidate, bus) {
			log.Debugf("port %d is locked by another process", candidate)
			continue
		}
		a.handedOut.Add(candidate, bus)
		return candidate, nil
	}
	return 0, errors.Wrapf(ErrNoFreePort, "range %d-%d", min, MaxPort)
}

// HandedOut returns every port handed out so far, bus ports included, in
// ascending order.
func (a *Allocator) HandedOut() []int {
	a.lock.Lock()
	defer a.lock.Unlock()
	ports := make([]int, 0, a.handedOut.Size())
	for _, v := range a.handedOut.Values() {
		ports = append(ports, v.(int))
	}
	return ports
}

// Release drops the cross-process locks. Ports stay marked as handed out.
func (a *Allocator) Release() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	var first error
	for _, l := range a.locks {
		if err := l.Unlock(); err != nil && first == nil {
			first = errors.Wrapf(err, "unlock %s", l.Path())
		}
	}
	a.locks = nil
	return first
}

// Servers returns a provider of server ports.
func (a *Allocator) Servers() Provider {
	return ProviderFunc(func() (int, error) { return a.Next(false) })
}

// Sentinels returns a provider of sentinel ports.
func (a *Allocator) Sentinels() Provider {
	return ProviderFunc(func() (int, error) { return a.Next(true) })
}

func (a *Allocator) ensureLockDir() error {
	if a.lockDir == "" {
		return nil
	}
	return errors.Wrapf(os.MkdirAll(a.lockDir, 0755), "create lock dir %s", a.lockDir)
}

func (a *Allocator) tryLock(ports ...int) bool {
	if a.lockDir == "" {
		return true
	}
	var taken []*flock.Flock
	for _, port := range ports {
		l := flock.New(filepath.Join(a.lockDir, fmt.Sprintf("%d.lock", port)))
		ok, err := l.TryLock()
		if err != nil || !ok {
			for _, t := range taken {
				if uerr := t.Unlock(); uerr != nil {
					log.Errorf("error to unlock %s: %v", t.Path(), uerr)
				}
			}
			return false
		}
		taken = append(taken, l)
	}
	a.locks = append(a.locks, taken...)
	return true
}

// Available reports whether a TCP listener can be bound to port on all
// interfaces.
func Available(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
