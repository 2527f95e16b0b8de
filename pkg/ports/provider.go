package ports

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrExhausted is returned by a Predefined provider without ports left.
var ErrExhausted = errors.New("no more predefined ports")

// Provider yields ports on request.
type Provider interface {
	Next() (int, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() (int, error)

// Next calls f.
func (f ProviderFunc) Next() (int, error) {
	return f()
}

// Sequence counts up from a start port without probing the host.
type Sequence struct {
	lock sync.Mutex
	next int
}

// NewSequence returns a sequence starting at start.
func NewSequence(start int) *Sequence {
	return &Sequence{next: start}
}

// Next returns the current port and advances.
func (s *Sequence) Next() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.next > 65535 {
		return 0, errors.Errorf("sequence ran past port 65535")
	}
	p := s.next
	s.next++
	return p, nil
}

// Predefined hands out a fixed list of ports in order.
type Predefined struct {
	lock  sync.Mutex
	ports []int
	idx   int
}

// NewPredefined returns a provider of the given ports.
func NewPredefined(ports ...int) *Predefined {
	return &Predefined{ports: append([]int(nil), ports...)}
}

// Next returns the next port or ErrExhausted.
func (p *Predefined) Next() (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.idx >= len(p.ports) {
		return 0, errors.Wrapf(ErrExhausted, "%d ports given", len(p.ports))
	}
	port := p.ports[p.idx]
	p.idx++
	return port, nil
}
