package conf

import (
	"github.com/pkg/errors"
)

// ErrInvalidPort is returned for ports outside of 1..65535.
var ErrInvalidPort = errors.New("port must be between 1 and 65535")

// Builder assembles a Conf. The first invalid directive is remembered and
// returned by Build.
type Builder struct {
	directives []Directive
	err        error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Directive appends a directive.
func (b *Builder) Directive(keyword string, args ...string) *Builder {
	d, err := NewDirective(keyword, args...)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.directives = append(b.directives, d)
	return b
}

// ImportConf appends every directive of c.
func (b *Builder) ImportConf(c *Conf) *Builder {
	if c != nil {
		b.directives = append(b.directives, c.Directives()...)
	}
	return b
}

// ImportFile parses path and appends its directives.
func (b *Builder) ImportFile(path string) *Builder {
	c, err := ParseFile(path)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.ImportConf(c)
}

// Bind appends a bind directive.
func (b *Builder) Bind(addr string) *Builder {
	return b.Directive(KeywordBind, addr)
}

// Binds replaces all bind directives with a single one.
func (b *Builder) Binds(addrs ...string) *Builder {
	b.remove(KeywordBind)
	return b.Directive(KeywordBind, addrs...)
}

// Port replaces the port directive.
func (b *Builder) Port(port int) *Builder {
	if port < 1 || port > 65535 {
		b.setErr(errors.Wrapf(ErrInvalidPort, "port %d", port))
		return b
	}
	b.remove(KeywordPort)
	return b.Directive(KeywordPort, itoa(port))
}

// ReplicaOf replaces the replicaof directive.
func (b *Builder) ReplicaOf(host string, port int) *Builder {
	if port < 1 || port > 65535 {
		b.setErr(errors.Wrapf(ErrInvalidPort, "replicaof port %d", port))
		return b
	}
	b.remove(KeywordReplicaOf)
	return b.Directive(KeywordReplicaOf, host, itoa(port))
}

// GetPort returns the currently configured port.
func (b *Builder) GetPort() (int, bool) {
	c := &Conf{directives: b.directives}
	return c.Port()
}

// Clone returns an independent copy.
func (b *Builder) Clone() *Builder {
	nb := &Builder{err: b.err}
	for _, d := range b.directives {
		nb.directives = append(nb.directives, Directive{
			Keyword:   d.Keyword,
			Arguments: append([]string(nil), d.Arguments...),
		})
	}
	return nb
}

// Build returns the Conf or the first error met while building.
func (b *Builder) Build() (*Conf, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.directives...)
}

func (b *Builder) remove(keyword string) {
	kept := b.directives[:0]
	for _, d := range b.directives {
		if d.Keyword != keyword {
			kept = append(kept, d)
		}
	}
	b.directives = kept
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}
