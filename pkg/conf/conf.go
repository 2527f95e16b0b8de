package conf

import (
	"strconv"
)

// Conf is the immutable content of a valkey.conf. Directives keep their
// insertion order and duplicate keywords are preserved.
type Conf struct {
	directives []Directive
}

// New returns a Conf of the given directives, validating each one.
func New(directives ...Directive) (*Conf, error) {
	for _, d := range directives {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	c := &Conf{directives: make([]Directive, 0, len(directives))}
	for _, d := range directives {
		c.directives = append(c.directives, Directive{
			Keyword:   d.Keyword,
			Arguments: append([]string(nil), d.Arguments...),
		})
	}
	return c, nil
}

// Default binds to the IPv4 loopback (and IPv6 loopback if present) on 6379.
func Default() *Conf {
	c, _ := NewBuilder().Binds("127.0.0.1", "-::1").Port(DefaultPort).Build()
	return c
}

// DefaultPort is the well known server port.
const DefaultPort = 6379

// DefaultSentinelPort is the well known sentinel port.
const DefaultSentinelPort = 26379

// Directives returns a copy of all directives.
func (c *Conf) Directives() []Directive {
	ds := make([]Directive, len(c.directives))
	for i, d := range c.directives {
		ds[i] = d.clone()
	}
	return ds
}

// Lookup returns all directives with the given keyword.
func (c *Conf) Lookup(keyword string) (ds []Directive) {
	for _, d := range c.directives {
		if d.Keyword == keyword {
			ds = append(ds, d.clone())
		}
	}
	return
}

// Port returns the first argument of the first port directive.
func (c *Conf) Port() (int, bool) {
	ds := c.Lookup(KeywordPort)
	if len(ds) == 0 {
		return 0, false
	}
	port, err := strconv.Atoi(ds[0].Arguments[0])
	if err != nil {
		return 0, false
	}
	return port, true
}

// Binds flattens the arguments of all bind directives.
func (c *Conf) Binds() (binds []string) {
	for _, d := range c.Lookup(KeywordBind) {
		binds = append(binds, d.Arguments...)
	}
	return
}

// Len returns the number of directives.
func (c *Conf) Len() int {
	return len(c.directives)
}
