package node

import (
	"embedvalkey/pkg/conf"
	"embedvalkey/pkg/installation"
	"embedvalkey/pkg/process"
)

// default binds: IPv4 loopback, and IPv6 loopback where available.
var defaultBinds = []string{"127.0.0.1", "-::1"}

// StandaloneBuilder assembles a Standalone. It starts from binds
// 127.0.0.1 -::1 and port 6379.
type StandaloneBuilder struct {
	supplier installation.Supplier
	conf     *conf.Builder
	opts     []process.Option
}

// NewStandaloneBuilder returns a builder with the defaults.
func NewStandaloneBuilder() *StandaloneBuilder {
	return &StandaloneBuilder{
		conf: conf.NewBuilder().Binds(defaultBinds...).Port(conf.DefaultPort),
	}
}

// Supplier sets the installation supplier, installation.Default() if unset.
func (b *StandaloneBuilder) Supplier(s installation.Supplier) *StandaloneBuilder {
	b.supplier = s
	return b
}

// Bind adds a bind address.
func (b *StandaloneBuilder) Bind(addr string) *StandaloneBuilder {
	b.conf.Bind(addr)
	return b
}

// Binds replaces all bind addresses.
func (b *StandaloneBuilder) Binds(addrs ...string) *StandaloneBuilder {
	b.conf.Binds(addrs...)
	return b
}

// Port sets the port.
func (b *StandaloneBuilder) Port(port int) *StandaloneBuilder {
	b.conf.Port(port)
	return b
}

// ReplicaOf makes the node a replica of host:port.
func (b *StandaloneBuilder) ReplicaOf(host string, port int) *StandaloneBuilder {
	b.conf.ReplicaOf(host, port)
	return b
}

// Directive adds a raw directive.
func (b *StandaloneBuilder) Directive(keyword string, args ...string) *StandaloneBuilder {
	b.conf.Directive(keyword, args...)
	return b
}

// ImportConf adds every directive of c.
func (b *StandaloneBuilder) ImportConf(c *conf.Conf) *StandaloneBuilder {
	b.conf.ImportConf(c)
	return b
}

// ImportConfFile adds every directive of the file at path.
func (b *StandaloneBuilder) ImportConfFile(path string) *StandaloneBuilder {
	b.conf.ImportFile(path)
	return b
}

// ProcessOptions are passed to the process on first start.
func (b *StandaloneBuilder) ProcessOptions(opts ...process.Option) *StandaloneBuilder {
	b.opts = append(b.opts, opts...)
	return b
}

// GetPort returns the configured port, if any.
func (b *StandaloneBuilder) GetPort() (int, bool) {
	return b.conf.GetPort()
}

// Clone returns an independent copy.
func (b *StandaloneBuilder) Clone() *StandaloneBuilder {
	return &StandaloneBuilder{
		supplier: b.supplier,
		conf:     b.conf.Clone(),
		opts:     append([]process.Option(nil), b.opts...),
	}
}

// Build returns the node, or the first configuration error.
func (b *StandaloneBuilder) Build() (*Standalone, error) {
	c, err := b.conf.Build()
	if err != nil {
		return nil, err
	}
	return NewStandalone(supplierOrDefault(b.supplier), c, b.opts...), nil
}

func supplierOrDefault(s installation.Supplier) installation.Supplier {
	if s == nil {
		return installation.Default()
	}
	return s
}
