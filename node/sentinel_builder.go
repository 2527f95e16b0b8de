package node

import (
	"strconv"

	"embedvalkey/pkg/conf"
	"embedvalkey/pkg/installation"
	"embedvalkey/pkg/ports"
	"embedvalkey/pkg/process"

	"github.com/pkg/errors"
)

// sentinel defaults
const (
	DefaultMonitorName           = "mymain"
	DefaultDownAfterMilliseconds = 60000
	DefaultFailoverTimeout       = 180000
	DefaultParallelSyncs         = 1
	DefaultQuorumSize            = 1
)

type monitored struct {
	name string
	port int
}

// SentinelBuilder assembles a Sentinel monitoring one or more mains.
// Without Monitor the main "mymain" on port 6379 is monitored; without Port
// a sentinel range port is allocated.
type SentinelBuilder struct {
	supplier     installation.Supplier
	conf         *conf.Builder
	opts         []process.Option
	portProvider ports.Provider

	downAfter     int
	failover      int
	parallelSyncs int
	quorum        int
	monitors      []monitored
}

// NewSentinelBuilder returns a builder with the defaults.
func NewSentinelBuilder() *SentinelBuilder {
	return &SentinelBuilder{
		conf:          conf.NewBuilder().Binds(defaultBinds...),
		downAfter:     DefaultDownAfterMilliseconds,
		failover:      DefaultFailoverTimeout,
		parallelSyncs: DefaultParallelSyncs,
		quorum:        DefaultQuorumSize,
	}
}

// Supplier sets the installation supplier, installation.Default() if unset.
func (b *SentinelBuilder) Supplier(s installation.Supplier) *SentinelBuilder {
	b.supplier = s
	return b
}

// Bind replaces the bind addresses with addr.
func (b *SentinelBuilder) Bind(addr string) *SentinelBuilder {
	b.conf.Binds(addr)
	return b
}

// Port sets the port.
func (b *SentinelBuilder) Port(port int) *SentinelBuilder {
	b.conf.Port(port)
	return b
}

// PortProvider sets where a port comes from when none is set,
// ports.DefaultAllocator.Sentinels() if unset.
func (b *SentinelBuilder) PortProvider(p ports.Provider) *SentinelBuilder {
	b.portProvider = p
	return b
}

// QuorumSize sets the number of sentinels that must agree on a failure.
func (b *SentinelBuilder) QuorumSize(n int) *SentinelBuilder {
	b.quorum = n
	return b
}

// DownAfterMilliseconds sets after how long an unreachable main is down.
func (b *SentinelBuilder) DownAfterMilliseconds(ms int) *SentinelBuilder {
	b.downAfter = ms
	return b
}

// FailoverTimeout sets the failover timeout in milliseconds.
func (b *SentinelBuilder) FailoverTimeout(ms int) *SentinelBuilder {
	b.failover = ms
	return b
}

// ParallelSyncs sets how many replicas resync at once after a failover.
func (b *SentinelBuilder) ParallelSyncs(n int) *SentinelBuilder {
	b.parallelSyncs = n
	return b
}

// Monitor adds a main to monitor on 127.0.0.1:port.
func (b *SentinelBuilder) Monitor(name string, port int) *SentinelBuilder {
	b.monitors = append(b.monitors, monitored{name: name, port: port})
	return b
}

// Directive adds a raw directive.
func (b *SentinelBuilder) Directive(keyword string, args ...string) *SentinelBuilder {
	b.conf.Directive(keyword, args...)
	return b
}

// ImportConf adds every directive of c.
func (b *SentinelBuilder) ImportConf(c *conf.Conf) *SentinelBuilder {
	b.conf.ImportConf(c)
	return b
}

// ImportConfFile adds every directive of the file at path.
func (b *SentinelBuilder) ImportConfFile(path string) *SentinelBuilder {
	b.conf.ImportFile(path)
	return b
}

// ProcessOptions are passed to the process on first start.
func (b *SentinelBuilder) ProcessOptions(opts ...process.Option) *SentinelBuilder {
	b.opts = append(b.opts, opts...)
	return b
}

// Clone returns an independent copy. Monitored mains are copied as well.
func (b *SentinelBuilder) Clone() *SentinelBuilder {
	nb := *b
	nb.conf = b.conf.Clone()
	nb.opts = append([]process.Option(nil), b.opts...)
	nb.monitors = append([]monitored(nil), b.monitors...)
	return &nb
}

// Build returns the sentinel, or the first configuration error. The
// builder itself is left unchanged.
func (b *SentinelBuilder) Build() (*Sentinel, error) {
	cb := b.conf.Clone()
	monitors := b.monitors
	if len(monitors) == 0 {
		monitors = []monitored{{name: DefaultMonitorName, port: conf.DefaultPort}}
	}
	for _, m := range monitors {
		port := strconv.Itoa(m.port)
		cb.Directive("sentinel", "monitor", m.name, "127.0.0.1", port, strconv.Itoa(b.quorum))
		cb.Directive("sentinel", "down-after-milliseconds", m.name, strconv.Itoa(b.downAfter))
		cb.Directive("sentinel", "failover-timeout", m.name, strconv.Itoa(b.failover))
		cb.Directive("sentinel", "parallel-syncs", m.name, strconv.Itoa(b.parallelSyncs))
	}
	if port, ok := cb.GetPort(); !ok || port == 0 {
		pp := b.portProvider
		if pp == nil {
			pp = ports.DefaultAllocator.Sentinels()
		}
		port, err := pp.Next()
		if err != nil {
			return nil, errors.Wrap(err, "allocate sentinel port")
		}
		cb.Port(port)
	}
	c, err := cb.Build()
	if err != nil {
		return nil, err
	}
	return NewSentinel(supplierOrDefault(b.supplier), c, b.opts...), nil
}
