// Package cluster composes nodes into high availability groups watched by
// sentinels and into sharded clusters.
package cluster

import (
	"time"

	"embedvalkey/node"
	"embedvalkey/pkg/log"
	"embedvalkey/pkg/process"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// HighAvailability is a set of sentinels and the servers they monitor.
type HighAvailability struct {
	sentinels []node.Node
	servers   []node.Node
	groups    []ReplicationGroup
}

// NewHighAvailability needs at least one sentinel and one server.
func NewHighAvailability(sentinels, servers []node.Node) (*HighAvailability, error) {
	if len(sentinels) == 0 {
		return nil, ErrNoSentinels
	}
	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	return &HighAvailability{
		sentinels: append([]node.Node(nil), sentinels...),
		servers:   append([]node.Node(nil), servers...),
	}, nil
}

// Start starts every sentinel, then every server, one after the other. The
// first failure is returned and the remaining nodes are not started.
func (h *HighAvailability) Start(awaitReady bool, maxWait time.Duration) error {
	for _, n := range h.Nodes() {
		if err := n.Start(awaitReady, maxWait); err != nil {
			return errors.Wrapf(err, "start node on port %d", n.Port())
		}
	}
	return nil
}

// Stop stops every sentinel, then every server. All stops are attempted and
// the failures are returned combined.
func (h *HighAvailability) Stop(forcibly bool, maxWait time.Duration, removeWorkingDir bool) error {
	return errors.Wrap(stopAll(h.Nodes(), forcibly, maxWait, removeWorkingDir), "stop high availability cluster")
}

// Close stops gracefully and keeps the working directories.
func (h *HighAvailability) Close() error {
	return h.Stop(false, process.DefaultMaxWait, false)
}

// Nodes returns the sentinels followed by the servers.
func (h *HighAvailability) Nodes() []node.Node {
	ns := make([]node.Node, 0, len(h.sentinels)+len(h.servers))
	ns = append(ns, h.sentinels...)
	return append(ns, h.servers...)
}

// Sentinels returns the sentinel nodes.
func (h *HighAvailability) Sentinels() []node.Node {
	return append([]node.Node(nil), h.sentinels...)
}

// Servers returns the main and replica nodes.
func (h *HighAvailability) Servers() []node.Node {
	return append([]node.Node(nil), h.servers...)
}

// Groups returns the replication groups the cluster was built from, empty
// when it was assembled by hand.
func (h *HighAvailability) Groups() []ReplicationGroup {
	return append([]ReplicationGroup(nil), h.groups...)
}

// SentinelPorts returns the sentinel ports.
func (h *HighAvailability) SentinelPorts() []int {
	return portsOf(h.sentinels)
}

// ServerPorts returns the server ports.
func (h *HighAvailability) ServerPorts() []int {
	return portsOf(h.servers)
}

// Active reports whether any node is running.
func (h *HighAvailability) Active() bool {
	return anyActive(h.Nodes())
}

func stopAll(ns []node.Node, forcibly bool, maxWait time.Duration, removeWorkingDir bool) (errs error) {
	for _, n := range ns {
		if err := n.Stop(forcibly, maxWait, removeWorkingDir); err != nil {
			log.Errorf("failed to stop node on port %d: %v", n.Port(), err)
			errs = multierr.Append(errs, errors.Wrapf(err, "stop node on port %d", n.Port()))
		}
	}
	return
}

func portsOf(ns []node.Node) []int {
	ps := make([]int, 0, len(ns))
	for _, n := range ns {
		ps = append(ps, n.Port())
	}
	return ps
}

func allActive(ns []node.Node) bool {
	for _, n := range ns {
		if !n.Active() {
			return false
		}
	}
	return len(ns) > 0
}

func anyActive(ns []node.Node) bool {
	for _, n := range ns {
		if n.Active() {
			return true
		}
	}
	return false
}
