package cluster

import (
	"embedvalkey/node"
	"embedvalkey/pkg/ports"
)

// HighAvailabilityBuilder assembles sentinels and replication groups. Every
// sentinel monitors every group; replicas replicate their main on 127.0.0.1.
type HighAvailabilityBuilder struct {
	sentinelBuilder *node.SentinelBuilder
	serverBuilder   *node.StandaloneBuilder
	sentinelCount   int
	serverPorts     ports.Provider
	sentinelPorts   ports.Provider
	groups          []groupSpec
}

// NewHighAvailabilityBuilder returns a builder for one sentinel and ports
// from ports.DefaultAllocator.
func NewHighAvailabilityBuilder() *HighAvailabilityBuilder {
	return &HighAvailabilityBuilder{
		sentinelBuilder: node.NewSentinelBuilder(),
		serverBuilder:   node.NewStandaloneBuilder(),
		sentinelCount:   1,
	}
}

// SentinelBuilder sets the template every sentinel is cloned from.
func (b *HighAvailabilityBuilder) SentinelBuilder(sb *node.SentinelBuilder) *HighAvailabilityBuilder {
	b.sentinelBuilder = sb
	return b
}

// ServerBuilder sets the template every server is cloned from.
func (b *HighAvailabilityBuilder) ServerBuilder(sb *node.StandaloneBuilder) *HighAvailabilityBuilder {
	b.serverBuilder = sb
	return b
}

// SentinelCount sets the number of sentinels.
func (b *HighAvailabilityBuilder) SentinelCount(n int) *HighAvailabilityBuilder {
	b.sentinelCount = n
	return b
}

// QuorumSize sets the sentinel quorum.
func (b *HighAvailabilityBuilder) QuorumSize(n int) *HighAvailabilityBuilder {
	b.sentinelBuilder.QuorumSize(n)
	return b
}

// ReplicationGroup adds a main named name with replicaCount replicas.
func (b *HighAvailabilityBuilder) ReplicationGroup(name string, replicaCount int) *HighAvailabilityBuilder {
	b.groups = append(b.groups, groupSpec{name: name, replicas: replicaCount})
	return b
}

// PortAllocator takes server and sentinel ports from a.
func (b *HighAvailabilityBuilder) PortAllocator(a *ports.Allocator) *HighAvailabilityBuilder {
	return b.PortProviders(a.Servers(), a.Sentinels())
}

// PortProviders sets where server and sentinel ports come from.
func (b *HighAvailabilityBuilder) PortProviders(servers, sentinels ports.Provider) *HighAvailabilityBuilder {
	b.serverPorts = servers
	b.sentinelPorts = sentinels
	return b
}

// Build allocates the ports and returns the cluster.
func (b *HighAvailabilityBuilder) Build() (*HighAvailability, error) {
	serverPorts, sentinelPorts := b.serverPorts, b.sentinelPorts
	if serverPorts == nil {
		serverPorts = ports.DefaultAllocator.Servers()
	}
	if sentinelPorts == nil {
		sentinelPorts = ports.DefaultAllocator.Sentinels()
	}

	var (
		groups  []ReplicationGroup
		servers []node.Node
	)
	for _, g := range b.groups {
		main, replicas, err := allocate(serverPorts, g.name, g.replicas)
		if err != nil {
			return nil, err
		}
		groups = append(groups, ReplicationGroup{Name: g.name, MainPort: main, ReplicaPorts: replicas})

		m, err := b.serverBuilder.Clone().Port(main).Build()
		if err != nil {
			return nil, err
		}
		servers = append(servers, m)
		for _, port := range replicas {
			r, err := b.serverBuilder.Clone().Port(port).ReplicaOf(clusterHost, main).Build()
			if err != nil {
				return nil, err
			}
			servers = append(servers, r)
		}
	}

	var sentinels []node.Node
	for i := 0; i < b.sentinelCount; i++ {
		sb := b.sentinelBuilder.Clone()
		for _, g := range groups {
			sb.Monitor(g.Name, g.MainPort)
		}
		port, err := sentinelPorts.Next()
		if err != nil {
			return nil, err
		}
		s, err := sb.Port(port).Build()
		if err != nil {
			return nil, err
		}
		sentinels = append(sentinels, s)
	}

	h, err := NewHighAvailability(sentinels, servers)
	if err != nil {
		return nil, err
	}
	h.groups = groups
	return h, nil
}
