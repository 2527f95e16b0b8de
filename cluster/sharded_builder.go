package cluster

import (
	"strconv"
	"time"

	"embedvalkey/node"
	"embedvalkey/pkg/myredis"
	"embedvalkey/pkg/ports"
)

const clusterNodeTimeout = "5000"

// ShardedBuilder assembles a Sharded cluster. Ports come from
// ports.DefaultAllocator unless ServerPorts or PortProvider is used.
type ShardedBuilder struct {
	serverBuilder *node.StandaloneBuilder
	ports         ports.Provider
	initTimeout   time.Duration
	dial          myredis.DialFunc
	shards        []groupSpec
}

// NewShardedBuilder returns a builder without shards.
func NewShardedBuilder() *ShardedBuilder {
	return &ShardedBuilder{
		serverBuilder: node.NewStandaloneBuilder(),
		initTimeout:   DefaultInitializationTimeout,
	}
}

// ServerBuilder sets the template every node is cloned from.
func (b *ShardedBuilder) ServerBuilder(sb *node.StandaloneBuilder) *ShardedBuilder {
	b.serverBuilder = sb
	return b
}

// ServerPorts hands out exactly ps, in order.
func (b *ShardedBuilder) ServerPorts(ps []int) *ShardedBuilder {
	b.ports = ports.NewPredefined(ps...)
	return b
}

// Ephemeral takes free ports from ports.DefaultAllocator.
func (b *ShardedBuilder) Ephemeral() *ShardedBuilder {
	b.ports = ports.DefaultAllocator.Servers()
	return b
}

// PortProvider sets where node ports come from.
func (b *ShardedBuilder) PortProvider(p ports.Provider) *ShardedBuilder {
	b.ports = p
	return b
}

// InitializationTimeout bounds every wait while linking.
func (b *ShardedBuilder) InitializationTimeout(d time.Duration) *ShardedBuilder {
	b.initTimeout = d
	return b
}

// DialFunc replaces net.Dial for the admin connections.
func (b *ShardedBuilder) DialFunc(dial myredis.DialFunc) *ShardedBuilder {
	b.dial = dial
	return b
}

// Shard adds a main named name with replicaCount replicas.
func (b *ShardedBuilder) Shard(name string, replicaCount int) *ShardedBuilder {
	b.shards = append(b.shards, groupSpec{name: name, replicas: replicaCount})
	return b
}

// Build allocates the ports and returns the cluster. Nodes are ordered
// shard by shard, main first.
func (b *ShardedBuilder) Build() (*Sharded, error) {
	if len(b.shards) == 0 {
		return nil, ErrNoShards
	}
	p := b.ports
	if p == nil {
		p = ports.DefaultAllocator.Servers()
	}

	var (
		shards []Shard
		nodes  []node.Node
	)
	for _, g := range b.shards {
		main, replicas, err := allocate(p, g.name, g.replicas)
		if err != nil {
			return nil, err
		}
		shards = append(shards, Shard{Name: g.name, MainPort: main, ReplicaPorts: replicas})

		n, err := b.clusterNode("main", main)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		for _, port := range replicas {
			if n, err = b.clusterNode("replica", port); err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
	}
	return NewSharded(shards, nodes, WithInitializationTimeout(b.initTimeout), WithDialFunc(b.dial))
}

func (b *ShardedBuilder) clusterNode(role string, port int) (*node.Standalone, error) {
	return b.serverBuilder.Clone().
		Port(port).
		Directive("cluster-enabled", "yes").
		Directive("cluster-config-file", "nodes-"+role+"-"+strconv.Itoa(port)+".conf").
		Directive("cluster-node-timeout", clusterNodeTimeout).
		Directive("appendonly", "no").
		Build()
}
