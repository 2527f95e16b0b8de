package cluster

import (
	"context"
	"net"
	"strconv"
	"time"

	"embedvalkey/node"
	"embedvalkey/pkg/log"
	"embedvalkey/pkg/myredis"
	"embedvalkey/pkg/process"
	"embedvalkey/pkg/prom"

	"github.com/cenkalti/backoff/v4"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// sharded cluster timings
const (
	DefaultInitializationTimeout = 20 * time.Second

	pollInterval   = 300 * time.Millisecond
	commandTimeout = 10 * time.Second
	readyKey       = "someKey"
)

// Sharded is a cluster of mains, each owning a slot range, and their
// replicas.
type Sharded struct {
	nodes  []node.Node
	shards []Shard
	byPort map[int]node.Node
	// main port -> replica ports, both in build order
	replicas    *linkedhashmap.Map
	initTimeout time.Duration
	dial        myredis.DialFunc

	// filled by a successful Start
	mainIDs map[int]string
}

// ShardedOption configures a Sharded cluster.
type ShardedOption func(*Sharded)

// WithInitializationTimeout bounds every wait while linking the cluster.
func WithInitializationTimeout(d time.Duration) ShardedOption {
	return func(s *Sharded) { s.initTimeout = d }
}

// WithDialFunc replaces net.Dial for the admin connections.
func WithDialFunc(dial myredis.DialFunc) ShardedOption {
	return func(s *Sharded) { s.dial = dial }
}

// NewSharded returns a cluster of nodes laid out as shards. Every port a
// shard names must belong to one of nodes.
func NewSharded(shards []Shard, nodes []node.Node, opts ...ShardedOption) (*Sharded, error) {
	if len(shards) == 0 {
		return nil, ErrNoShards
	}
	s := &Sharded{
		nodes:       append([]node.Node(nil), nodes...),
		shards:      append([]Shard(nil), shards...),
		byPort:      make(map[int]node.Node, len(nodes)),
		replicas:    linkedhashmap.New(),
		initTimeout: DefaultInitializationTimeout,
	}
	for _, n := range nodes {
		s.byPort[n.Port()] = n
	}
	for _, sh := range shards {
		if _, ok := s.byPort[sh.MainPort]; !ok {
			return nil, errors.Errorf("shard %s: no node on main port %d", sh.Name, sh.MainPort)
		}
		set := linkedhashset.New()
		for _, port := range sh.ReplicaPorts {
			if _, ok := s.byPort[port]; !ok {
				return nil, errors.Errorf("shard %s: no node on replica port %d", sh.Name, port)
			}
			set.Add(port)
		}
		s.replicas.Put(sh.MainPort, set)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start starts every node in order, then links them into one cluster. A
// linking failure stops the nodes again and is returned as *SetupError.
// Starting a linked cluster whose nodes all still run does nothing.
func (s *Sharded) Start(awaitReady bool, maxWait time.Duration) error {
	if s.mainIDs != nil && allActive(s.nodes) {
		log.Warnf("sharded cluster of %d nodes is already running", len(s.nodes))
		return nil
	}
	s.mainIDs = nil
	for _, n := range s.nodes {
		if err := n.Start(awaitReady, maxWait); err != nil {
			return errors.Wrapf(err, "start node on port %d", n.Port())
		}
	}

	begin := time.Now()
	ids, err := s.link()
	if err != nil {
		log.Errorf("failed to link sharded cluster: %v", err)
		serr := &SetupError{Cause: err}
		if rerr := s.Stop(false, maxWait, false); rerr != nil {
			serr.Rollback = rerr
		}
		return serr
	}
	s.mainIDs = ids
	prom.ClusterLinkTime("sharded", time.Since(begin).Seconds())
	log.Infof("sharded cluster of %d nodes is ready", len(s.nodes))
	return nil
}

// Stop flushes and soft resets every running main so the same nodes can be
// linked again, then stops every node. All steps are attempted and the
// failures are returned combined.
func (s *Sharded) Stop(forcibly bool, maxWait time.Duration, removeWorkingDir bool) error {
	var errs error
	for _, port := range s.mainPorts() {
		if n := s.byPort[port]; n == nil || !n.Active() {
			continue
		}
		if err := s.reset(port); err != nil {
			log.Errorf("failed to flush main node on port %d: %v", port, err)
			errs = multierr.Append(errs, err)
		}
	}
	errs = multierr.Append(errs, stopAll(s.nodes, forcibly, maxWait, removeWorkingDir))
	return errors.Wrap(errs, "stop sharded cluster")
}

// Close stops gracefully and keeps the working directories.
func (s *Sharded) Close() error {
	return s.Stop(false, process.DefaultMaxWait, false)
}

// Nodes returns the nodes in build order.
func (s *Sharded) Nodes() []node.Node {
	return append([]node.Node(nil), s.nodes...)
}

// ServerPorts returns the node ports in build order.
func (s *Sharded) ServerPorts() []int {
	return portsOf(s.nodes)
}

// Shards returns the layout of the cluster.
func (s *Sharded) Shards() []Shard {
	return append([]Shard(nil), s.shards...)
}

// MainNodeID returns the cluster node id of the main on port, known only
// after a successful Start.
func (s *Sharded) MainNodeID(port int) (string, bool) {
	id, ok := s.mainIDs[port]
	return id, ok
}

// Active reports whether any node is running.
func (s *Sharded) Active() bool {
	return anyActive(s.nodes)
}

func (s *Sharded) mainPorts() []int {
	ps := make([]int, 0, s.replicas.Size())
	for _, k := range s.replicas.Keys() {
		ps = append(ps, k.(int))
	}
	return ps
}

func (s *Sharded) link() (map[int]string, error) {
	mains := s.mainPorts()
	target := mains[0]
	ranges := slotRanges(len(mains))

	ids := make(map[int]string, len(mains))
	for i, port := range mains {
		id, err := s.linkMain(port, target, ranges[i])
		if err != nil {
			return nil, errors.Wrapf(err, "set up main node on port %d", port)
		}
		ids[port] = id
	}

	it := s.replicas.Iterator()
	for it.Next() {
		mainID := ids[it.Key().(int)]
		for _, v := range it.Value().(*linkedhashset.Set).Values() {
			port := v.(int)
			if err := s.linkReplica(port, target, mainID); err != nil {
				return nil, errors.Wrapf(err, "set up replica node on port %d", port)
			}
		}
	}

	return ids, s.await("cluster to serve commands", func() error {
		cc, err := myredis.NewClusterClient([]string{addr(s.nodes[0].Port())},
			myredis.WithDialFunc(s.dial), myredis.WithTimeout(commandTimeout))
		if err != nil {
			return backoff.Permanent(err)
		}
		defer cc.Close()
		_, _, err = cc.Get(readyKey)
		return err
	})
}

func (s *Sharded) linkMain(port, target int, r slotRange) (string, error) {
	conn, err := s.connect(port)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if port != target {
		if err = conn.ClusterMeet(clusterHost, target); err != nil {
			return "", err
		}
	}
	id, err := conn.ClusterMyID()
	if err != nil {
		return "", err
	}
	if err = conn.ClusterAddSlots(r.start, r.end); err != nil {
		return "", err
	}
	log.V(1).Infof("main node %s on port %d owns slots %d-%d", id, port, r.start, r.end)
	return id, nil
}

func (s *Sharded) linkReplica(port, target int, mainID string) error {
	conn, err := s.connect(port)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err = conn.ClusterMeet(clusterHost, target); err != nil {
		return err
	}
	err = s.await("main node "+mainID+" to become visible", func() error {
		nodes, err := conn.ClusterNodes()
		if err != nil {
			return err
		}
		for _, n := range nodes {
			if n.ID == mainID {
				return nil
			}
		}
		return errors.Errorf("node %s not known yet", mainID)
	})
	if err != nil {
		return err
	}
	if err = conn.ClusterReplicate(mainID); err != nil {
		return err
	}
	return s.await("cluster state ok", func() error {
		state, err := conn.ClusterState()
		if err != nil {
			return err
		}
		if state != "ok" {
			return errors.Errorf("cluster state is %s", state)
		}
		return nil
	})
}

func (s *Sharded) reset(port int) error {
	conn, err := s.connect(port)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err = conn.FlushAll(); err != nil {
		return err
	}
	return conn.ClusterReset(true)
}

// await polls op every pollInterval until it succeeds or the
// initialization timeout passes.
func (s *Sharded) await(what string, op func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.initTimeout)
	defer cancel()

	var last error
	err := backoff.RetryNotify(func() error {
		last = op()
		return last
	}, backoff.WithContext(backoff.NewConstantBackOff(pollInterval), ctx), func(err error, _ time.Duration) {
		log.V(2).Infof("waiting for %s: %v", what, err)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && last != nil {
		return errors.Wrapf(last, "timed out after %s waiting for %s", s.initTimeout, what)
	}
	return errors.Wrapf(err, "waiting for %s", what)
}

func (s *Sharded) connect(port int) (*myredis.Conn, error) {
	return myredis.DialWith(addr(port), commandTimeout, s.dial)
}

func addr(port int) string {
	return net.JoinHostPort(clusterHost, strconv.Itoa(port))
}
