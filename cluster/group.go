package cluster

import (
	"embedvalkey/pkg/ports"

	"github.com/pkg/errors"
)

// clusterHost is the address nodes of a cluster reach each other on.
const clusterHost = "127.0.0.1"

// ReplicationGroup is a main and its replicas monitored by sentinels.
type ReplicationGroup struct {
	Name         string
	MainPort     int
	ReplicaPorts []int
}

// Shard is a main owning a slot range and its replicas.
type Shard struct {
	Name         string
	MainPort     int
	ReplicaPorts []int
}

type groupSpec struct {
	name     string
	replicas int
}

// allocate takes one main port and n replica ports from p.
func allocate(p ports.Provider, name string, n int) (main int, replicas []int, err error) {
	if n < 0 {
		return 0, nil, errors.Errorf("%s: negative replica count %d", name, n)
	}
	if main, err = p.Next(); err != nil {
		return 0, nil, errors.Wrapf(err, "%s: allocate main port", name)
	}
	for i := 0; i < n; i++ {
		var port int
		if port, err = p.Next(); err != nil {
			return 0, nil, errors.Wrapf(err, "%s: allocate replica port", name)
		}
		replicas = append(replicas, port)
	}
	return
}
