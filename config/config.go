// Package config is the TOML configuration of valkeyctl.
package config

import (
	"time"

	"embedvalkey/pkg/log"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the valkeyctl configuration. Fields a file leaves out or sets to
// their zero value take the values of DefaultConfig.
type Config struct {
	// Binary is the server binary, looked up on $PATH when empty.
	Binary  string        `toml:"binary"`
	Metrics string        `toml:"metrics"`
	MaxWait time.Duration `toml:"max_wait"`
	*log.Config
	Standalone StandaloneConfig `toml:"standalone"`
	Sentinel   SentinelConfig   `toml:"sentinel"`
	HA         HAConfig         `toml:"ha"`
	Sharded    ShardedConfig    `toml:"sharded"`
}

// StandaloneConfig configures a single server.
type StandaloneConfig struct {
	Port     int      `toml:"port"`
	Binds    []string `toml:"binds"`
	ConfFile string   `toml:"conf_file"`
}

// SentinelConfig configures a single sentinel and the defaults of the
// sentinels of an HA cluster.
type SentinelConfig struct {
	Port                  int    `toml:"port"`
	MonitorName           string `toml:"monitor_name"`
	MonitorPort           int    `toml:"monitor_port"`
	Quorum                int    `toml:"quorum"`
	DownAfterMilliseconds int    `toml:"down_after_milliseconds"`
	FailoverTimeout       int    `toml:"failover_timeout"`
	ParallelSyncs         int    `toml:"parallel_syncs"`
}

// HAConfig configures sentinels monitoring replication groups.
type HAConfig struct {
	Sentinels int            `toml:"sentinels"`
	Groups    []*GroupConfig `toml:"groups"`
}

// GroupConfig is one replication group or shard.
type GroupConfig struct {
	Name     string `toml:"name"`
	Replicas int    `toml:"replicas"`
}

// ShardedConfig configures a sharded cluster.
type ShardedConfig struct {
	Shards                int           `toml:"shards"`
	Replicas              int           `toml:"replicas"`
	Ports                 []int         `toml:"ports"`
	InitializationTimeout time.Duration `toml:"initialization_timeout"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	c := &Config{}
	if _, err := toml.Decode(defaultConfig, c); err != nil {
		panic(err)
	}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return c
}

// LoadFromFile reads path and fills what it leaves out from DefaultConfig.
func (c *Config) LoadFromFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return errors.Wrapf(err, "Load From File:%s", path)
	}
	if err := mergo.Merge(c, DefaultConfig()); err != nil {
		return errors.Wrapf(err, "Load From File:%s", path)
	}
	return c.Validate()
}

// Validate checks ports and counts.
func (c *Config) Validate() error {
	if c.MaxWait <= 0 {
		return errors.Errorf("max_wait must be positive, got %s", c.MaxWait)
	}
	for _, p := range append([]int{c.Standalone.Port, c.Sentinel.Port, c.Sentinel.MonitorPort}, c.Sharded.Ports...) {
		if p < 0 || p > 65535 {
			return errors.Errorf("port %d out of range", p)
		}
	}
	if c.Sentinel.Quorum < 1 {
		return errors.Errorf("sentinel quorum must be at least 1, got %d", c.Sentinel.Quorum)
	}
	if c.HA.Sentinels < 1 {
		return errors.Errorf("ha needs at least one sentinel, got %d", c.HA.Sentinels)
	}
	if len(c.HA.Groups) == 0 {
		return errors.New("ha needs at least one group")
	}
	for _, g := range c.HA.Groups {
		if g.Name == "" {
			return errors.New("ha group without name")
		}
		if g.Replicas < 0 {
			return errors.Errorf("ha group %s: negative replica count", g.Name)
		}
	}
	if c.Sharded.Shards < 1 {
		return errors.Errorf("sharded needs at least one shard, got %d", c.Sharded.Shards)
	}
	if c.Sharded.Replicas < 0 {
		return errors.Errorf("sharded: negative replica count %d", c.Sharded.Replicas)
	}
	if n := len(c.Sharded.Ports); n > 0 && n < c.Sharded.Shards*(c.Sharded.Replicas+1) {
		return errors.Errorf("sharded: %d ports given, %d nodes needed", n, c.Sharded.Shards*(c.Sharded.Replicas+1))
	}
	return nil
}

const defaultConfig = `
# server binary, looked up on $PATH (valkey-server, redis-server, memurai) when empty
binary = ""
# listen address of the prometheus /metrics endpoint, disabled when empty
metrics = ""
# how long a node may take to become ready or to stop
max_wait = "10s"

stdout = false
debug = false
json = false
log = ""
log_vl = 0

[standalone]
port = 6379
binds = ["127.0.0.1", "-::1"]
conf_file = ""

[sentinel]
port = 26379
monitor_name = "mymain"
monitor_port = 6379
quorum = 1
down_after_milliseconds = 60000
failover_timeout = 180000
parallel_syncs = 1

[ha]
sentinels = 1

[[ha.groups]]
name = "mymain"
replicas = 1

[sharded]
shards = 3
replicas = 0
# fixed node ports, shard by shard with the main first; free ports are picked when empty
ports = []
initialization_timeout = "20s"
`
