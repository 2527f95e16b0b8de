package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"embedvalkey/cluster"
	"embedvalkey/config"
	"embedvalkey/node"
	"embedvalkey/pkg/installation"
	"embedvalkey/pkg/log"
	"embedvalkey/pkg/process"
	"embedvalkey/pkg/prom"
	"embedvalkey/version"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var (
	confPath string
	binary   string
	debug    bool
	metrics  string

	port        int
	monitorPort int
	sentinels   int
	groups      cli.StringSlice
	shards      int
	replicas    int
)

func main() {
	app := cli.NewApp()
	app.Name = "valkeyctl"
	app.Usage = "run throwaway valkey servers, sentinels and clusters on this host"
	app.Version = version.String()
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "conf,c", Usage: "toml configuration file", Destination: &confPath},
		cli.StringFlag{Name: "binary,b", Usage: "server binary, looked up on $PATH when empty", Destination: &binary},
		cli.BoolFlag{Name: "debug", Usage: "log at debug level", Destination: &debug},
		cli.StringFlag{Name: "metrics", Usage: "serve prometheus metrics on this address", Destination: &metrics},
	}
	app.Commands = []cli.Command{
		{
			Name:      "standalone",
			ShortName: "s",
			Usage:     "run a single server",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "port,p", Usage: "server port", Destination: &port},
			},
			Action: func(c *cli.Context) error {
				return run(buildStandalone)
			},
		},
		{
			Name:  "sentinel",
			Usage: "run a single sentinel",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "port,p", Usage: "sentinel port", Destination: &port},
				cli.IntFlag{Name: "monitor-port", Usage: "port of the monitored main", Destination: &monitorPort},
			},
			Action: func(c *cli.Context) error {
				return run(buildSentinel)
			},
		},
		{
			Name:  "ha",
			Usage: "run sentinels monitoring replication groups",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "sentinels", Usage: "number of sentinels", Destination: &sentinels},
				cli.StringSliceFlag{Name: "group,g", Usage: "replication group as name:replicas, repeatable", Value: &groups},
			},
			Action: func(c *cli.Context) error {
				return run(buildHA)
			},
		},
		{
			Name:  "sharded",
			Usage: "run a sharded cluster",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "shards", Usage: "number of shards", Destination: &shards},
				cli.IntFlag{Name: "replicas", Usage: "replicas per shard", Value: -1, Destination: &replicas},
			},
			Action: func(c *cli.Context) error {
				return run(buildSharded)
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type builder func(c *config.Config, sup installation.Supplier) (node.Instance, error)

func run(build builder) error {
	c, err := parseConfig()
	if err != nil {
		return err
	}
	if !log.Init(c.Config) {
		log.InitHandle(log.NewConsoleHandler(os.Stderr))
	}
	defer log.Close()
	if c.Metrics != "" {
		prom.Init()
		go func() {
			if err := http.ListenAndServe(c.Metrics, nil); err != nil {
				log.Errorf("metrics listener: %v", err)
			}
		}()
	} else {
		prom.On = false
	}

	inst, err := build(c, supplier(c.Binary))
	if err != nil {
		return err
	}
	if err = inst.Start(true, c.MaxWait); err != nil {
		stopAll(c)
		return err
	}
	log.Infof("%s is up, press ctrl-c to stop", describe(inst))

	signalHandler()
	err = inst.Stop(false, c.MaxWait, true)
	stopAll(c)
	return err
}

func parseConfig() (*config.Config, error) {
	var c *config.Config
	if confPath != "" {
		c = &config.Config{}
		if err := c.LoadFromFile(confPath); err != nil {
			return nil, err
		}
	} else {
		c = config.DefaultConfig()
	}
	// flags win over the file
	if binary != "" {
		c.Binary = binary
	}
	if debug {
		c.Debug = true
	}
	if metrics != "" {
		c.Metrics = metrics
	}
	if port > 0 {
		c.Standalone.Port = port
		c.Sentinel.Port = port
	}
	if monitorPort > 0 {
		c.Sentinel.MonitorPort = monitorPort
	}
	if sentinels > 0 {
		c.HA.Sentinels = sentinels
	}
	if len(groups) > 0 {
		gs, err := parseGroups([]string(groups))
		if err != nil {
			return nil, err
		}
		c.HA.Groups = gs
	}
	if shards > 0 {
		c.Sharded.Shards = shards
	}
	if replicas >= 0 {
		c.Sharded.Replicas = replicas
	}
	return c, c.Validate()
}

// parseGroups parses name:replicas pairs; a bare name has no replicas.
func parseGroups(ss []string) ([]*config.GroupConfig, error) {
	gs := make([]*config.GroupConfig, 0, len(ss))
	for _, s := range ss {
		g := &config.GroupConfig{Name: s}
		if i := strings.LastIndexByte(s, ':'); i >= 0 {
			n, err := strconv.Atoi(s[i+1:])
			if err != nil || n < 0 {
				return nil, errors.Errorf("bad group %q, want name:replicas", s)
			}
			g.Name, g.Replicas = s[:i], n
		}
		if g.Name == "" {
			return nil, errors.Errorf("bad group %q, want name:replicas", s)
		}
		gs = append(gs, g)
	}
	return gs, nil
}

func supplier(bin string) installation.Supplier {
	if bin == "" {
		return installation.Default()
	}
	key := installation.Key{Version: bin, OS: runtime.GOOS, Arch: runtime.GOARCH}
	return installation.Cached(key, installation.SupplierFunc(func() (*installation.Installation, error) {
		return installation.FromBinary(bin)
	}))
}

func buildStandalone(c *config.Config, sup installation.Supplier) (node.Instance, error) {
	b := node.NewStandaloneBuilder().
		Supplier(sup).
		Binds(c.Standalone.Binds...).
		Port(c.Standalone.Port)
	if c.Standalone.ConfFile != "" {
		b.ImportConfFile(c.Standalone.ConfFile)
	}
	return b.Build()
}

func sentinelBuilder(c *config.Config, sup installation.Supplier) *node.SentinelBuilder {
	return node.NewSentinelBuilder().
		Supplier(sup).
		QuorumSize(c.Sentinel.Quorum).
		DownAfterMilliseconds(c.Sentinel.DownAfterMilliseconds).
		FailoverTimeout(c.Sentinel.FailoverTimeout).
		ParallelSyncs(c.Sentinel.ParallelSyncs)
}

func buildSentinel(c *config.Config, sup installation.Supplier) (node.Instance, error) {
	return sentinelBuilder(c, sup).
		Port(c.Sentinel.Port).
		Monitor(c.Sentinel.MonitorName, c.Sentinel.MonitorPort).
		Build()
}

func buildHA(c *config.Config, sup installation.Supplier) (node.Instance, error) {
	b := cluster.NewHighAvailabilityBuilder().
		ServerBuilder(node.NewStandaloneBuilder().Supplier(sup).Binds(c.Standalone.Binds...)).
		SentinelBuilder(sentinelBuilder(c, sup)).
		SentinelCount(c.HA.Sentinels)
	for _, g := range c.HA.Groups {
		b.ReplicationGroup(g.Name, g.Replicas)
	}
	return b.Build()
}

func buildSharded(c *config.Config, sup installation.Supplier) (node.Instance, error) {
	b := cluster.NewShardedBuilder().
		ServerBuilder(node.NewStandaloneBuilder().Supplier(sup).Binds(c.Standalone.Binds...)).
		InitializationTimeout(c.Sharded.InitializationTimeout)
	if len(c.Sharded.Ports) > 0 {
		b.ServerPorts(c.Sharded.Ports)
	} else {
		b.Ephemeral()
	}
	for i := 0; i < c.Sharded.Shards; i++ {
		b.Shard("shard-"+strconv.Itoa(i), c.Sharded.Replicas)
	}
	return b.Build()
}

func describe(inst node.Instance) string {
	switch v := inst.(type) {
	case *cluster.HighAvailability:
		return fmt.Sprintf("ha cluster: sentinels %v, servers %v", v.SentinelPorts(), v.ServerPorts())
	case *cluster.Sharded:
		return fmt.Sprintf("sharded cluster: servers %v", v.ServerPorts())
	case node.Node:
		return fmt.Sprintf("server on port %d, working dir %s", v.Port(), v.WorkingDir())
	}
	return "instance"
}

// stopAll stops whatever a failed start or stop left behind.
func stopAll(c *config.Config) {
	if err := process.DefaultRegistry.StopAll(true, c.MaxWait); err != nil {
		log.Errorf("%v", err)
	}
}

func signalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(c)
	s := <-c
	log.Infof("valkeyctl got signal %s, stopping", s.String())
}
