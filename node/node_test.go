package node

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"embedvalkey/pkg/conf"
	"embedvalkey/pkg/installation"
	"embedvalkey/pkg/myredis"
	"embedvalkey/pkg/ports"
	"embedvalkey/pkg/process"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeServer = `#!/bin/sh
echo "$@" > args.txt
echo "Ready to accept connections"
trap 'exit 0' TERM
while true; do sleep 0.05; done
`

type countingSupplier struct {
	inst  *installation.Installation
	calls int32
}

func (s *countingSupplier) Install() (*installation.Installation, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.inst, nil
}

func fakeSupplier(t *testing.T) *countingSupplier {
	if runtime.GOOS == "windows" {
		t.Skip("fake servers are shell scripts")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "valkey-server")
	require.NoError(t, os.WriteFile(bin, []byte(fakeServer), 0755))
	inst, err := installation.New(installation.Valkey, "8.0.1", dir, bin)
	require.NoError(t, err)
	return &countingSupplier{inst: inst}
}

func TestStandaloneNeverStarted(t *testing.T) {
	s, err := NewStandaloneBuilder().Supplier(fakeSupplier(t)).Port(7001).Build()
	require.NoError(t, err)
	assert.False(t, s.Active())
	assert.Equal(t, "", s.WorkingDir())
	assert.Equal(t, 7001, s.Port())
	assert.Equal(t, []string{"127.0.0.1", "-::1"}, s.Binds())
	assert.NoError(t, s.Stop(false, time.Second, false))
	assert.NoError(t, s.Close())
}

func TestStandaloneRestartReusesProcess(t *testing.T) {
	sup := fakeSupplier(t)
	s, err := NewStandaloneBuilder().
		Supplier(sup).
		ProcessOptions(process.WithRegistry(process.NewRegistry())).
		Build()
	require.NoError(t, err)
	defer s.Stop(true, time.Second, true)

	require.NoError(t, s.Start(true, 5*time.Second))
	dir := s.WorkingDir()
	assert.NotEmpty(t, dir)
	require.NoError(t, s.Start(true, 5*time.Second))
	require.NoError(t, s.Stop(false, 5*time.Second, false))
	assert.False(t, s.Active())

	require.NoError(t, s.Start(true, 5*time.Second))
	assert.True(t, s.Active())
	assert.Equal(t, dir, s.WorkingDir())
	assert.Equal(t, int32(3), atomic.LoadInt32(&sup.calls))
}

func TestStandaloneSupplierError(t *testing.T) {
	boom := errors.New("download failed")
	s := NewStandalone(installation.SupplierFunc(func() (*installation.Installation, error) {
		return nil, boom
	}), conf.Default())
	err := s.Start(true, time.Second)
	assert.Equal(t, boom, errors.Cause(err))
	assert.False(t, s.Active())
}

func TestStandaloneBuilder(t *testing.T) {
	b := NewStandaloneBuilder().
		Supplier(fakeSupplier(t)).
		Bind("10.0.0.1").
		Port(7002).
		ReplicaOf("127.0.0.1", 7000).
		Directive("appendonly", "no")
	clone := b.Clone().Port(7003).Binds("0.0.0.0")

	s, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 7002, s.Port())
	assert.Equal(t, []string{"127.0.0.1", "-::1", "10.0.0.1"}, s.Binds())
	ro := s.Conf().Lookup(conf.KeywordReplicaOf)
	require.Len(t, ro, 1)
	assert.Equal(t, []string{"127.0.0.1", "7000"}, ro[0].Arguments)

	cs, err := clone.Build()
	require.NoError(t, err)
	assert.Equal(t, 7003, cs.Port())
	assert.Equal(t, []string{"0.0.0.0"}, cs.Binds())

	_, err = NewStandaloneBuilder().Port(70000).Build()
	assert.Equal(t, conf.ErrInvalidPort, errors.Cause(err))
}

func TestStandaloneImportConfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.conf")
	require.NoError(t, os.WriteFile(path, []byte("maxmemory 64mb\nsave \"\"\n"), 0644))
	s, err := NewStandaloneBuilder().Supplier(fakeSupplier(t)).ImportConfFile(path).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"64mb"}, s.Conf().Lookup("maxmemory")[0].Arguments)
	assert.Equal(t, []string{""}, s.Conf().Lookup("save")[0].Arguments)
}

func TestSentinelBuilderDefaults(t *testing.T) {
	b := NewSentinelBuilder().Supplier(fakeSupplier(t)).PortProvider(ports.NewSequence(26500))
	s, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 26500, s.Port())

	var lines []string
	for _, d := range s.Conf().Lookup("sentinel") {
		lines = append(lines, strings.Join(d.Arguments, " "))
	}
	assert.Equal(t, []string{
		"monitor mymain 127.0.0.1 6379 1",
		"down-after-milliseconds mymain 60000",
		"failover-timeout mymain 180000",
		"parallel-syncs mymain 1",
	}, lines)

	// building again neither duplicates directives nor reuses the port
	s2, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 26501, s2.Port())
	assert.Len(t, s2.Conf().Lookup("sentinel"), 4)
}

func TestSentinelBuilderMonitors(t *testing.T) {
	s, err := NewSentinelBuilder().
		Supplier(fakeSupplier(t)).
		Port(26600).
		QuorumSize(2).
		DownAfterMilliseconds(1000).
		FailoverTimeout(2000).
		ParallelSyncs(3).
		Monitor("a", 7000).
		Monitor("b", 7100).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 26600, s.Port())
	ds := s.Conf().Lookup("sentinel")
	require.Len(t, ds, 8)
	assert.Equal(t, []string{"monitor", "a", "127.0.0.1", "7000", "2"}, ds[0].Arguments)
	assert.Equal(t, []string{"down-after-milliseconds", "a", "1000"}, ds[1].Arguments)
	assert.Equal(t, []string{"failover-timeout", "a", "2000"}, ds[2].Arguments)
	assert.Equal(t, []string{"parallel-syncs", "a", "3"}, ds[3].Arguments)
	assert.Equal(t, []string{"monitor", "b", "127.0.0.1", "7100", "2"}, ds[4].Arguments)
}

func TestSentinelPortExhausted(t *testing.T) {
	_, err := NewSentinelBuilder().Supplier(fakeSupplier(t)).PortProvider(ports.NewPredefined()).Build()
	assert.Equal(t, ports.ErrExhausted, errors.Cause(err))
}

func TestSentinelStartsInSentinelMode(t *testing.T) {
	s, err := NewSentinelBuilder().
		Supplier(fakeSupplier(t)).
		Port(26700).
		ProcessOptions(process.WithRegistry(process.NewRegistry())).
		Build()
	require.NoError(t, err)
	require.NoError(t, s.Start(true, 5*time.Second))
	defer s.Stop(true, time.Second, true)
	assert.True(t, s.Active())

	args, err := os.ReadFile(filepath.Join(s.WorkingDir(), "args.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "--sentinel")
}

// realSupplier skips the test unless a server binary is installed.
func realSupplier(t *testing.T) installation.Supplier {
	if testing.Short() {
		t.Skip("integration test")
	}
	s := installation.LookPath()
	if _, err := s.Install(); err != nil {
		t.Skipf("no server binary: %v", err)
	}
	return s
}

func TestStandaloneIntegration(t *testing.T) {
	sup := realSupplier(t)
	port, err := ports.DefaultAllocator.Next(false)
	require.NoError(t, err)

	s, err := NewStandaloneBuilder().Supplier(sup).Port(port).Build()
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Start(true, 10*time.Second))
		c, err := myredis.Dial("127.0.0.1:"+strconv.Itoa(port), time.Second)
		require.NoError(t, err)
		require.NoError(t, c.Ping())
		require.NoError(t, c.Close())
		require.NoError(t, s.Stop(false, 10*time.Second, false))
		assert.False(t, s.Active())
	}
	require.NoError(t, os.RemoveAll(s.WorkingDir()))
}
