package main

import (
	"testing"

	"embedvalkey/config"
	"embedvalkey/pkg/installation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroups(t *testing.T) {
	gs, err := parseGroups([]string{"orders:2", "users", "a:b:0"})
	require.NoError(t, err)
	assert.Equal(t, []*config.GroupConfig{
		{Name: "orders", Replicas: 2},
		{Name: "users"},
		{Name: "a:b", Replicas: 0},
	}, gs)

	for _, bad := range []string{":1", "orders:x", "orders:-1", ""} {
		_, err = parseGroups([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestBuilders(t *testing.T) {
	c := config.DefaultConfig()
	sup := installation.SupplierFunc(func() (*installation.Installation, error) {
		return nil, installation.ErrNoBinary
	})

	inst, err := buildStandalone(c, sup)
	require.NoError(t, err)
	assert.Contains(t, describe(inst), "port 6379")

	inst, err = buildSentinel(c, sup)
	require.NoError(t, err)
	assert.Contains(t, describe(inst), "port 26379")

	c.Sharded.Ports = []int{7000, 7001, 7002}
	inst, err = buildSharded(c, sup)
	require.NoError(t, err)
	assert.Equal(t, "sharded cluster: servers [7000 7001 7002]", describe(inst))
}
