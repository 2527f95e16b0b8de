package installation

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBinary(t *testing.T, mode os.FileMode) (dir, bin string) {
	dir = t.TempDir()
	bin = filepath.Join(dir, "valkey-server")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'Valkey server v=8.0.1 sha=00000000:0'\n"), mode))
	return
}

func TestValidate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	dir, bin := fakeBinary(t, 0755)
	inst, err := New(Valkey, "8.0.1", dir, bin)
	require.NoError(t, err)
	assert.Equal(t, Key{Version: "8.0.1", OS: runtime.GOOS, Arch: runtime.GOARCH}, inst.Key())

	_, err = New(Valkey, "8.0.1", dir, filepath.Join(dir, "missing"))
	assert.Equal(t, ErrBinaryNotFound, errors.Cause(err))

	_, err = New(Valkey, "8.0.1", filepath.Join(dir, "missing"), bin)
	assert.Equal(t, ErrDirNotFound, errors.Cause(err))

	_, err = New(Valkey, "8.0.1", bin, bin)
	assert.Equal(t, ErrNotADirectory, errors.Cause(err))

	_, err = New(Valkey, "", dir, bin)
	assert.Equal(t, ErrBlankVersion, errors.Cause(err))

	dir2, noexec := fakeBinary(t, 0644)
	_, err = New(Valkey, "8.0.1", dir2, noexec)
	assert.Equal(t, ErrBinaryNotExecutable, errors.Cause(err))
}

func TestDistributionString(t *testing.T) {
	assert.Equal(t, "Valkey", Valkey.String())
	assert.Equal(t, "Redis", Redis.String())
	assert.Equal(t, "Memurai", Memurai.String())
	assert.Equal(t, "Memurai for Valkey", MemuraiForValkey.String())
	assert.Equal(t, "Distribution(9)", Distribution(9).String())
}

func TestParseVersion(t *testing.T) {
	d, v := ParseVersion("Valkey server v=8.0.1 sha=00000000:0 malloc=jemalloc-5.3.0 bits=64 build=1")
	assert.Equal(t, Valkey, d)
	assert.Equal(t, "8.0.1", v)

	d, v = ParseVersion("Redis server v=7.2.4 sha=00000000:0 malloc=libc bits=64 build=2")
	assert.Equal(t, Redis, d)
	assert.Equal(t, "7.2.4", v)

	d, v = ParseVersion("Memurai server v=4.1.2")
	assert.Equal(t, Memurai, d)
	assert.Equal(t, "4.1.2", v)

	_, v = ParseVersion("garbage")
	assert.Equal(t, "unknown", v)
}

func TestCacheSuppliesOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	dir, bin := fakeBinary(t, 0755)
	calls := 0
	inner := SupplierFunc(func() (*Installation, error) {
		calls++
		return New(Valkey, "8.0.1", dir, bin)
	})
	c := NewCache()
	key := Key{Version: "8.0.1", OS: runtime.GOOS, Arch: runtime.GOARCH}
	s := c.Supplier(key, inner)

	first, err := s.Install()
	require.NoError(t, err)
	second, err := c.Supplier(key, inner).Install()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())

	// an installation that no longer validates is supplied again
	require.NoError(t, os.Remove(bin))
	_, err = s.Install()
	assert.Equal(t, ErrBinaryNotFound, errors.Cause(err))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())
}

func TestCacheDoesNotKeepErrors(t *testing.T) {
	boom := errors.New("boom")
	c := NewCache()
	s := c.Supplier(Key{Version: "x"}, SupplierFunc(func() (*Installation, error) { return nil, boom }))
	_, err := s.Install()
	assert.Equal(t, boom, err)
	assert.Equal(t, 0, c.Len())
}

func TestLookPathFromEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	dir, bin := fakeBinary(t, 0755)
	t.Setenv(EnvBinary, bin)

	inst, err := LookPath().Install()
	require.NoError(t, err)
	assert.Equal(t, Valkey, inst.Distribution)
	assert.Equal(t, "8.0.1", inst.Version)
	assert.Equal(t, dir, inst.Dir)
	assert.Equal(t, bin, inst.BinaryPath)
}
