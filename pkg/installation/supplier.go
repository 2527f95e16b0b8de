package installation

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// EnvBinary names the environment variable that overrides binary lookup.
const EnvBinary = "VALKEY_BINARY"

// ErrNoBinary is returned when no server binary can be located.
var ErrNoBinary = errors.New("no valkey-server or redis-server binary found")

var defaultBinaries = []string{"valkey-server", "redis-server", "memurai"}

// Supplier provides an installation. Implementations may be slow and are
// called on every node start.
type Supplier interface {
	Install() (*Installation, error)
}

// SupplierFunc adapts a function to Supplier.
type SupplierFunc func() (*Installation, error)

// Install calls f.
func (f SupplierFunc) Install() (*Installation, error) {
	return f()
}

// Static always supplies inst.
func Static(inst *Installation) Supplier {
	return SupplierFunc(func() (*Installation, error) {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		return inst, nil
	})
}

// LookPath supplies the binary named by $VALKEY_BINARY, or the first of
// valkey-server, redis-server and memurai found on $PATH.
func LookPath() Supplier {
	return SupplierFunc(func() (*Installation, error) {
		bin := os.Getenv(EnvBinary)
		if bin == "" {
			for _, name := range defaultBinaries {
				if p, err := exec.LookPath(name); err == nil {
					bin = p
					break
				}
			}
		}
		if bin == "" {
			return nil, ErrNoBinary
		}
		return FromBinary(bin)
	})
}

// FromBinary inspects the given binary and returns its installation.
func FromBinary(bin string) (*Installation, error) {
	abs, err := filepath.Abs(bin)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve binary %s", bin)
	}
	if err = CheckBinary(abs); err != nil {
		return nil, err
	}
	out, err := exec.Command(abs, "--version").Output()
	if err != nil {
		return nil, errors.Wrapf(err, "query version of %s", abs)
	}
	dist, version := ParseVersion(string(out))
	return New(dist, version, filepath.Dir(abs), abs)
}

var versionPattern = regexp.MustCompile(`v=(\S+)`)

// ParseVersion extracts distribution and version from the output of
// `<server> --version`, e.g. "Valkey server v=8.0.1 sha=00000000:0".
func ParseVersion(out string) (Distribution, string) {
	dist := Redis
	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "memurai") && strings.Contains(lower, "valkey"):
		dist = MemuraiForValkey
	case strings.Contains(lower, "memurai"):
		dist = Memurai
	case strings.Contains(lower, "valkey"):
		dist = Valkey
	}
	version := "unknown"
	if m := versionPattern.FindStringSubmatch(out); len(m) == 2 {
		version = m[1]
	}
	return dist, version
}

// Key identifies a cached installation.
type Key struct {
	Version string
	OS      string
	Arch    string
}

// Cache memoizes installations by Key so repeated starts do not install
// again. It is safe for concurrent use.
type Cache struct {
	lock  sync.Mutex
	items map[Key]*Installation
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{items: make(map[Key]*Installation)}
}

// DefaultCache is shared by Cached.
var DefaultCache = NewCache()

// Supplier wraps s; the first valid installation supplied for key is reused
// until it stops validating.
func (c *Cache) Supplier(key Key, s Supplier) Supplier {
	return SupplierFunc(func() (*Installation, error) {
		c.lock.Lock()
		defer c.lock.Unlock()
		if inst, ok := c.items[key]; ok {
			if inst.Validate() == nil {
				return inst, nil
			}
			delete(c.items, key)
		}
		inst, err := s.Install()
		if err != nil {
			return nil, err
		}
		c.items[key] = inst
		return inst, nil
	})
}

// Len returns the number of cached installations.
func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.items)
}

// Cached wraps s with DefaultCache.
func Cached(key Key, s Supplier) Supplier {
	return DefaultCache.Supplier(key, s)
}

// Default looks the binary up on $PATH once per host platform.
func Default() Supplier {
	return Cached(Key{Version: "path", OS: runtimeOS, Arch: runtimeArch}, LookPath())
}
