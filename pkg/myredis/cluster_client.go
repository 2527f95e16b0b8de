package myredis

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"embedvalkey/pkg/hashkit"
	"embedvalkey/pkg/log"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

const maxRedirects = 5

// errors
var (
	ErrNoSeeds         = errors.New("cluster client needs at least one seed address")
	ErrSlotNotCovered  = errors.New("slot is not served by any node")
	ErrTooManyRedirect = errors.New("too many cluster redirects")
)

// ClusterClient routes keyed commands to the master owning the key slot,
// following MOVED and ASK redirects.
type ClusterClient struct {
	seeds   []string
	timeout time.Duration
	dial    DialFunc

	lock  sync.Mutex
	slots [hashkit.SlotCount]string
	conns map[string]*Conn
}

// ClusterOption configures a ClusterClient.
type ClusterOption func(*ClusterClient)

// WithDialFunc replaces net.Dial.
func WithDialFunc(dial DialFunc) ClusterOption {
	return func(c *ClusterClient) { c.dial = dial }
}

// WithTimeout sets connect, read and write timeouts.
func WithTimeout(timeout time.Duration) ClusterOption {
	return func(c *ClusterClient) { c.timeout = timeout }
}

// NewClusterClient returns a client bootstrapping from seeds.
func NewClusterClient(seeds []string, opts ...ClusterOption) (*ClusterClient, error) {
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	c := &ClusterClient{
		seeds:   append([]string(nil), seeds...),
		timeout: 5 * time.Second,
		conns:   make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Refresh reloads the slot table from the first seed that answers.
func (c *ClusterClient) Refresh() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.refresh()
}

func (c *ClusterClient) refresh() (err error) {
	for _, seed := range c.seeds {
		var conn *Conn
		if conn, err = c.conn(seed); err != nil {
			continue
		}
		var ranges []SlotRange
		if ranges, err = conn.ClusterSlots(); err != nil {
			c.drop(seed)
			continue
		}
		seedHost, _, _ := splitHostPort(seed)
		c.slots = [hashkit.SlotCount]string{}
		for _, r := range ranges {
			addr := r.Master
			if strings.HasPrefix(addr, ":") {
				addr = seedHost + addr
			}
			for s := r.Start; s <= r.End && s < hashkit.SlotCount; s++ {
				c.slots[s] = addr
			}
		}
		return nil
	}
	return errors.Wrap(err, "refresh cluster slots")
}

// Do runs a command whose first argument is key.
func (c *ClusterClient) Do(command, key string, args ...interface{}) (interface{}, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	slot := hashkit.SlotString(key)
	addr := c.slots[slot]
	if addr == "" {
		if err := c.refresh(); err != nil {
			return nil, err
		}
		if addr = c.slots[slot]; addr == "" {
			return nil, errors.Wrapf(ErrSlotNotCovered, "slot %d", slot)
		}
	}
	cmd := NewCmd(command).Arg(key).Arg(args...)
	asking := false
	for i := 0; i < maxRedirects; i++ {
		conn, err := c.conn(addr)
		if err != nil {
			return nil, err
		}
		if asking {
			if err = conn.ok(NewCmd("ASKING")); err != nil {
				return nil, err
			}
			asking = false
		}
		err = conn.Exec(cmd)
		if err == nil {
			return cmd.Reply, nil
		}
		rerr, ok := errors.Cause(err).(redis.Error)
		if !ok {
			c.drop(addr)
			return nil, err
		}
		kind, target, slotOf, ok := parseRedirect(string(rerr))
		if !ok {
			return nil, err
		}
		log.Debugf("%s redirect of slot %d to %s", kind, slotOf, target)
		if kind == "MOVED" {
			c.slots[slotOf] = target
		} else {
			asking = true
		}
		addr = target
	}
	return nil, errors.Wrapf(ErrTooManyRedirect, "%s", cmd)
}

// Get returns the value of key; found is false for a missing key.
func (c *ClusterClient) Get(key string) (string, bool, error) {
	reply, err := c.Do("GET", key)
	if err != nil {
		return "", false, err
	}
	val, err := redis.String(reply, nil)
	if err == redis.ErrNil {
		return "", false, nil
	}
	return val, err == nil, err
}

// Set sets key to value.
func (c *ClusterClient) Set(key, value string) error {
	_, err := c.Do("SET", key, value)
	return err
}

// Close closes every connection.
func (c *ClusterClient) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	var err error
	for addr, conn := range c.conns {
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
		delete(c.conns, addr)
	}
	return err
}

func (c *ClusterClient) conn(addr string) (*Conn, error) {
	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}
	conn, err := DialWith(addr, c.timeout, c.dial)
	if err != nil {
		return nil, err
	}
	c.conns[addr] = conn
	return conn, nil
}

func (c *ClusterClient) drop(addr string) {
	if conn, ok := c.conns[addr]; ok {
		_ = conn.Close()
		delete(c.conns, addr)
	}
}

// parseRedirect parses "MOVED 3999 127.0.0.1:6381" and "ASK ...".
func parseRedirect(msg string) (kind, addr string, slot int, ok bool) {
	fields := strings.Fields(msg)
	if len(fields) != 3 || (fields[0] != "MOVED" && fields[0] != "ASK") {
		return
	}
	slot, err := strconv.Atoi(fields[1])
	if err != nil || slot < 0 || slot >= hashkit.SlotCount {
		return
	}
	return fields[0], fields[2], slot, true
}
