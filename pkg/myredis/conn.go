package myredis

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// DialFunc opens a network connection, see net.Dial.
type DialFunc func(network, addr string) (net.Conn, error)

// Conn is an admin connection to one server.
type Conn struct {
	addr string
	conn redis.Conn
}

// Value is one element of an MGET reply.
type Value struct {
	Data  string
	Found bool
}

// Dial connects to addr. timeout bounds connect, read and write.
func Dial(addr string, timeout time.Duration) (*Conn, error) {
	return DialWith(addr, timeout, nil)
}

// DialWith connects using dial, or net.Dial if dial is nil.
func DialWith(addr string, timeout time.Duration, dial DialFunc) (*Conn, error) {
	opts := []redis.DialOption{
		redis.DialConnectTimeout(timeout),
		redis.DialReadTimeout(timeout),
		redis.DialWriteTimeout(timeout),
	}
	if dial != nil {
		opts = append(opts, redis.DialNetDial(dial))
	}
	c, err := redis.Dial("tcp", addr, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return &Conn{addr: addr, conn: c}, nil
}

// NewConn wraps an established network connection.
func NewConn(addr string, nc net.Conn, timeout time.Duration) *Conn {
	return &Conn{addr: addr, conn: redis.NewConn(nc, timeout, timeout)}
}

// Addr returns the server address.
func (c *Conn) Addr() string {
	return c.addr
}

// Exec sends cmd and stores the reply in cmd.Reply.
func (c *Conn) Exec(cmd *Command) (err error) {
	cmd.Reply, err = c.conn.Do(cmd.command, cmd.args...)
	if err != nil {
		err = errors.Wrapf(err, "%s: %s", c.addr, cmd)
	}
	return
}

func (c *Conn) ok(cmd *Command) error {
	if err := c.Exec(cmd); err != nil {
		return err
	}
	if _, err := redis.String(cmd.Reply, nil); err != nil {
		return errors.Wrapf(err, "%s: %s", c.addr, cmd)
	}
	return nil
}

// Ping checks the server answers.
func (c *Conn) Ping() error {
	return c.ok(NewCmd("PING"))
}

// Get returns the value of key; found is false for a missing key.
func (c *Conn) Get(key string) (val string, found bool, err error) {
	cmd := NewCmd("GET").Arg(key)
	if err = c.Exec(cmd); err != nil {
		return
	}
	val, err = redis.String(cmd.Reply, nil)
	if err == redis.ErrNil {
		return "", false, nil
	}
	return val, err == nil, err
}

// Set sets key to value.
func (c *Conn) Set(key, value string) error {
	return c.ok(NewCmd("SET").Arg(key, value))
}

// MSet sets key/value pairs.
func (c *Conn) MSet(kvs ...string) error {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return errors.Errorf("mset needs key value pairs, got %d arguments", len(kvs))
	}
	cmd := NewCmd("MSET")
	for _, kv := range kvs {
		cmd.Arg(kv)
	}
	return c.ok(cmd)
}

// MGet returns the values of keys in order.
func (c *Conn) MGet(keys ...string) ([]Value, error) {
	cmd := NewCmd("MGET")
	for _, k := range keys {
		cmd.Arg(k)
	}
	if err := c.Exec(cmd); err != nil {
		return nil, err
	}
	vs, err := redis.Values(cmd.Reply, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: %s", c.addr, cmd)
	}
	res := make([]Value, len(vs))
	for i, v := range vs {
		if v == nil {
			continue
		}
		s, err := redis.String(v, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", c.addr, cmd)
		}
		res[i] = Value{Data: s, Found: true}
	}
	return res, nil
}

// FlushAll removes every key.
func (c *Conn) FlushAll() error {
	return c.ok(NewCmd("FLUSHALL"))
}

// ClusterMeet makes the server handshake with host:port.
func (c *Conn) ClusterMeet(host string, port int) error {
	return c.ok(NewCmd("CLUSTER").Arg("MEET", host, port))
}

// ClusterMyID returns the node id of the server.
func (c *Conn) ClusterMyID() (string, error) {
	cmd := NewCmd("CLUSTER").Arg("MYID")
	if err := c.Exec(cmd); err != nil {
		return "", err
	}
	id, err := redis.String(cmd.Reply, nil)
	return id, errors.Wrapf(err, "%s: %s", c.addr, cmd)
}

// ClusterAddSlots assigns the slots start..end, both inclusive.
func (c *Conn) ClusterAddSlots(start, end int) error {
	if start < 0 || end < start {
		return errors.Errorf("invalid slot range %d-%d", start, end)
	}
	args := make([]interface{}, 0, end-start+2)
	args = append(args, "ADDSLOTS")
	for s := start; s <= end; s++ {
		args = append(args, s)
	}
	reply, err := c.conn.Do("CLUSTER", args...)
	if err == nil {
		_, err = redis.String(reply, nil)
	}
	if err != nil {
		// the full slot list is too long for error text
		return errors.Wrapf(err, "%s: CLUSTER ADDSLOTS %d-%d", c.addr, start, end)
	}
	return nil
}

// ClusterReplicate makes the server a replica of the given node id.
func (c *Conn) ClusterReplicate(nodeID string) error {
	return c.ok(NewCmd("CLUSTER").Arg("REPLICATE", nodeID))
}

// ClusterReset resets the cluster state of the server. A soft reset keeps
// the node id.
func (c *Conn) ClusterReset(soft bool) error {
	mode := "HARD"
	if soft {
		mode = "SOFT"
	}
	return c.ok(NewCmd("CLUSTER").Arg("RESET", mode))
}

// ClusterInfo returns the fields of CLUSTER INFO.
func (c *Conn) ClusterInfo() (map[string]string, error) {
	cmd := NewCmd("CLUSTER").Arg("INFO")
	if err := c.Exec(cmd); err != nil {
		return nil, err
	}
	s, err := redis.String(cmd.Reply, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: %s", c.addr, cmd)
	}
	return parseInfo(s), nil
}

// ClusterState returns cluster_state of CLUSTER INFO, e.g. "ok".
func (c *Conn) ClusterState() (string, error) {
	info, err := c.ClusterInfo()
	if err != nil {
		return "", err
	}
	return info["cluster_state"], nil
}

// ClusterNodes returns the nodes the server knows about.
func (c *Conn) ClusterNodes() ([]*NodeInfo, error) {
	cmd := NewCmd("CLUSTER").Arg("NODES")
	if err := c.Exec(cmd); err != nil {
		return nil, err
	}
	s, err := redis.String(cmd.Reply, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: %s", c.addr, cmd)
	}
	return ParseNodes(s)
}

// ClusterSlots returns the slot ranges and their masters.
func (c *Conn) ClusterSlots() ([]SlotRange, error) {
	cmd := NewCmd("CLUSTER").Arg("SLOTS")
	if err := c.Exec(cmd); err != nil {
		return nil, err
	}
	return parseSlots(cmd.Reply)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func parseInfo(s string) map[string]string {
	res := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			continue
		}
		res[kv[0]] = kv[1]
	}
	return res
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
