package myredis

import (
	"bufio"
	"net"
	"strconv"
	"strings"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// ErrBadNodesLine is returned for a malformed CLUSTER NODES line.
var ErrBadNodesLine = errors.New("malformed cluster nodes line")

// NodeInfo is one line of CLUSTER NODES.
type NodeInfo struct {
	ID     string
	Addr   string
	Flags  []string
	Master string
	Link   string
	Slots  [][2]int
}

// HasFlag reports whether the node carries flag, e.g. "master".
func (n *NodeInfo) HasFlag(flag string) bool {
	for _, f := range n.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Self reports whether this line describes the answering node.
func (n *NodeInfo) Self() bool {
	return n.HasFlag("myself")
}

// IsMaster reports whether the node is a master.
func (n *NodeInfo) IsMaster() bool {
	return n.HasFlag("master")
}

// ParseNodes parses the reply of CLUSTER NODES.
func ParseNodes(data string) (nodes []*NodeInfo, err error) {
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 8 {
			return nil, errors.Wrapf(ErrBadNodesLine, "line %q", line)
		}
		n := &NodeInfo{
			ID:    fields[0],
			Addr:  strings.SplitN(strings.SplitN(fields[1], ",", 2)[0], "@", 2)[0],
			Flags: strings.Split(fields[2], ","),
			Link:  fields[7],
		}
		if fields[3] != "-" {
			n.Master = fields[3]
		}
		for _, content := range fields[8:] {
			// migrating/importing entries look like [slot->-id]
			if strings.HasPrefix(content, "[") {
				continue
			}
			scope := strings.SplitN(content, "-", 2)
			start, err := strconv.Atoi(scope[0])
			if err != nil {
				return nil, errors.Wrapf(ErrBadNodesLine, "slot %q", content)
			}
			end := start
			if len(scope) == 2 {
				if end, err = strconv.Atoi(scope[1]); err != nil {
					return nil, errors.Wrapf(ErrBadNodesLine, "slot %q", content)
				}
			}
			n.Slots = append(n.Slots, [2]int{start, end})
		}
		nodes = append(nodes, n)
	}
	return
}

// SlotRange is one entry of CLUSTER SLOTS.
type SlotRange struct {
	Start, End int
	Master     string
	Replicas   []string
}

func parseSlots(reply interface{}) ([]SlotRange, error) {
	entries, err := redis.Values(reply, nil)
	if err != nil {
		return nil, errors.Wrap(err, "cluster slots")
	}
	ranges := make([]SlotRange, 0, len(entries))
	for _, e := range entries {
		fields, err := redis.Values(e, nil)
		if err != nil || len(fields) < 3 {
			return nil, errors.Errorf("unexpected cluster slots entry %v", e)
		}
		var r SlotRange
		if r.Start, err = redis.Int(fields[0], nil); err != nil {
			return nil, errors.Wrap(err, "cluster slots start")
		}
		if r.End, err = redis.Int(fields[1], nil); err != nil {
			return nil, errors.Wrap(err, "cluster slots end")
		}
		for i, f := range fields[2:] {
			addr, err := parseSlotNode(f)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				r.Master = addr
			} else {
				r.Replicas = append(r.Replicas, addr)
			}
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

func parseSlotNode(v interface{}) (string, error) {
	node, err := redis.Values(v, nil)
	if err != nil || len(node) < 2 {
		return "", errors.Errorf("unexpected cluster slots node %v", v)
	}
	host, err := redis.String(node[0], nil)
	if err != nil {
		return "", errors.Wrap(err, "cluster slots host")
	}
	port, err := redis.Int(node[1], nil)
	if err != nil {
		return "", errors.Wrap(err, "cluster slots port")
	}
	return joinHostPort(host, port), nil
}

func splitHostPort(addr string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, errors.Wrapf(err, "address %s", addr)
	}
	port, err = strconv.Atoi(p)
	if err != nil {
		return "", 0, errors.Wrapf(err, "address %s", addr)
	}
	return h, port, nil
}
