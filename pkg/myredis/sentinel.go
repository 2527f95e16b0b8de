package myredis

import (
	"net"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
)

// ErrMasterUnknown is returned when no sentinel knows the master.
var ErrMasterUnknown = errors.New("no sentinel knows the master")

// MasterAddr asks the sentinel behind c for the address of the named master.
func (c *Conn) MasterAddr(name string) (string, error) {
	cmd := NewCmd("SENTINEL").Arg("get-master-addr-by-name", name)
	if err := c.Exec(cmd); err != nil {
		return "", err
	}
	parts, err := redis.Strings(cmd.Reply, nil)
	if err == redis.ErrNil || (err == nil && len(parts) != 2) {
		return "", errors.Wrapf(ErrMasterUnknown, "master %s at %s", name, c.addr)
	} else if err != nil {
		return "", errors.Wrapf(err, "%s: %s", c.addr, cmd)
	}
	return net.JoinHostPort(parts[0], parts[1]), nil
}

// MasterConn discovers the named master through the first sentinel that
// knows it and connects to it.
func MasterConn(sentinels []string, name string, timeout time.Duration) (*Conn, error) {
	return MasterConnWith(sentinels, name, timeout, nil)
}

// MasterConnWith is MasterConn with a custom dial function.
func MasterConnWith(sentinels []string, name string, timeout time.Duration, dial DialFunc) (*Conn, error) {
	err := errors.Wrapf(ErrMasterUnknown, "master %s", name)
	for _, addr := range sentinels {
		s, derr := DialWith(addr, timeout, dial)
		if derr != nil {
			err = derr
			continue
		}
		master, merr := s.MasterAddr(name)
		_ = s.Close()
		if merr != nil {
			err = merr
			continue
		}
		return DialWith(master, timeout, dial)
	}
	return nil, err
}
