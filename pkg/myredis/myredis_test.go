package myredis

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"embedvalkey/pkg/mockconn"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodeID = "07c37dfeb235213a872192d90877d0cd55635b91"

func newConn(replies ...string) (*Conn, *mockconn.MockConn) {
	mc := mockconn.CreateConn(replies...)
	return NewConn("127.0.0.1:6379", mc, time.Second), mc
}

func TestPing(t *testing.T) {
	c, mc := newConn("+PONG\r\n")
	require.NoError(t, c.Ping())
	assert.Equal(t, "*1\r\n$4\r\nPING\r\n", mc.Written())
}

func TestServerError(t *testing.T) {
	c, _ := newConn("-ERR unknown command\r\n")
	err := c.FlushAll()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestGetSet(t *testing.T) {
	c, mc := newConn("+OK\r\n", "$9\r\nsomevalue\r\n", "$-1\r\n")
	require.NoError(t, c.Set("somekey", "somevalue"))

	v, found, err := c.Get("somekey")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "somevalue", v)

	_, found, err = c.Get("nokey")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, strings.HasPrefix(mc.Written(), "*3\r\n$3\r\nSET\r\n$7\r\nsomekey\r\n$9\r\nsomevalue\r\n"))
}

func TestMSetMGet(t *testing.T) {
	c, _ := newConn("+OK\r\n", "*3\r\n$2\r\nv1\r\n$2\r\nv2\r\n$-1\r\n")
	require.NoError(t, c.MSet("k1", "v1", "k2", "v2"))
	vs, err := c.MGet("k1", "k2", "k3")
	require.NoError(t, err)
	assert.Equal(t, []Value{{"v1", true}, {"v2", true}, {"", false}}, vs)

	assert.Error(t, c.MSet("odd"))
}

func TestClusterCommands(t *testing.T) {
	c, mc := newConn(
		"+OK\r\n",
		"$40\r\n"+nodeID+"\r\n",
		"+OK\r\n",
		"+OK\r\n",
		"+OK\r\n",
	)
	require.NoError(t, c.ClusterMeet("127.0.0.1", 7000))
	id, err := c.ClusterMyID()
	require.NoError(t, err)
	assert.Equal(t, nodeID, id)
	require.NoError(t, c.ClusterAddSlots(0, 2))
	require.NoError(t, c.ClusterReplicate(nodeID))
	require.NoError(t, c.ClusterReset(true))

	w := mc.Written()
	assert.Contains(t, w, "$7\r\nCLUSTER\r\n$4\r\nMEET\r\n$9\r\n127.0.0.1\r\n$4\r\n7000\r\n")
	assert.Contains(t, w, "*5\r\n$7\r\nCLUSTER\r\n$8\r\nADDSLOTS\r\n$1\r\n0\r\n$1\r\n1\r\n$1\r\n2\r\n")
	assert.Contains(t, w, "$5\r\nRESET\r\n$4\r\nSOFT\r\n")

	assert.Error(t, c.ClusterAddSlots(5, 4))
}

func TestClusterAddSlotsErrorNamesRange(t *testing.T) {
	c, _ := newConn("-ERR Slot 0 is already busy\r\n")
	err := c.ClusterAddSlots(0, 8191)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLUSTER ADDSLOTS 0-8191")
	assert.Contains(t, err.Error(), "already busy")
	assert.NotContains(t, err.Error(), " 4096 ")
	assert.Less(t, len(err.Error()), 200)
}

func TestClusterInfo(t *testing.T) {
	info := "cluster_state:ok\r\ncluster_slots_assigned:16384\r\ncluster_known_nodes:6\r\n"
	c, _ := newConn("$" + strconv.Itoa(len(info)) + "\r\n" + info + "\r\n")
	state, err := c.ClusterState()
	require.NoError(t, err)
	assert.Equal(t, "ok", state)
}

func TestParseNodes(t *testing.T) {
	data := nodeID + " 127.0.0.1:30004@40004 myself,slave e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 0 1426238317239 4 connected\n" +
		"e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 127.0.0.1:30001@40001,host master - 0 0 1 connected 0-5460 5461 [5462->-abc]\n"
	nodes, err := ParseNodes(data)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.True(t, nodes[0].Self())
	assert.False(t, nodes[0].IsMaster())
	assert.Equal(t, "e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca", nodes[0].Master)
	assert.Equal(t, "127.0.0.1:30004", nodes[0].Addr)

	assert.True(t, nodes[1].IsMaster())
	assert.Equal(t, "127.0.0.1:30001", nodes[1].Addr)
	assert.Equal(t, [][2]int{{0, 5460}, {5461, 5461}}, nodes[1].Slots)

	_, err = ParseNodes("short line\n")
	assert.Equal(t, ErrBadNodesLine, errors.Cause(err))
}

const slotsReply = "*2\r\n" +
	"*3\r\n:0\r\n:8191\r\n*3\r\n$9\r\n127.0.0.1\r\n:7000\r\n$2\r\nid\r\n" +
	"*3\r\n:8192\r\n:16383\r\n*2\r\n$0\r\n\r\n:7001\r\n"

func TestClusterClientRouting(t *testing.T) {
	d := mockconn.NewDialer()
	d.Add("127.0.0.1:7000", slotsReply, "-MOVED 5061 127.0.0.1:7002\r\n")
	d.Add("127.0.0.1:7001", "$3\r\nbar\r\n")
	moved := d.Add("127.0.0.1:7002", "+OK\r\n")

	cc, err := NewClusterClient([]string{"127.0.0.1:7000"}, WithDialFunc(d.Dial))
	require.NoError(t, err)
	defer cc.Close()

	// foo hashes to slot 12182
	v, found, err := cc.Get("foo")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "bar", v)

	// bar hashes to slot 5061, answered with MOVED
	require.NoError(t, cc.Set("bar", "x"))
	assert.Contains(t, moved.Written(), "$3\r\nSET\r\n$3\r\nbar\r\n$1\r\nx\r\n")
	assert.Equal(t, []string{"127.0.0.1:7000", "127.0.0.1:7001", "127.0.0.1:7002"}, d.Dials())
	assert.Equal(t, "127.0.0.1:7002", cc.slots[5061])
}

func TestClusterClientAsk(t *testing.T) {
	d := mockconn.NewDialer()
	d.Add("127.0.0.1:7000", slotsReply, "-ASK 5061 127.0.0.1:7001\r\n")
	asked := d.Add("127.0.0.1:7001", "+OK\r\n", "$-1\r\n")

	cc, err := NewClusterClient([]string{"127.0.0.1:7000"}, WithDialFunc(d.Dial))
	require.NoError(t, err)
	_, found, err := cc.Get("bar")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, strings.HasPrefix(asked.Written(), "*1\r\n$6\r\nASKING\r\n"))
	// ASK does not update the slot table
	assert.Equal(t, "127.0.0.1:7000", cc.slots[5061])
}

func TestClusterClientNoSeedAnswers(t *testing.T) {
	_, err := NewClusterClient(nil)
	assert.Equal(t, ErrNoSeeds, err)

	cc, err := NewClusterClient([]string{"127.0.0.1:7000"}, WithDialFunc(mockconn.NewDialer().Dial))
	require.NoError(t, err)
	_, _, err = cc.Get("foo")
	assert.Error(t, err)
}

func TestParseRedirect(t *testing.T) {
	kind, addr, slot, ok := parseRedirect("MOVED 3999 127.0.0.1:6381")
	assert.True(t, ok)
	assert.Equal(t, "MOVED", kind)
	assert.Equal(t, "127.0.0.1:6381", addr)
	assert.Equal(t, 3999, slot)

	_, _, _, ok = parseRedirect("ERR something else")
	assert.False(t, ok)
	_, _, _, ok = parseRedirect("MOVED 99999 127.0.0.1:6381")
	assert.False(t, ok)
}

func TestMasterConn(t *testing.T) {
	d := mockconn.NewDialer()
	d.Add("127.0.0.1:26379", "*-1\r\n")
	d.Add("127.0.0.1:26380", "*2\r\n$9\r\n127.0.0.1\r\n$4\r\n6379\r\n")
	d.Add("127.0.0.1:6379", "+PONG\r\n")

	c, err := MasterConnWith([]string{"127.0.0.1:26379", "127.0.0.1:26380"}, "mymain", time.Second, d.Dial)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", c.Addr())
	require.NoError(t, c.Ping())

	_, err = MasterConnWith([]string{"127.0.0.1:1"}, "mymain", time.Second, d.Dial)
	assert.Error(t, err)
}
