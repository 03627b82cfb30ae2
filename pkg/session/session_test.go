package session

import (
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confsh/confsh/pkg/proto"
)

// countingConn counts reads and writes so tests can assert that a dead
// session performs no I/O at all.
type countingConn struct {
	net.Conn
	reads, writes atomic.Int64
}

func (c *countingConn) Read(p []byte) (int, error) {
	c.reads.Add(1)
	return c.Conn.Read(p)
}

func (c *countingConn) Write(p []byte) (int, error) {
	c.writes.Add(1)
	return c.Conn.Write(p)
}

func (c *countingConn) ops() int64 { return c.reads.Load() + c.writes.Load() }

// pipeSession returns a session over an in-memory pipe plus the daemon end.
func pipeSession(t *testing.T) (*Session, *countingConn, net.Conn) {
	t.Helper()

	client, server := net.Pipe()
	cc := &countingConn{Conn: client}
	sess := New(cc)
	t.Cleanup(func() {
		_ = sess.Close()
		_ = server.Close()
	})
	return sess, cc, server
}

// reply reads one request on the daemon end and answers with fn's response.
func reply(t *testing.T, server net.Conn, fn func(proto.Request) proto.Response) {
	t.Helper()

	go func() {
		var req proto.Request
		if err := proto.ReadMessage(server, &req); err != nil {
			return
		}
		_ = proto.WriteMessage(server, fn(req))
	}()
}

func accept(req proto.Request) proto.Response {
	return proto.Response{ID: req.ID, Status: proto.StatusAccepted}
}

func authorize(t *testing.T, sess *Session, server net.Conn) {
	t.Helper()

	reply(t, server, accept)
	require.NoError(t, sess.Authorize(Credentials{User: "admin"}))
	require.Equal(t, StateAuthorized, sess.State())
}

func TestConnectUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nobody-home.sock")

	sess, err := Connect(path)
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.True(t, IsKind(err, KindUnreachable))
}

func TestNewStartsNotAuthorized(t *testing.T) {
	sess, _, _ := pipeSession(t)

	assert.Equal(t, StateNotAuthorized, sess.State())
	assert.True(t, sess.Connected())
}

func TestAuthorizeSuccess(t *testing.T) {
	sess, _, server := pipeSession(t)
	authorize(t, sess, server)
}

func TestAuthorizeIdempotent(t *testing.T) {
	sess, cc, server := pipeSession(t)
	authorize(t, sess, server)

	before := cc.ops()
	require.NoError(t, sess.Authorize(Credentials{User: "admin"}))
	assert.Equal(t, before, cc.ops(), "re-authorizing must not touch the wire")
}

func TestAuthorizeRejectedLeavesState(t *testing.T) {
	sess, _, server := pipeSession(t)
	reply(t, server, func(req proto.Request) proto.Response {
		return proto.Response{ID: req.ID, Status: proto.StatusRejected, Reason: "bad user"}
	})

	err := sess.Authorize(Credentials{User: "nobody"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRejected))
	assert.Equal(t, StateNotAuthorized, sess.State())

	// The connection is still usable; a later authorize can succeed.
	authorize(t, sess, server)
}

func TestAuthorizeProtocolReplyLeavesState(t *testing.T) {
	sess, _, server := pipeSession(t)
	reply(t, server, func(req proto.Request) proto.Response {
		return proto.Response{ID: req.ID, Status: proto.Status("carrier-pigeon")}
	})

	err := sess.Authorize(Credentials{User: "admin"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindProtocol))
	assert.Equal(t, StateNotAuthorized, sess.State())
}

func TestAuthorizeIOFailureDisconnects(t *testing.T) {
	sess, _, server := pipeSession(t)
	require.NoError(t, server.Close())

	err := sess.Authorize(Credentials{User: "admin"})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindIO))
	assert.Equal(t, StateDisconnected, sess.State())
	assert.False(t, sess.Connected())
}

func TestExchangeBeforeAuthorizeFailsWithoutIO(t *testing.T) {
	sess, cc, _ := pipeSession(t)

	_, err := sess.Exchange(proto.NewRequest(proto.OpGet, []string{"a"}, ""))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDisconnected))
	assert.Zero(t, cc.ops(), "exchange before authorization must not touch the wire")
}

func TestExchangeSuccess(t *testing.T) {
	sess, _, server := pipeSession(t)
	authorize(t, sess, server)

	reply(t, server, func(req proto.Request) proto.Response {
		return proto.Response{ID: req.ID, Status: proto.StatusAccepted, Value: "router1"}
	})

	resp, err := sess.Exchange(proto.NewRequest(proto.OpGet, []string{"system", "hostname"}, ""))
	require.NoError(t, err)
	assert.Equal(t, proto.StatusAccepted, resp.Status)
	assert.Equal(t, "router1", resp.Value)
	assert.Equal(t, StateAuthorized, sess.State())
}

func TestExchangePeerCloseDisconnects(t *testing.T) {
	sess, _, server := pipeSession(t)
	authorize(t, sess, server)
	require.NoError(t, server.Close())

	_, err := sess.Exchange(proto.NewRequest(proto.OpCommit, nil, ""))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindIO))
	assert.Equal(t, StateDisconnected, sess.State())
}

func TestExchangeMismatchedIDDisconnects(t *testing.T) {
	sess, _, server := pipeSession(t)
	authorize(t, sess, server)

	reply(t, server, func(proto.Request) proto.Response {
		return proto.Response{ID: "some-other-request", Status: proto.StatusAccepted}
	})

	_, err := sess.Exchange(proto.NewRequest(proto.OpCommit, nil, ""))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformed))
	assert.Equal(t, StateDisconnected, sess.State())
}

func TestDisconnectedSessionPerformsNoIO(t *testing.T) {
	sess, cc, server := pipeSession(t)
	authorize(t, sess, server)
	require.NoError(t, server.Close())

	_, err := sess.Exchange(proto.NewRequest(proto.OpCommit, nil, ""))
	require.Error(t, err)
	require.Equal(t, StateDisconnected, sess.State())

	before := cc.ops()
	for i := 0; i < 3; i++ {
		_, err := sess.Exchange(proto.NewRequest(proto.OpGet, []string{"a"}, ""))
		require.Error(t, err)
		assert.True(t, IsKind(err, KindDisconnected))
	}
	require.Error(t, sess.Authorize(Credentials{User: "admin"}))
	assert.Equal(t, before, cc.ops(), "a disconnected session must touch zero bytes on the wire")
}

func TestCloseIdempotent(t *testing.T) {
	sess, _, _ := pipeSession(t)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, StateDisconnected, sess.State())
	assert.False(t, sess.Connected())
}
