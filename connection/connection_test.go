package connection

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis"
	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(t *testing.T) (*miniredis.Miniredis, *Conn) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, newConn(client)
}

func TestDirectCommands(t *testing.T) {
	_, conn := newTestConn(t)

	ok, err := conn.Set("k", []byte("v"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	v, err := conn.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	// missing key is a nil result, not an error
	v, err = conn.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPipelineDefersResults(t *testing.T) {
	_, conn := newTestConn(t)

	require.NoError(t, conn.OpenPipeline())
	assert.True(t, conn.IsPipelined())

	n, err := conn.RPush("list", []byte("a"), []byte("b"))
	require.NoError(t, err)
	assert.Zero(t, n, "queued command must not return a value")

	length, err := conn.LLen("list")
	require.NoError(t, err)
	assert.Zero(t, length)

	v, err := conn.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, v)

	results, err := conn.ClosePipeline()
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(2), results[0])
	assert.Equal(t, int64(2), results[1])
	assert.Nil(t, results[2])
	assert.False(t, conn.IsPipelined())
}

func TestPipelineCommandError(t *testing.T) {
	_, conn := newTestConn(t)

	_, err := conn.Set("str", []byte("v"), 0)
	require.NoError(t, err)

	require.NoError(t, conn.OpenPipeline())
	_, err = conn.LLen("str") // WRONGTYPE
	require.NoError(t, err)
	_, err = conn.Incr("n")
	require.NoError(t, err)

	results, err := conn.ClosePipeline()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Error(t, results[0].(error))
	assert.Equal(t, int64(1), results[1])
}

func TestPipelineTransportFailure(t *testing.T) {
	mr, conn := newTestConn(t)

	require.NoError(t, conn.OpenPipeline())
	_, err := conn.Incr("n")
	require.NoError(t, err)
	_, err = conn.Incr("n")
	require.NoError(t, err)

	// the server goes away before the flush
	mr.Close()

	results, err := conn.ClosePipeline()
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ErrPipeline), "a broken connection must not look like a reply error")
	assert.Len(t, results, 2)
}

func TestExecTransportFailure(t *testing.T) {
	mr, conn := newTestConn(t)

	require.NoError(t, conn.Multi())
	_, err := conn.Incr("n")
	require.NoError(t, err)
	_, err = conn.Set("k", []byte("v"), 0)
	require.NoError(t, err)

	mr.Close()

	_, err = conn.Exec()
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ErrPipeline))
}

func TestPipelineReentrantOpen(t *testing.T) {
	_, conn := newTestConn(t)

	require.NoError(t, conn.OpenPipeline())
	require.NoError(t, conn.OpenPipeline())

	_, err := conn.Incr("n")
	require.NoError(t, err)

	results, err := conn.ClosePipeline()
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestEmptyPipeline(t *testing.T) {
	_, conn := newTestConn(t)

	require.NoError(t, conn.OpenPipeline())
	results, err := conn.ClosePipeline()
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClosePipelineWithoutOpen(t *testing.T) {
	_, conn := newTestConn(t)

	_, err := conn.ClosePipeline()
	assert.True(t, errorx.IsOfType(err, ErrInvalidState))
}

func TestMultiExec(t *testing.T) {
	_, conn := newTestConn(t)

	require.NoError(t, conn.Multi())
	assert.True(t, conn.IsQueueing())

	_, err := conn.Set("a", []byte("1"), 0)
	require.NoError(t, err)
	n, err := conn.Incr("counter")
	require.NoError(t, err)
	assert.Zero(t, n)

	results, err := conn.Exec()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, true, results[0])
	assert.Equal(t, int64(1), results[1])
	assert.False(t, conn.IsQueueing())

	v, err := conn.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestMultiDiscard(t *testing.T) {
	_, conn := newTestConn(t)

	require.NoError(t, conn.Multi())
	_, err := conn.Set("a", []byte("1"), 0)
	require.NoError(t, err)
	require.NoError(t, conn.Discard())

	v, err := conn.Get("a")
	require.NoError(t, err)
	assert.Nil(t, v, "discarded write must not be visible")
}

func TestInvalidStateTransitions(t *testing.T) {
	_, conn := newTestConn(t)

	// EXEC and DISCARD need MULTI
	_, err := conn.Exec()
	assert.True(t, errorx.IsOfType(err, ErrInvalidState))
	assert.True(t, errorx.IsOfType(conn.Discard(), ErrInvalidState))

	// MULTI does not nest
	require.NoError(t, conn.Multi())
	assert.True(t, errorx.IsOfType(conn.Multi(), ErrInvalidState))

	// no pipeline inside MULTI
	assert.True(t, errorx.IsOfType(conn.OpenPipeline(), ErrInvalidState))
	require.NoError(t, conn.Discard())

	// no MULTI inside pipeline
	require.NoError(t, conn.OpenPipeline())
	assert.True(t, errorx.IsOfType(conn.Multi(), ErrInvalidState))
}

func TestImperativeWatchRejected(t *testing.T) {
	_, conn := newTestConn(t)

	assert.True(t, errorx.IsOfType(conn.Watch("k"), ErrUnsupported))
	assert.True(t, errorx.IsOfType(conn.Unwatch(), ErrUnsupported))
}

func TestWatchTxCommits(t *testing.T) {
	mr, conn := newTestConn(t)
	mr.Lpush("queue", "job")

	err := conn.WatchTx(func(q *Conn) error {
		_, err := q.RPush("done", []byte("job"))
		return err
	}, "queue")
	require.NoError(t, err)

	v, err := mr.Lpop("done")
	require.NoError(t, err)
	assert.Equal(t, "job", v)
}

func TestWatchTxAbortsOnConcurrentWrite(t *testing.T) {
	mr, conn := newTestConn(t)
	require.NoError(t, mr.Set("guard", "old"))

	err := conn.WatchTx(func(q *Conn) error {
		// concurrent writer touches the watched key before EXEC
		require.NoError(t, mr.Set("guard", "new"))
		_, err := q.Set("result", []byte("x"), 0)
		return err
	}, "guard")
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, ErrTxAborted))
	assert.False(t, mr.Exists("result"))
}

func TestWatchTxPropagatesFnError(t *testing.T) {
	_, conn := newTestConn(t)

	sentinel := errorx.IllegalState.New("boom")
	err := conn.WatchTx(func(q *Conn) error {
		_, perr := q.Set("k", []byte("v"), 0)
		require.NoError(t, perr)
		return sentinel
	}, "k")
	assert.Equal(t, sentinel, err)

	v, err := conn.Get("k")
	require.NoError(t, err)
	assert.Nil(t, v, "failed WATCH transaction must not apply writes")
}

func TestQueuedConnCannotEscalate(t *testing.T) {
	_, conn := newTestConn(t)

	err := conn.WatchTx(func(q *Conn) error {
		assert.True(t, q.IsQueueing())
		assert.True(t, errorx.IsOfType(q.OpenPipeline(), ErrInvalidState))
		assert.True(t, errorx.IsOfType(q.Multi(), ErrInvalidState))
		return nil
	}, "k")
	require.NoError(t, err)
}

func TestCloseSuppression(t *testing.T) {
	_, conn := newTestConn(t)

	conn.SuppressClose()
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsClosed())

	conn.AllowClose()
	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())

	_, err := conn.Get("k")
	assert.True(t, errorx.IsOfType(err, ErrInvalidState))
}

func TestCloseDropsOpenPipeline(t *testing.T) {
	_, conn := newTestConn(t)

	require.NoError(t, conn.OpenPipeline())
	_, err := conn.Incr("n")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.True(t, conn.IsClosed())
}

func TestTTLAndExpire(t *testing.T) {
	_, conn := newTestConn(t)

	_, err := conn.Set("k", []byte("v"), 0)
	require.NoError(t, err)

	ok, err := conn.Expire("k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := conn.TTL("k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
}
