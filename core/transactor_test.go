package core

import (
	"context"
	"errors"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZJRui/redisbind"
	"github.com/ZJRui/redisbind/connection"
)

func TestTransactorCommit(t *testing.T) {
	mr, factory := newTestFactory(t)
	transactor := NewTransactor(factory)

	err := transactor.Required(context.Background(), func(ctx context.Context) error {
		conn := GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, conn, factory)
		require.True(t, conn.IsQueueing())
		_, err := conn.Set("k", []byte("v"), 0)
		return err
	})
	require.NoError(t, err)

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestTransactorRollbackOnError(t *testing.T) {
	mr, factory := newTestFactory(t)
	transactor := NewTransactor(factory)

	boom := errors.New("boom")
	err := transactor.Required(context.Background(), func(ctx context.Context) error {
		conn := GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, conn, factory)
		_, serr := conn.Set("k", []byte("v"), 0)
		require.NoError(t, serr)
		return boom
	})
	assert.Equal(t, boom, err)
	assert.False(t, mr.Exists("k"), "discarded write must not be visible")
}

func TestTransactorRollbackOnly(t *testing.T) {
	mr, factory := newTestFactory(t)
	transactor := NewTransactor(factory)

	err := transactor.Required(context.Background(), func(ctx context.Context) error {
		conn := GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, conn, factory)
		_, serr := conn.Set("k", []byte("v"), 0)
		return serr
	}, redisbind.OptionRollbackOnly())
	require.NoError(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestTransactorReadOnly(t *testing.T) {
	mr, factory := newTestFactory(t)
	require.NoError(t, mr.Set("k", "v"))
	transactor := NewTransactor(factory)

	err := transactor.Required(context.Background(), func(ctx context.Context) error {
		conn := GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, conn, factory)
		// no MULTI was opened, reads answer immediately
		require.False(t, conn.IsQueueing())
		v, err := conn.Get("k")
		if err != nil {
			return err
		}
		assert.Equal(t, []byte("v"), v)
		return nil
	}, redisbind.OptionReadOnly())
	require.NoError(t, err)
}

func TestRequiredJoinsActiveTransaction(t *testing.T) {
	mr, factory := newTestFactory(t)
	transactor := NewTransactor(factory)

	var outerConn *connection.Conn
	err := transactor.Required(context.Background(), func(ctx context.Context) error {
		outerConn = GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, outerConn, factory)

		return transactor.Required(ctx, func(ctx context.Context) error {
			inner := GetConnection(ctx, factory)
			defer ReleaseConnection(ctx, inner, factory)
			assert.Same(t, outerConn, inner, "nested Required joins the same transaction")
			_, err := inner.Set("nested", []byte("1"), 0)
			return err
		})
	})
	require.NoError(t, err)
	assert.True(t, mr.Exists("nested"))
}

func TestRequiresNewInsideTransaction(t *testing.T) {
	mr, factory := newTestFactory(t)
	transactor := NewTransactor(factory)

	err := transactor.Required(context.Background(), func(ctx context.Context) error {
		// inner scope commits independently even though the outer rolls back
		ierr := transactor.RequiresNew(ctx, func(ctx context.Context) error {
			conn := GetConnection(ctx, factory)
			defer ReleaseConnection(ctx, conn, factory)
			_, err := conn.Set("inner", []byte("1"), 0)
			return err
		})
		require.NoError(t, ierr)

		conn := GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, conn, factory)
		_, err := conn.Set("outer", []byte("1"), 0)
		require.NoError(t, err)
		return errors.New("outer fails")
	})
	require.Error(t, err)
	assert.True(t, mr.Exists("inner"))
	assert.False(t, mr.Exists("outer"))
}

func TestWatchKeysCommit(t *testing.T) {
	mr, factory := newTestFactory(t)
	transactor := NewTransactor(factory)

	err := transactor.RequiresNew(context.Background(), func(ctx context.Context) error {
		conn := GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, conn, factory)
		require.True(t, conn.IsQueueing())
		_, err := conn.Set("balance", []byte("100"), 0)
		return err
	}, OptionWatchKeys("balance"))
	require.NoError(t, err)

	got, err := mr.Get("balance")
	require.NoError(t, err)
	assert.Equal(t, "100", got)
}

func TestWatchKeysAbort(t *testing.T) {
	mr, factory := newTestFactory(t)
	require.NoError(t, mr.Set("balance", "50"))
	transactor := NewTransactor(factory)

	err := transactor.RequiresNew(context.Background(), func(ctx context.Context) error {
		// a concurrent writer invalidates the watched key before EXEC
		require.NoError(t, mr.Set("balance", "60"))

		conn := GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, conn, factory)
		_, err := conn.Set("balance", []byte("100"), 0)
		return err
	}, OptionWatchKeys("balance"))
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, connection.ErrTxAborted))

	got, err := mr.Get("balance")
	require.NoError(t, err)
	assert.Equal(t, "60", got, "aborted transaction must not overwrite the concurrent write")
}

func TestWatchKeysRollbackOnly(t *testing.T) {
	mr, factory := newTestFactory(t)
	transactor := NewTransactor(factory)

	err := transactor.RequiresNew(context.Background(), func(ctx context.Context) error {
		conn := GetConnection(ctx, factory)
		defer ReleaseConnection(ctx, conn, factory)
		_, err := conn.Set("k", []byte("v"), 0)
		return err
	}, OptionWatchKeys("k"), redisbind.OptionRollbackOnly())
	require.NoError(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestCompositeTransactor(t *testing.T) {
	mr1, factory1 := newTestFactory(t)
	mr2, factory2 := newTestFactory(t)
	composite := redisbind.NewCompositeTransactor(NewTransactor(factory1), NewTransactor(factory2))

	err := composite.Required(context.Background(), func(ctx context.Context) error {
		c1 := GetConnection(ctx, factory1)
		defer ReleaseConnection(ctx, c1, factory1)
		c2 := GetConnection(ctx, factory2)
		defer ReleaseConnection(ctx, c2, factory2)

		if _, err := c1.Set("a", []byte("1"), 0); err != nil {
			return err
		}
		_, err := c2.Set("b", []byte("2"), 0)
		return err
	})
	require.NoError(t, err)
	assert.True(t, mr1.Exists("a"))
	assert.True(t, mr2.Exists("b"))
}
