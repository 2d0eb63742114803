package core

import (
	"context"

	"github.com/joomcode/errorx"
	logger "github.com/sirupsen/logrus"

	"github.com/ZJRui/redisbind"
	"github.com/ZJRui/redisbind/connection"
)

var coreErrors = errorx.NewNamespace("redisbind.core")

// rollback sentinel for the WATCH path, never returned to callers.
var errRollbackOnly = coreErrors.NewType("rollback_only")

// WatchKeys guards the transaction with WATCH on the given keys. EXEC
// aborted by a concurrent write surfaces as connection.ErrTxAborted.
type WatchKeys []string

func (o WatchKeys) Apply(c *redisbind.Config) {
	redisbind.OptionVendor([]string(o)).Apply(c)
}

func OptionWatchKeys(keys ...string) WatchKeys {
	return WatchKeys(keys)
}

func watchKeysOf(c redisbind.Config) []string {
	keys, _ := c.VendorOption.([]string)
	return keys
}

// Transactor runs functions inside a Redis MULTI/EXEC block bound to the
// context. Writes issued through the template inside the function queue on
// the transaction; reads are answered by a separate direct connection.
type Transactor struct {
	factory connection.Factory
}

func NewTransactor(factory connection.Factory) *Transactor {
	return &Transactor{factory: factory}
}

var _ redisbind.Transactor = (*Transactor)(nil)

func (t *Transactor) Required(ctx context.Context, fn redisbind.DoInTransaction, options ...redisbind.Option) error {
	if TransactionActive(ctx, t.factory) {
		return fn(ctx)
	}
	return t.RequiresNew(ctx, fn, options...)
}

func (t *Transactor) RequiresNew(ctx context.Context, fn redisbind.DoInTransaction, options ...redisbind.Option) error {
	config := redisbind.NewDefaultConfig()
	for _, opt := range options {
		opt.Apply(&config)
	}

	if keys := watchKeysOf(config); len(keys) > 0 {
		return t.watchTx(ctx, fn, config, keys)
	}

	// Install a fresh holder even when a binding exists: shadowing the
	// context value suspends the outer transaction for the span of fn.
	h := &holder{}
	txCtx := context.WithValue(ctx, factoryKey{factory: t.factory}, h)
	conn := h.fetch(txCtx, t.factory)
	h.setTxActive(true)

	if !config.ReadOnly {
		if err := conn.Multi(); err != nil {
			h.setTxActive(false)
			ReleaseConnection(txCtx, conn, t.factory)
			return err
		}
	}

	err := fn(txCtx)

	// Transaction completion: EXEC on success, DISCARD on error or when the
	// transaction was marked rollback-only. Read-only scopes never opened
	// MULTI, so there is nothing to complete.
	var completionErr error
	if !config.ReadOnly {
		if err != nil || config.RollbackOnly {
			if derr := conn.Discard(); derr != nil {
				logger.WithError(derr).Debug("could not discard transaction")
			}
		} else {
			_, completionErr = conn.Exec()
		}
	}
	h.setTxActive(false)
	ReleaseConnection(txCtx, conn, t.factory)

	if err != nil {
		return err
	}
	return completionErr
}

// watchTx runs the function inside WATCH keys / MULTI / EXEC on a dedicated
// connection. The queued connection is bound into the context so template
// writes inside fn land on the transaction.
func (t *Transactor) watchTx(ctx context.Context, fn redisbind.DoInTransaction, config redisbind.Config, keys []string) error {
	conn := t.factory.GetConnection(ctx)
	defer closeConn(conn)

	err := conn.WatchTx(func(queued *connection.Conn) error {
		h := &holder{conn: queued, refs: 1, txActive: true}
		txCtx := context.WithValue(ctx, factoryKey{factory: t.factory}, h)
		if ferr := fn(txCtx); ferr != nil {
			return ferr
		}
		if config.RollbackOnly {
			return errRollbackOnly.NewWithNoMessage()
		}
		return nil
	}, keys...)
	if err != nil && errorx.IsOfType(err, errRollbackOnly) {
		return nil
	}
	return err
}
