// Package core binds connections to the calling context and layers
// transaction management and a template API on top of them. It is the Go
// rendition of thread-bound connection holders: the holder lives in the
// context, reference counting makes retrieval reentrant, and only the
// outermost release actually closes the connection.
package core

import (
	"context"
	"sync"

	logger "github.com/sirupsen/logrus"

	"github.com/ZJRui/redisbind/connection"
)

// factoryKey scopes one holder per factory within a context, so independent
// factories can be bound side by side.
type factoryKey struct {
	factory connection.Factory
}

// holder is the mutable binding installed in the context. The context itself
// is immutable; all state changes happen inside the holder.
type holder struct {
	mu       sync.Mutex
	conn     *connection.Conn
	refs     int
	txActive bool
}

// bound reports whether the holder represents an open binding scope. A
// holder whose last reference was released behaves as if absent until the
// scope is re-entered.
func (h *holder) bound() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil || h.refs > 0 || h.txActive
}

// fetch attaches one more caller to the holder, lazily obtaining a
// connection when the previous one was released.
func (h *holder) fetch(ctx context.Context, factory connection.Factory) *connection.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs++
	if h.conn == nil {
		logger.Debug("fetching resumed redis connection from factory")
		h.conn = factory.GetConnection(ctx)
	}
	return h.conn
}

func (h *holder) setTxActive(active bool) {
	h.mu.Lock()
	h.txActive = active
	h.mu.Unlock()
}

func (h *holder) transactionActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.txActive
}

func holderFrom(ctx context.Context, factory connection.Factory) *holder {
	h, _ := ctx.Value(factoryKey{factory: factory}).(*holder)
	return h
}

// Bind obtains a connection and binds it to the returned context so that
// every GetConnection within that context reuses it. Binding is reentrant:
// when a holder is already installed only its reference count grows and the
// original context is returned.
func Bind(ctx context.Context, factory connection.Factory) (context.Context, *connection.Conn) {
	if h := holderFrom(ctx, factory); h != nil {
		return ctx, h.fetch(ctx, factory)
	}
	h := &holder{}
	ctx = context.WithValue(ctx, factoryKey{factory: factory}, h)
	logger.Debug("binding redis connection to context")
	return ctx, h.fetch(ctx, factory)
}

// GetConnection returns the context-bound connection when one is bound,
// bumping its reference count, and a fresh unbound connection otherwise.
// Pair every call with ReleaseConnection.
func GetConnection(ctx context.Context, factory connection.Factory) *connection.Conn {
	if h := holderFrom(ctx, factory); h != nil && h.bound() {
		return h.fetch(ctx, factory)
	}
	logger.Debug("fetching redis connection from factory")
	return factory.GetConnection(ctx)
}

// ReleaseConnection returns a connection obtained through GetConnection or
// Bind. Bound connections close only on the outermost release; a connection
// participating in an active transaction is left open for the transaction
// completion to close.
func ReleaseConnection(ctx context.Context, conn *connection.Conn, factory connection.Factory) {
	if conn == nil {
		return
	}
	h := holderFrom(ctx, factory)
	if h == nil {
		closeConn(conn)
		return
	}

	h.mu.Lock()
	if h.conn != conn {
		h.mu.Unlock()
		closeConn(conn)
		return
	}
	if h.txActive {
		if h.refs > 0 {
			h.refs--
		}
		h.mu.Unlock()
		logger.Debug("redis connection will be closed when transaction finishes")
		return
	}
	h.refs--
	if h.refs > 0 {
		h.mu.Unlock()
		return
	}
	h.refs = 0
	h.conn = nil
	h.mu.Unlock()
	logger.Debug("unbinding redis connection")
	closeConn(conn)
}

// UnbindConnection force-releases the outermost binding for the factory,
// closing the held connection unless a transaction still owns it.
func UnbindConnection(ctx context.Context, factory connection.Factory) {
	h := holderFrom(ctx, factory)
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.txActive {
		h.mu.Unlock()
		logger.Debug("redis connection will be closed when outer transaction finishes")
		return
	}
	held := h.conn
	h.refs = 0
	h.conn = nil
	h.mu.Unlock()
	closeConn(held)
}

// IsConnectionTransactional reports whether conn is the connection bound to
// an active transaction in this context.
func IsConnectionTransactional(ctx context.Context, conn *connection.Conn, factory connection.Factory) bool {
	h := holderFrom(ctx, factory)
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.txActive && h.conn == conn
}

// TransactionActive reports whether the context carries an active
// transaction for the factory.
func TransactionActive(ctx context.Context, factory connection.Factory) bool {
	h := holderFrom(ctx, factory)
	return h != nil && h.transactionActive()
}

func closeConn(conn *connection.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		logger.WithError(err).Debug("could not close redis connection")
	}
}
