package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/go-redis/redis"
	logger "github.com/sirupsen/logrus"
)

// Conn wraps a single logical go-redis client together with the invocation
// state that decides where commands go: straight to the server, into an open
// pipeline, or onto a MULTI queue. The wire protocol, pooling and the actual
// pipelining all live in the wrapped client; Conn only owns the dispatch.
//
// Conn is safe for use from multiple goroutines, but pipeline and MULTI
// state is per-Conn, so share one Conn across goroutines only in direct mode.
type Conn struct {
	mu sync.Mutex

	// cmd is the direct target. raw is the concrete client behind it and is
	// nil for queue-only connections handed out inside a WATCH callback.
	cmd redis.Cmdable
	raw *redis.Client

	pipe     redis.Pipeliner
	tx       redis.Pipeliner
	deferred []deferredResult

	suppressClose int
	closed        bool
}

func newConn(client *redis.Client) *Conn {
	return &Conn{cmd: client, raw: client}
}

// newQueuedConn builds a connection whose only target is an already-open
// queue, used inside WATCH transactions.
func newQueuedConn(pipe redis.Pipeliner) *Conn {
	return &Conn{cmd: pipe, tx: pipe}
}

func (c *Conn) invoke() *invoker {
	return &invoker{conn: c}
}

// submit routes one command. In deferred modes the Cmder is recorded with
// its converter and the caller gets zero values back immediately.
func (c *Conn) submit(fn connFunc, conv converter) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrInvalidState.New("connection is closed")
	}
	if target := c.queueTarget(); target != nil {
		cmd := fn(target)
		c.deferred = append(c.deferred, deferredResult{cmd: cmd, convert: conv})
		return nil, nil
	}
	return conv(fn(c.cmd))
}

// submitDirect refuses to queue; used for commands the deferred targets
// cannot express (blocking reads, generic Do).
func (c *Conn) submitDirect(fn connFunc, conv converter) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrInvalidState.New("connection is closed")
	}
	if c.queueTarget() != nil {
		return nil, ErrUnsupported.New("operation not supported in pipeline/transaction mode")
	}
	return conv(fn(c.cmd))
}

func (c *Conn) queueTarget() redis.Pipeliner {
	if c.tx != nil {
		return c.tx
	}
	if c.pipe != nil {
		return c.pipe
	}
	return nil
}

// IsPipelined reports whether an explicit pipeline is open.
func (c *Conn) IsPipelined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipe != nil
}

// IsQueueing reports whether a MULTI block is active, i.e. commands queue
// for atomic execution on Exec.
func (c *Conn) IsQueueing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx != nil
}

func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// OpenPipeline starts buffering commands. Opening an already-open pipeline
// is a no-op, matching the reentrant semantics of the template layer.
func (c *Conn) OpenPipeline() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrInvalidState.New("connection is closed")
	}
	if c.tx != nil {
		return ErrInvalidState.New("cannot open a pipeline while MULTI is active")
	}
	if c.pipe != nil {
		return nil
	}
	if c.raw == nil {
		return ErrUnsupported.New("connection cannot open a pipeline")
	}
	c.pipe = c.raw.Pipeline()
	return nil
}

// ClosePipeline flushes the pipeline and resolves every deferred result in
// submission order. A per-command server error occupies that command's slot
// in the result slice; a transport-level flush failure is returned as
// ErrPipeline alongside whatever results were recovered.
func (c *Conn) ClosePipeline() ([]interface{}, error) {
	c.mu.Lock()
	if c.pipe == nil {
		c.mu.Unlock()
		return nil, ErrInvalidState.New("no open pipeline")
	}
	pipe := c.pipe
	defs := c.deferred
	c.pipe = nil
	c.deferred = nil
	c.mu.Unlock()

	defer func() { _ = pipe.Close() }()
	if len(defs) == 0 {
		return []interface{}{}, nil
	}
	_, execErr := pipe.Exec()
	results := resolveDeferred(defs)
	if execErr != nil && execErr != redis.Nil {
		if isCommandError(execErr, defs) {
			// The failing command already carries its error in results.
			return results, nil
		}
		return results, ErrPipeline.Wrap(execErr, "pipeline flush failed")
	}
	return results, nil
}

// Multi opens a MULTI block. Commands issued afterwards queue on the
// transaction and resolve on Exec.
func (c *Conn) Multi() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrInvalidState.New("connection is closed")
	}
	if c.pipe != nil {
		return ErrInvalidState.New("cannot use MULTI while a pipeline is open")
	}
	if c.tx != nil {
		return ErrInvalidState.New("MULTI is already active")
	}
	if c.raw == nil {
		return ErrUnsupported.New("connection cannot start MULTI")
	}
	c.tx = c.raw.TxPipeline()
	return nil
}

// Exec commits the MULTI block and returns the converted queued results in
// submission order.
func (c *Conn) Exec() ([]interface{}, error) {
	c.mu.Lock()
	if c.tx == nil {
		c.mu.Unlock()
		return nil, ErrInvalidState.New("no MULTI active")
	}
	tx := c.tx
	defs := c.deferred
	c.tx = nil
	c.deferred = nil
	c.mu.Unlock()

	defer func() { _ = tx.Close() }()
	if len(defs) == 0 {
		return []interface{}{}, nil
	}
	_, execErr := tx.Exec()
	if execErr == redis.TxFailedErr {
		return nil, ErrTxAborted.Wrap(execErr, "watched key modified")
	}
	results := resolveDeferred(defs)
	if execErr != nil && execErr != redis.Nil {
		if isCommandError(execErr, defs) {
			return results, nil
		}
		return results, ErrPipeline.Wrap(execErr, "transaction flush failed")
	}
	return results, nil
}

// Discard aborts the MULTI block and drops all queued commands.
func (c *Conn) Discard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return ErrInvalidState.New("no MULTI active")
	}
	err := c.tx.Discard()
	_ = c.tx.Close()
	c.tx = nil
	c.deferred = nil
	return err
}

// Watch is intentionally unsupported at the connection level: the wrapped
// client pools connections, so imperative WATCH state cannot survive between
// calls. Use WatchTx, or OptionWatchKeys on the core transactor.
func (c *Conn) Watch(keys ...string) error {
	return ErrUnsupported.New("imperative WATCH is not supported; use WatchTx or OptionWatchKeys")
}

func (c *Conn) Unwatch() error {
	return ErrUnsupported.New("imperative WATCH is not supported; use WatchTx or OptionWatchKeys")
}

// WatchTx runs fn inside WATCH keys / MULTI / EXEC. The connection passed to
// fn queues every command; an error from fn discards the block. EXEC aborted
// by a concurrent write on a watched key returns ErrTxAborted.
func (c *Conn) WatchTx(fn func(queued *Conn) error, keys ...string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrInvalidState.New("connection is closed")
	}
	if c.queueTarget() != nil {
		c.mu.Unlock()
		return ErrInvalidState.New("WATCH transaction cannot nest inside pipeline/MULTI")
	}
	raw := c.raw
	c.mu.Unlock()
	if raw == nil {
		return ErrUnsupported.New("connection cannot start a WATCH transaction")
	}

	err := raw.Watch(func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(func(pipe redis.Pipeliner) error {
			return fn(newQueuedConn(pipe))
		})
		return err
	}, keys...)
	if err == redis.TxFailedErr {
		return ErrTxAborted.Wrap(err, "watched key modified")
	}
	return err
}

// SuppressClose makes Close a no-op until the matching AllowClose. Owners
// handing the connection to user callbacks use this so a stray Close cannot
// release a connection that is still bound.
func (c *Conn) SuppressClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.suppressClose++
}

func (c *Conn) AllowClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suppressClose > 0 {
		c.suppressClose--
	}
}

// Close releases the per-connection invocation state. The underlying client
// stays open: its lifecycle belongs to the Factory.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.suppressClose > 0 {
		return nil
	}
	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	if c.tx != nil {
		logger.Debug("discarding open MULTI block on connection close")
		_ = c.tx.Discard()
		err = c.tx.Close()
		c.tx = nil
	}
	if c.pipe != nil {
		logger.Debug("dropping open pipeline on connection close")
		err = c.pipe.Close()
		c.pipe = nil
	}
	c.deferred = nil
	return err
}

func resolveDeferred(defs []deferredResult) []interface{} {
	out := make([]interface{}, len(defs))
	for i, d := range defs {
		v, err := d.convert(d.cmd)
		if err != nil {
			out[i] = err
			continue
		}
		out[i] = v
	}
	return out
}

// isCommandError distinguishes a reply error raised by the server for one
// queued command from a transport failure. go-redis reports the first failed
// command's error from Exec, and on a broken connection it stamps that same
// error onto every queued command, so identity alone cannot tell the two
// apart: a flush error counts as per-command only when it is not a transport
// error by kind and some other command in the batch was spared.
func isCommandError(execErr error, defs []deferredResult) bool {
	if isTransportError(execErr) {
		return false
	}
	matched := false
	spared := false
	for _, d := range defs {
		if d.cmd.Err() == execErr {
			matched = true
		} else {
			spared = true
		}
	}
	return matched && (spared || len(defs) == 1)
}

// isTransportError reports a failure of the connection itself rather than a
// reply the server produced.
func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return err == io.EOF || err == io.ErrUnexpectedEOF ||
		err == context.Canceled || err == context.DeadlineExceeded
}
