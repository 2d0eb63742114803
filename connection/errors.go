package connection

import (
	"github.com/go-redis/redis"
	"github.com/joomcode/errorx"
)

// Errors is the namespace for everything this package raises itself.
// Replies coming back from the server are passed through untouched so
// callers can still compare against redis.Nil and friends.
var Errors = errorx.NewNamespace("redisbind.connection")

var (
	// ErrInvalidState covers misuse of the pipeline/transaction state
	// machine: MULTI inside an open pipeline, EXEC without MULTI, commands
	// on a closed connection.
	ErrInvalidState = Errors.NewType("invalid_state")

	// ErrUnsupported marks operations the wrapped client cannot express in
	// the current mode, e.g. blocking commands while queueing.
	ErrUnsupported = Errors.NewType("unsupported")

	// ErrPipeline wraps a failed pipeline or transaction flush.
	ErrPipeline = Errors.NewType("pipeline")

	// ErrTxAborted signals that EXEC was discarded because a watched key
	// changed before the transaction committed.
	ErrTxAborted = Errors.NewType("tx_aborted")

	// ErrCommand wraps a server-side reply error from a single command.
	ErrCommand = Errors.NewType("command")
)

// TranslateError lifts a raw client error into the package namespace.
// redis.Nil is not an error at this layer and maps to nil.
func TranslateError(err error) error {
	if err == nil || err == redis.Nil {
		return nil
	}
	if errorx.Cast(err) != nil {
		return err
	}
	if err == redis.TxFailedErr {
		return ErrTxAborted.Wrap(err, "watched key modified")
	}
	return ErrCommand.Wrap(err, "redis command failed")
}
