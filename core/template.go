package core

import (
	"context"
	"reflect"
	"time"

	"golang.org/x/xerrors"

	"github.com/ZJRui/redisbind/connection"
	"github.com/ZJRui/redisbind/serializer"
)

// ConnCallback is a unit of work against a connection. The handle passed in
// is close-suppressed: the template owns release, a stray Close is a no-op.
type ConnCallback func(conn *connection.Conn) (interface{}, error)

// Template is the high-level entry point: it resolves the right connection
// for the calling context (bound, transactional or fresh), applies value
// serialization and releases the connection afterwards.
type Template struct {
	factory         connection.Factory
	valueSerializer serializer.Serializer
}

// NewTemplate builds a template with JSON value serialization. Keys are
// plain strings and are not run through a serializer.
func NewTemplate(factory connection.Factory) *Template {
	return &Template{
		factory:         factory,
		valueSerializer: serializer.NewJSONSerializer(),
	}
}

func (t *Template) SetValueSerializer(s serializer.Serializer) {
	t.valueSerializer = s
}

// Execute runs cb with a context-resolved connection.
func (t *Template) Execute(ctx context.Context, cb ConnCallback) (interface{}, error) {
	conn := GetConnection(ctx, t.factory)
	conn.SuppressClose()
	defer func() {
		conn.AllowClose()
		ReleaseConnection(ctx, conn, t.factory)
	}()
	return cb(conn)
}

// executeRead is Execute for read-only commands. While the bound connection
// is queueing (MULTI or pipeline), reads would never see a reply, so they
// are answered by a short-lived direct connection instead.
func (t *Template) executeRead(ctx context.Context, cb ConnCallback) (interface{}, error) {
	conn := GetConnection(ctx, t.factory)
	if conn.IsQueueing() || conn.IsPipelined() {
		ReleaseConnection(ctx, conn, t.factory)
		reader := t.factory.GetConnection(ctx)
		defer closeConn(reader)
		return cb(reader)
	}
	conn.SuppressClose()
	defer func() {
		conn.AllowClose()
		ReleaseConnection(ctx, conn, t.factory)
	}()
	return cb(conn)
}

// ExecutePipelined opens a pipeline around cb and returns the converted
// results of every command issued inside, in submission order. Pipelining
// does not nest.
func (t *Template) ExecutePipelined(ctx context.Context, cb func(conn *connection.Conn) error) ([]interface{}, error) {
	conn := GetConnection(ctx, t.factory)
	conn.SuppressClose()
	defer func() {
		conn.AllowClose()
		ReleaseConnection(ctx, conn, t.factory)
	}()

	if conn.IsPipelined() || conn.IsQueueing() {
		return nil, connection.ErrInvalidState.New("cannot nest a pipeline in the current connection mode")
	}
	if err := conn.OpenPipeline(); err != nil {
		return nil, err
	}
	if err := cb(conn); err != nil {
		_, _ = conn.ClosePipeline()
		return nil, err
	}
	return conn.ClosePipeline()
}

// Session binds one connection for the span of fn so every template call
// inside shares it. A session opened inside a live binding joins it and
// releases only its own reference, so nesting never tears down the outer
// scope; only the session that created the binding unbinds.
func (t *Template) Session(ctx context.Context, fn func(ctx context.Context) error) error {
	if h := holderFrom(ctx, t.factory); h != nil && h.bound() {
		conn := h.fetch(ctx, t.factory)
		defer ReleaseConnection(ctx, conn, t.factory)
		return fn(ctx)
	}
	sctx, _ := Bind(ctx, t.factory)
	defer UnbindConnection(sctx, t.factory)
	return fn(sctx)
}

func (t *Template) serialize(v interface{}) ([]byte, error) {
	return t.valueSerializer.Serialize(v)
}

func (t *Template) deserialize(data []byte, dest interface{}) error {
	return t.valueSerializer.Deserialize(data, dest)
}

// Value returns the string-value operations view.
func (t *Template) Value() *ValueOps {
	return &ValueOps{t: t}
}

// List returns the list operations view.
func (t *Template) List() *ListOps {
	return &ListOps{t: t}
}

// BoundList returns list operations fixed to one key.
func (t *Template) BoundList(key string) *BoundListOps {
	return &BoundListOps{ops: ListOps{t: t}, key: key}
}

// ValueOps works with plain string keys holding serialized values.
type ValueOps struct {
	t *Template
}

func (o *ValueOps) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := o.t.serialize(value)
	if err != nil {
		return err
	}
	_, err = o.t.Execute(ctx, func(conn *connection.Conn) (interface{}, error) {
		_, err := conn.Set(key, raw, expiration)
		return nil, err
	})
	return err
}

// Get deserializes the stored value into dest and reports whether the key
// existed.
func (o *ValueOps) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	v, err := o.t.executeRead(ctx, func(conn *connection.Conn) (interface{}, error) {
		return conn.Get(key)
	})
	if err != nil || v == nil {
		return false, err
	}
	raw := v.([]byte)
	if raw == nil {
		return false, nil
	}
	return true, o.t.deserialize(raw, dest)
}

func (o *ValueOps) Delete(ctx context.Context, keys ...string) (int64, error) {
	v, err := o.t.Execute(ctx, func(conn *connection.Conn) (interface{}, error) {
		n, err := conn.Del(keys...)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ListOps serializes elements through the template's value serializer.
type ListOps struct {
	t *Template
}

func (o *ListOps) RPush(ctx context.Context, key string, values ...interface{}) (int64, error) {
	return o.push(ctx, key, values, func(conn *connection.Conn, raws [][]byte) (int64, error) {
		return conn.RPush(key, raws...)
	})
}

func (o *ListOps) LPush(ctx context.Context, key string, values ...interface{}) (int64, error) {
	return o.push(ctx, key, values, func(conn *connection.Conn, raws [][]byte) (int64, error) {
		return conn.LPush(key, raws...)
	})
}

func (o *ListOps) push(ctx context.Context, key string, values []interface{}, do func(*connection.Conn, [][]byte) (int64, error)) (int64, error) {
	raws := make([][]byte, len(values))
	for i, v := range values {
		raw, err := o.t.serialize(v)
		if err != nil {
			return 0, err
		}
		raws[i] = raw
	}
	v, err := o.t.Execute(ctx, func(conn *connection.Conn) (interface{}, error) {
		n, err := do(conn, raws)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// LPop deserializes the head element into dest and reports whether one was
// present.
func (o *ListOps) LPop(ctx context.Context, key string, dest interface{}) (bool, error) {
	return o.pop(ctx, dest, func(conn *connection.Conn) ([]byte, error) {
		return conn.LPop(key)
	})
}

func (o *ListOps) RPop(ctx context.Context, key string, dest interface{}) (bool, error) {
	return o.pop(ctx, dest, func(conn *connection.Conn) ([]byte, error) {
		return conn.RPop(key)
	})
}

func (o *ListOps) pop(ctx context.Context, dest interface{}, do func(*connection.Conn) ([]byte, error)) (bool, error) {
	v, err := o.t.Execute(ctx, func(conn *connection.Conn) (interface{}, error) {
		return do(conn)
	})
	if err != nil || v == nil {
		return false, err
	}
	raw := v.([]byte)
	if raw == nil {
		return false, nil
	}
	return true, o.t.deserialize(raw, dest)
}

func (o *ListOps) Len(ctx context.Context, key string) (int64, error) {
	v, err := o.t.executeRead(ctx, func(conn *connection.Conn) (interface{}, error) {
		n, err := conn.LLen(key)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Range deserializes the elements between start and stop into dest, which
// must be a pointer to a slice. Existing elements are replaced.
func (o *ListOps) Range(ctx context.Context, key string, start, stop int64, dest interface{}) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return xerrors.Errorf("list range: destination must be a pointer to a slice, got %T", dest)
	}
	v, err := o.t.executeRead(ctx, func(conn *connection.Conn) (interface{}, error) {
		return conn.LRange(key, start, stop)
	})
	if err != nil {
		return err
	}
	raws, _ := v.([][]byte)
	sl := rv.Elem()
	sl.SetLen(0)
	for _, raw := range raws {
		ev := reflect.New(sl.Type().Elem())
		if err := o.t.deserialize(raw, ev.Interface()); err != nil {
			return err
		}
		sl = reflect.Append(sl, ev.Elem())
	}
	rv.Elem().Set(sl)
	return nil
}

// BoundListOps is ListOps fixed to one key.
type BoundListOps struct {
	ops ListOps
	key string
}

func (o *BoundListOps) Key() string {
	return o.key
}

func (o *BoundListOps) RPush(ctx context.Context, values ...interface{}) (int64, error) {
	return o.ops.RPush(ctx, o.key, values...)
}

func (o *BoundListOps) LPush(ctx context.Context, values ...interface{}) (int64, error) {
	return o.ops.LPush(ctx, o.key, values...)
}

func (o *BoundListOps) LPop(ctx context.Context, dest interface{}) (bool, error) {
	return o.ops.LPop(ctx, o.key, dest)
}

func (o *BoundListOps) RPop(ctx context.Context, dest interface{}) (bool, error) {
	return o.ops.RPop(ctx, o.key, dest)
}

func (o *BoundListOps) Len(ctx context.Context) (int64, error) {
	return o.ops.Len(ctx, o.key)
}

func (o *BoundListOps) Range(ctx context.Context, start, stop int64, dest interface{}) error {
	return o.ops.Range(ctx, o.key, start, stop, dest)
}
