package connection

import (
	"time"

	"github.com/go-redis/redis"
)

// InsertPosition selects where LInsert places the value relative to pivot.
type InsertPosition string

const (
	InsertBefore InsertPosition = "BEFORE"
	InsertAfter  InsertPosition = "AFTER"
)

// List commands. Every non-blocking command routes through the invoker, so
// it works unchanged in direct, pipelined and MULTI mode. Blocking commands
// are direct-only and fail with ErrUnsupported while queueing.

func (c *Conn) RPush(key string, values ...[]byte) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.RPush(key, byteArgs(values)...)
	})
}

func (c *Conn) LPush(key string, values ...[]byte) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LPush(key, byteArgs(values)...)
	})
}

// RPushX appends only when the list already exists.
func (c *Conn) RPushX(key string, value []byte) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.RPushX(key, value)
	})
}

func (c *Conn) LPushX(key string, value []byte) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LPushX(key, value)
	})
}

func (c *Conn) LLen(key string) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LLen(key)
	})
}

func (c *Conn) LRange(key string, start, stop int64) ([][]byte, error) {
	return c.invoke().byteSlices(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LRange(key, start, stop)
	})
}

func (c *Conn) LTrim(key string, start, stop int64) error {
	_, err := c.invoke().statusOK(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LTrim(key, start, stop)
	})
	return err
}

func (c *Conn) LIndex(key string, index int64) ([]byte, error) {
	return c.invoke().bytes(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LIndex(key, index)
	})
}

// LInsert returns -1 when the pivot was not found, 0 when the key does not
// exist.
func (c *Conn) LInsert(key string, where InsertPosition, pivot, value []byte) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LInsert(key, string(where), pivot, value)
	})
}

func (c *Conn) LSet(key string, index int64, value []byte) error {
	_, err := c.invoke().statusOK(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LSet(key, index, value)
	})
	return err
}

func (c *Conn) LRem(key string, count int64, value []byte) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LRem(key, count, value)
	})
}

// LPop returns nil without error when the list is empty or missing.
func (c *Conn) LPop(key string) ([]byte, error) {
	return c.invoke().bytes(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.LPop(key)
	})
}

func (c *Conn) RPop(key string) ([]byte, error) {
	return c.invoke().bytes(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.RPop(key)
	})
}

func (c *Conn) RPopLPush(source, destination string) ([]byte, error) {
	return c.invoke().bytes(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.RPopLPush(source, destination)
	})
}

// LPos returns the indexes of matching elements. rank shifts the starting
// match (negative ranks scan from the tail); count limits the matches, with
// nil meaning the single first match. The wrapped client has no typed LPOS,
// so this goes through the generic command path and is direct-only.
func (c *Conn) LPos(key string, element []byte, rank, count *int64) ([]int64, error) {
	args := []interface{}{"lpos", key, element}
	if rank != nil {
		args = append(args, "rank", *rank)
	}
	withCount := count != nil
	if withCount {
		args = append(args, "count", *count)
	}
	v, err := c.invoke().justDirect(func(redis.Cmdable) redis.Cmder {
		return c.raw.Do(args...)
	}, rawConverter)
	if err != nil || v == nil {
		return nil, err
	}
	if withCount {
		items, ok := v.([]interface{})
		if !ok {
			return nil, ErrInvalidState.New("unexpected LPOS reply %T", v)
		}
		out := make([]int64, 0, len(items))
		for _, it := range items {
			n, ok := it.(int64)
			if !ok {
				return nil, ErrInvalidState.New("unexpected LPOS element %T", it)
			}
			out = append(out, n)
		}
		return out, nil
	}
	n, ok := v.(int64)
	if !ok {
		return nil, ErrInvalidState.New("unexpected LPOS reply %T", v)
	}
	return []int64{n}, nil
}

// BLPop blocks until an element arrives on one of keys or the timeout
// expires. On timeout it returns empty results without error.
func (c *Conn) BLPop(timeout time.Duration, keys ...string) (string, []byte, error) {
	v, err := c.invoke().justDirect(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.BLPop(timeout, keys...)
	}, byteSlicesConverter)
	return popReply(v, err)
}

func (c *Conn) BRPop(timeout time.Duration, keys ...string) (string, []byte, error) {
	v, err := c.invoke().justDirect(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.BRPop(timeout, keys...)
	}, byteSlicesConverter)
	return popReply(v, err)
}

func (c *Conn) BRPopLPush(source, destination string, timeout time.Duration) ([]byte, error) {
	v, err := c.invoke().justDirect(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.BRPopLPush(source, destination, timeout)
	}, bytesConverter)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]byte), nil
}

func popReply(v interface{}, err error) (string, []byte, error) {
	if err != nil || v == nil {
		return "", nil, err
	}
	kv := v.([][]byte)
	if len(kv) != 2 {
		return "", nil, nil
	}
	return string(kv[0]), kv[1], nil
}

func byteArgs(values [][]byte) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
