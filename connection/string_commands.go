package connection

import (
	"time"

	"github.com/go-redis/redis"
)

// Key/value commands: the minimum surface the template layer builds on.

// Get returns nil without error when the key does not exist.
func (c *Conn) Get(key string) ([]byte, error) {
	return c.invoke().bytes(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Get(key)
	})
}

func (c *Conn) Set(key string, value []byte, expiration time.Duration) (bool, error) {
	return c.invoke().statusOK(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Set(key, value, expiration)
	})
}

// SetNX reports whether the key was set.
func (c *Conn) SetNX(key string, value []byte, expiration time.Duration) (bool, error) {
	return c.invoke().boolean(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.SetNX(key, value, expiration)
	})
}

func (c *Conn) MGet(keys ...string) ([]interface{}, error) {
	return c.invoke().slice(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.MGet(keys...)
	})
}

func (c *Conn) MSet(pairs ...interface{}) error {
	_, err := c.invoke().statusOK(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.MSet(pairs...)
	})
	return err
}

func (c *Conn) Incr(key string) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Incr(key)
	})
}

func (c *Conn) IncrBy(key string, delta int64) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.IncrBy(key, delta)
	})
}

func (c *Conn) Decr(key string) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Decr(key)
	})
}

func (c *Conn) Append(key string, value []byte) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Append(key, string(value))
	})
}

func (c *Conn) StrLen(key string) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.StrLen(key)
	})
}

// Del returns the number of keys removed.
func (c *Conn) Del(keys ...string) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Del(keys...)
	})
}

func (c *Conn) Exists(keys ...string) (int64, error) {
	return c.invoke().int64(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Exists(keys...)
	})
}

func (c *Conn) Expire(key string, expiration time.Duration) (bool, error) {
	return c.invoke().boolean(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Expire(key, expiration)
	})
}

// TTL follows the server convention: -1 for no expiry, -2 for a missing key.
func (c *Conn) TTL(key string) (time.Duration, error) {
	return c.invoke().duration(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.TTL(key)
	})
}
