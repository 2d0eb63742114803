package connection

import (
	"github.com/go-redis/redis"
)

// Scripting commands. Eval/EvalSha return the untyped reply converted by the
// wrapped client: int64, string, nil or a nested []interface{} of those.

func (c *Conn) Eval(script string, keys []string, args ...interface{}) (interface{}, error) {
	return c.invoke().result(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.Eval(script, keys, args...)
	})
}

func (c *Conn) EvalSha(sha string, keys []string, args ...interface{}) (interface{}, error) {
	return c.invoke().result(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.EvalSha(sha, keys, args...)
	})
}

// ScriptLoad returns the SHA1 digest the script is cached under.
func (c *Conn) ScriptLoad(script string) (string, error) {
	return c.invoke().str(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.ScriptLoad(script)
	})
}

func (c *Conn) ScriptExists(shas ...string) ([]bool, error) {
	return c.invoke().boolSlice(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.ScriptExists(shas...)
	})
}

func (c *Conn) ScriptFlush() error {
	_, err := c.invoke().statusOK(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.ScriptFlush()
	})
	return err
}

func (c *Conn) ScriptKill() error {
	_, err := c.invoke().statusOK(func(cmd redis.Cmdable) redis.Cmder {
		return cmd.ScriptKill()
	})
	return err
}
