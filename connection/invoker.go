package connection

import (
	"time"

	"github.com/go-redis/redis"
)

// connFunc expresses a command once against the Cmdable interface. The
// synchronizer decides whether the target is the direct client, an open
// pipeline or a MULTI queue; the call site cannot tell which.
type connFunc func(cmd redis.Cmdable) redis.Cmder

// converter extracts a result from a finished Cmder. A nil reply
// (redis.Nil) converts to a nil value, never an error.
type converter func(cmd redis.Cmder) (interface{}, error)

// deferredResult is a queued command awaiting pipeline or MULTI flush,
// paired with the converter that shapes its reply.
type deferredResult struct {
	cmd     redis.Cmder
	convert converter
}

// invoker routes a single command through the owning connection's
// synchronizer and shapes the reply. In deferred modes every method returns
// the zero value immediately; the converted result surfaces later from
// ClosePipeline or Exec, in submission order.
type invoker struct {
	conn *Conn
}

func (in *invoker) int64(fn connFunc) (int64, error) {
	v, err := in.conn.submit(fn, int64Converter)
	if err != nil || v == nil {
		return 0, err
	}
	return v.(int64), nil
}

func (in *invoker) float64(fn connFunc) (float64, error) {
	v, err := in.conn.submit(fn, float64Converter)
	if err != nil || v == nil {
		return 0, err
	}
	return v.(float64), nil
}

func (in *invoker) bytes(fn connFunc) ([]byte, error) {
	v, err := in.conn.submit(fn, bytesConverter)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (in *invoker) byteSlices(fn connFunc) ([][]byte, error) {
	v, err := in.conn.submit(fn, byteSlicesConverter)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([][]byte), nil
}

func (in *invoker) boolean(fn connFunc) (bool, error) {
	v, err := in.conn.submit(fn, boolConverter)
	if err != nil || v == nil {
		return false, err
	}
	return v.(bool), nil
}

func (in *invoker) boolSlice(fn connFunc) ([]bool, error) {
	v, err := in.conn.submit(fn, boolSliceConverter)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]bool), nil
}

// statusOK reports whether the server answered with a simple status reply.
func (in *invoker) statusOK(fn connFunc) (bool, error) {
	v, err := in.conn.submit(fn, statusConverter)
	if err != nil || v == nil {
		return false, err
	}
	return v.(bool), nil
}

func (in *invoker) str(fn connFunc) (string, error) {
	v, err := in.conn.submit(fn, stringConverter)
	if err != nil || v == nil {
		return "", err
	}
	return v.(string), nil
}

func (in *invoker) duration(fn connFunc) (time.Duration, error) {
	v, err := in.conn.submit(fn, durationConverter)
	if err != nil || v == nil {
		return 0, err
	}
	return v.(time.Duration), nil
}

func (in *invoker) slice(fn connFunc) ([]interface{}, error) {
	v, err := in.conn.submit(fn, sliceConverter)
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]interface{}), nil
}

// result returns the untyped reply, used by scripting where the shape
// depends on the script.
func (in *invoker) result(fn connFunc) (interface{}, error) {
	return in.conn.submit(fn, rawConverter)
}

// justDirect is for commands the deferred targets cannot express. It fails
// with ErrUnsupported while a pipeline or MULTI is open.
func (in *invoker) justDirect(fn connFunc, conv converter) (interface{}, error) {
	return in.conn.submitDirect(fn, conv)
}

func int64Converter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.IntCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func float64Converter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.FloatCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func bytesConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.StringCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func stringConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.StringCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func byteSlicesConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.StringSliceCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	vs, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vs))
	for i, v := range vs {
		out[i] = []byte(v)
	}
	return out, nil
}

func boolConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.BoolCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func boolSliceConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.BoolSliceCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func statusConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.StatusCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	_, err := c.Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return nil, err
	}
	return true, nil
}

func durationConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.DurationCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func sliceConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.SliceCmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func rawConverter(cmd redis.Cmder) (interface{}, error) {
	c, ok := cmd.(*redis.Cmd)
	if !ok {
		return nil, unexpectedCmd(cmd)
	}
	v, err := c.Result()
	if err == redis.Nil {
		return nil, nil
	}
	return v, err
}

func unexpectedCmd(cmd redis.Cmder) error {
	return ErrInvalidState.New("unexpected command type %T", cmd)
}
