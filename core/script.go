package core

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/ZJRui/redisbind/connection"
)

// Script is a Lua script with its precomputed SHA1, so execution can try the
// server-side script cache first.
type Script struct {
	source string
	sha    string
}

func NewScript(source string) *Script {
	sum := sha1.Sum([]byte(source))
	return &Script{source: source, sha: hex.EncodeToString(sum[:])}
}

func (s *Script) Source() string {
	return s.source
}

func (s *Script) Sha() string {
	return s.sha
}

// RunScript executes the script EVALSHA-first, falling back to EVAL when the
// server does not have the script cached. Args are serialized through the
// template's value serializer; keys pass through untouched.
func (t *Template) RunScript(ctx context.Context, script *Script, keys []string, args ...interface{}) (interface{}, error) {
	rawArgs := make([]interface{}, len(args))
	for i, a := range args {
		raw, err := t.serialize(a)
		if err != nil {
			return nil, err
		}
		rawArgs[i] = raw
	}
	return t.Execute(ctx, func(conn *connection.Conn) (interface{}, error) {
		v, err := conn.EvalSha(script.Sha(), keys, rawArgs...)
		if err != nil && isNoScript(err) {
			return conn.Eval(script.Source(), keys, rawArgs...)
		}
		return v, err
	})
}

// LoadScript primes the server-side cache and verifies the digest.
func (t *Template) LoadScript(ctx context.Context, script *Script) error {
	_, err := t.Execute(ctx, func(conn *connection.Conn) (interface{}, error) {
		sha, err := conn.ScriptLoad(script.Source())
		if err != nil {
			return nil, err
		}
		if sha != "" && !strings.EqualFold(sha, script.Sha()) {
			return nil, connection.ErrInvalidState.New("script digest mismatch: server %s, local %s", sha, script.Sha())
		}
		return sha, nil
	})
	return err
}

func isNoScript(err error) bool {
	return err != nil && strings.HasPrefix(strings.TrimPrefix(err.Error(), "ERR "), "NOSCRIPT")
}
