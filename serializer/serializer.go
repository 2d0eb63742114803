// Package serializer converts values to and from the byte slices stored in
// Redis. Serializers are stateless and safe for concurrent use.
package serializer

import (
	"golang.org/x/xerrors"
)

var emptyBytes = []byte{}

// Serializer is the contract shared by all codecs: a nil value serializes to
// an empty slice, and deserializing empty input leaves dest untouched.
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte, dest interface{}) error
}

// StringSerializer passes strings and byte slices through as UTF-8.
type StringSerializer struct{}

func NewStringSerializer() StringSerializer {
	return StringSerializer{}
}

func (StringSerializer) Serialize(v interface{}) ([]byte, error) {
	switch s := v.(type) {
	case nil:
		return emptyBytes, nil
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	default:
		return nil, xerrors.Errorf("string serializer: unsupported type %T", v)
	}
}

func (StringSerializer) Deserialize(data []byte, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	switch d := dest.(type) {
	case *string:
		*d = string(data)
		return nil
	case *[]byte:
		*d = append((*d)[:0], data...)
		return nil
	default:
		return xerrors.Errorf("string serializer: unsupported destination %T", dest)
	}
}
