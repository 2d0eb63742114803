package serializer

import (
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/xerrors"
)

// JSONSerializer stores values as JSON documents.
type JSONSerializer struct {
	api jsoniter.API
}

func NewJSONSerializer() JSONSerializer {
	return JSONSerializer{api: jsoniter.ConfigCompatibleWithStandardLibrary}
}

func (s JSONSerializer) Serialize(v interface{}) ([]byte, error) {
	if v == nil {
		return emptyBytes, nil
	}
	data, err := s.api.Marshal(v)
	if err != nil {
		return nil, xerrors.Errorf("json serializer: could not write JSON: %w", err)
	}
	return data, nil
}

func (s JSONSerializer) Deserialize(data []byte, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := s.api.Unmarshal(data, dest); err != nil {
		return xerrors.Errorf("json serializer: could not read JSON: %w", err)
	}
	return nil
}
