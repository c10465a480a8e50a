package plan

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"trainplan/internal/value"
)

func encodeMsgpack(b *value.Block) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(value.FromBlock(b).ToAny()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMsgpack reads a plan tree written by the msgpack format.
func DecodeMsgpack(data []byte) (*value.Block, error) {
	var m map[string]any
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	v, err := value.FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.Block(), nil
}
