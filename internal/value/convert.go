package value

import (
	"fmt"
	"sort"

	"fortio.org/safecast"
)

// FromAny converts decoded YAML/JSON/msgpack data into a Value. Map keys are
// sorted because decoders do not keep source order.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		n, err := safecast.Conv[int64](t)
		if err != nil {
			return Null(), fmt.Errorf("integer %d: %w", t, err)
		}
		return Int(n), nil
	case uint64:
		n, err := safecast.Conv[int64](t)
		if err != nil {
			return Null(), fmt.Errorf("integer %d: %w", t, err)
		}
		return Int(n), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			v, err := FromAny(it)
			if err != nil {
				return Null(), fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b := NewBlock()
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return Null(), fmt.Errorf("%s: %w", k, err)
			}
			b = b.With(k, v)
		}
		return FromBlock(b), nil
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[fmt.Sprint(k)] = v
		}
		return FromAny(m)
	}
	return Null(), fmt.Errorf("unsupported type %T", x)
}
