package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Normalize converts an arbitrary value into the JSON-like tree the backends deliver:
// map[string]any, []any, string, float64, bool or nil. Maps and slices are deep copied.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return t, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out, nil
	default:
		buf, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("normalize %T: %w", v, err)
		}
		var decoded any
		if err := json.Unmarshal(buf, &decoded); err != nil {
			return nil, fmt.Errorf("normalize %T: %w", v, err)
		}
		return decoded, nil
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
