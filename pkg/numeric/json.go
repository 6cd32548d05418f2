package numeric

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// MarshalJSON encodes v as JSON, writing every decimal.Decimal as a bare
// number with its exact text. decimal.Decimal's own MarshalJSON quotes the
// value, which consumers of stream records would read as a string.
func MarshalJSON(v any) ([]byte, error) {
	return json.Marshal(numbers(v))
}

func numbers(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return json.Number(x.String())
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return json.Number(x.String())
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			out[k] = numbers(elem)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = numbers(elem)
		}
		return out
	default:
		return v
	}
}
