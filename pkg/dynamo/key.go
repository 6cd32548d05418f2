package dynamo

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// KeyConverter converts the value a primary key is derived from into the
// key's attribute type.
type KeyConverter func(v any) (any, error)

// StringKey renders the value as text. It is the default converter.
func StringKey(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case decimal.Decimal:
		return x.String(), nil
	case nil:
		return nil, fmt.Errorf("cannot use null as a string key")
	default:
		return fmt.Sprint(x), nil
	}
}

// NumberKey converts the value to an exact decimal.
func NumberKey(v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int8:
		return decimal.NewFromInt(int64(x)), nil
	case int16:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0), nil
	case uint8:
		return decimal.NewFromInt(int64(x)), nil
	case uint16:
		return decimal.NewFromInt(int64(x)), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return nil, fmt.Errorf("cannot use %q as a number key: %w", x, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("cannot use %T as a number key", v)
	}
}

// ParseKeyType maps a key type name ("string" or "number") to its converter.
func ParseKeyType(name string) (KeyConverter, error) {
	switch name {
	case "", "string", "S":
		return StringKey, nil
	case "number", "N":
		return NumberKey, nil
	default:
		return nil, fmt.Errorf("unknown key type %q", name)
	}
}
