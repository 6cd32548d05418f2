// Package numeric converts binary floating-point values into exact decimals
// and encodes decimals without binary rounding artifacts.
//
// DynamoDB rejects approximate floats, so records bound for it go through
// ConvertFloats first. Kinesis payloads go through MarshalJSON so that
// decimal values keep their textual precision once serialized.
package numeric

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/shopspring/decimal"
)

// ErrNotFinite is returned for NaN and infinite floats, which have no
// decimal representation.
var ErrNotFinite = errors.New("numeric: value is not finite")

// ConvertFloats walks v and replaces every float32, float64 and json.Number
// with a decimal.Decimal. Maps with string keys and slices of any element
// type are copied as map[string]any and []any, never modified in place. The decimal keeps the shortest text that round-trips the float, so
// 36.6 becomes exactly 36.6.
func ConvertFloats(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return floatDecimal(x, 64)
	case float32:
		return floatDecimal(float64(x), 32)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return nil, fmt.Errorf("numeric: parse %q: %w", x.String(), err)
		}
		return d, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			c, err := ConvertFloats(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			c, err := ConvertFloats(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			d, err := floatDecimal(f, 64)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = d
		}
		return out, nil
	default:
		return convertReflect(v)
	}
}

// convertReflect walks typed maps with string keys and typed slices or
// arrays, such as []map[string]any, into their map[string]any and []any
// forms. Byte slices and every other value are returned unchanged.
func convertReflect(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
			return v, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			c, err := ConvertFloats(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return v, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			c, err := ConvertFloats(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	default:
		return v, nil
	}
}

// ConvertRecord is ConvertFloats for a top-level record.
func ConvertRecord(record map[string]any) (map[string]any, error) {
	out, err := ConvertFloats(record)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func floatDecimal(f float64, bits int) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrNotFinite, f)
	}
	if bits == 32 {
		return decimal.NewFromFloat32(float32(f)), nil
	}
	return decimal.NewFromFloat(f), nil
}
