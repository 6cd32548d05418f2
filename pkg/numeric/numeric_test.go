package numeric

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestConvertFloats_ExactDecimal(t *testing.T) {
	out, err := ConvertRecord(map[string]any{"temp": 36.6})
	require.NoError(t, err)

	d, ok := out["temp"].(decimal.Decimal)
	require.True(t, ok, "temp is %T", out["temp"])
	assert.Equal(t, "36.6", d.String())
	assert.True(t, d.Equal(decimal.RequireFromString("36.6")))
}

func TestConvertFloats_Nested(t *testing.T) {
	in := map[string]any{
		"id":     "a-1",
		"count":  3,
		"ok":     true,
		"reads":  []any{0.1, 0.2, map[string]any{"deep": 1.25}},
		"inner":  map[string]any{"ratio": float32(0.5)},
		"parsed": json.Number("12.30"),
		"series": []float64{1.5, 2.75},
	}

	out, err := ConvertRecord(in)
	require.NoError(t, err)

	assert.Equal(t, "a-1", out["id"])
	assert.Equal(t, 3, out["count"], "ints are left alone")
	assert.Equal(t, true, out["ok"])

	reads := out["reads"].([]any)
	assert.Equal(t, "0.1", reads[0].(decimal.Decimal).String())
	assert.Equal(t, "0.2", reads[1].(decimal.Decimal).String())
	assert.Equal(t, "1.25", reads[2].(map[string]any)["deep"].(decimal.Decimal).String())
	assert.Equal(t, "0.5", out["inner"].(map[string]any)["ratio"].(decimal.Decimal).String())
	assert.True(t, out["parsed"].(decimal.Decimal).Equal(decimal.RequireFromString("12.3")))
	assert.Len(t, out["series"], 2)

	// Input is untouched.
	assert.Equal(t, 0.1, in["reads"].([]any)[0])
}

func TestConvertFloats_TypedContainers(t *testing.T) {
	in := map[string]any{
		"rows":   []map[string]any{{"x": json.Number("1.5")}},
		"ratios": map[string]float32{"a": 0.25},
		"grid":   [][]float64{{0.1, 0.2}},
		"names":  []string{"a", "b"},
		"blob":   []byte("raw"),
		"fixed":  [2]float64{1.5, 2.5},
	}

	out, err := ConvertRecord(in)
	require.NoError(t, err)

	rows := out["rows"].([]any)
	assert.Equal(t, "1.5", rows[0].(map[string]any)["x"].(decimal.Decimal).String())
	assert.Equal(t, "0.25", out["ratios"].(map[string]any)["a"].(decimal.Decimal).String())
	assert.Equal(t, "0.2", out["grid"].([]any)[0].([]any)[1].(decimal.Decimal).String())
	assert.Equal(t, []any{"a", "b"}, out["names"])
	assert.Equal(t, []byte("raw"), out["blob"])
	assert.Equal(t, "2.5", out["fixed"].([]any)[1].(decimal.Decimal).String())

	assert.Equal(t, json.Number("1.5"), in["rows"].([]map[string]any)[0]["x"], "input is not modified")
}

func TestConvertFloats_TypedContainerNotFinite(t *testing.T) {
	_, err := ConvertFloats([]map[string]float64{{"x": math.Inf(1)}})
	assert.True(t, errors.Is(err, ErrNotFinite))
}

func TestConvertFloats_NotFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ConvertRecord(map[string]any{"v": []any{f}})
		assert.True(t, errors.Is(err, ErrNotFinite), "value %v: err = %v", f, err)
	}
}

func TestMarshalJSON_DecimalsAreBareNumbers(t *testing.T) {
	converted, err := ConvertRecord(map[string]any{"temp": 36.6, "name": "probe"})
	require.NoError(t, err)

	b, err := MarshalJSON(converted)
	require.NoError(t, err)
	assert.JSONEq(t, `{"temp":36.6,"name":"probe"}`, string(b))
	assert.Contains(t, string(b), `"temp":36.6`)
}

func TestMarshalJSON_PlainValues(t *testing.T) {
	b, err := MarshalJSON(map[string]any{"n": 10, "f": 0.3, "list": []any{decimal.RequireFromString("1.10")}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":10,"f":0.3,"list":[1.1]}`, string(b))
}

func TestConvertFloats_RoundTripsShortestText(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := rapid.Float64().Draw(t, "f")
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return
		}
		out, err := ConvertFloats(f)
		if err != nil {
			t.Fatalf("ConvertFloats(%v): %v", f, err)
		}
		back, _ := out.(decimal.Decimal).Float64()
		if back != f {
			t.Fatalf("decimal %s does not round-trip %v", out.(decimal.Decimal).String(), strconv.FormatFloat(f, 'g', -1, 64))
		}
	})
}
