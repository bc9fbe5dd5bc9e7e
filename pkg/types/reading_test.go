package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinedRowMarshalJSON(t *testing.T) {
	row := CombinedRow{
		Timestamp:     "2024-01-01T00:00:00Z",
		FormattedDate: "Jan 2024",
		Values: map[string]*float64{
			"a": Float(10),
			"b": nil,
		},
	}
	b, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"2024-01-01T00:00:00Z","formattedDate":"Jan 2024","a":10,"b":null}`, string(b))
}

func TestCombinedRowValue(t *testing.T) {
	row := CombinedRow{Values: map[string]*float64{"a": Float(0), "b": nil}}

	v, ok := row.Value("a")
	assert.True(t, ok, "zero is still a reading")
	assert.Equal(t, 0.0, v)

	_, ok = row.Value("b")
	assert.False(t, ok)

	_, ok = row.Value("missing")
	assert.False(t, ok)
}
