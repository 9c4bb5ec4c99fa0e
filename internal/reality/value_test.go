package reality

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValueStrict(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Value
		wantErr string
	}{
		{"string", `"sync"`, String("sync"), ""},
		{"int", `42`, Int(42), ""},
		{"bool", `true`, Bool(true), ""},
		{"array", `[1,"a"]`, Array{Int(1), String("a")}, ""},
		{"object", `{"k":1}`, Object{"k": Int(1)}, ""},
		{"float rejected", `1.5`, nil, "floats are forbidden"},
		{"exponent rejected", `1e3`, nil, "floats are forbidden"},
		{"null rejected", `null`, nil, "null is forbidden"},
		{"nested null rejected", `{"k":null}`, nil, "null is forbidden"},
		{"nested float rejected", `{"k":[0.5]}`, nil, "floats are forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectRoundTripAllowsNull(t *testing.T) {
	// Stored payloads may contain null from older writers; round-trip
	// keeps them intact even though DecodeValue rejects new ones.
	var obj Object
	require.NoError(t, json.Unmarshal([]byte(`{"a":null,"b":1}`), &obj))
	assert.Equal(t, Object{"a": Null{}, "b": Int(1)}, obj)

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":1}`, string(out))
}

func TestObjectSortedKeysUTF16(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := Object{
		"":     Int(1),
		"\U00010000": Int(2),
	}
	assert.Equal(t, []string{"\U00010000", ""}, obj.SortedKeys())
}

func TestObjectMarshalDeterministic(t *testing.T) {
	obj := Object{"zebra": Int(1), "alpha": Int(2), "beta": Array{Bool(true)}}

	first, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":[true],"zebra":1}`, string(first))
}
