package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"go int", 7, "7"},
		{"bool", Bool(true), "true"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"int slice", []int{1, 2, 3}, "[1,2,3]"},
		{"element", NewElement(0, 2, 1), "[0,2,1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := Object{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Object{"b": Int(1), "a": Int(2)},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"a":2,"b":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := Object{
		"\uE000":     Int(1),
		"\U00010000": Int(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("a<b & c>d"))
	require.NoError(t, err)
	assert.Equal(t, `"a<b & c>d"`, string(result))
}

func TestMarshalCanonicalRejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(3.14)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")

	_, err = MarshalCanonical(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")

	_, err = MarshalCanonical(Array{Int(1), nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[1]")
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00E9"
	decomposed := "cafe\u0301"

	r1, err := MarshalCanonical(Object{composed: String(composed)})
	require.NoError(t, err)
	r2, err := MarshalCanonical(Object{decomposed: String(decomposed)})
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(result))

	// A literal backslash followed by u2028 text stays escaped.
	result, err = MarshalCanonical(String(`a\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028"`, string(result))
}

func TestMarshalCanonicalTerm(t *testing.T) {
	f := OperationSymbol{Name: "f", Arity: 2}
	term := NewNonVariable(f, Variable{Name: "x"}, Variable{Name: "y"})

	result, err := MarshalCanonical(term)
	require.NoError(t, err)
	assert.Equal(t, `{"args":[{"var":"x"},{"var":"y"}],"arity":2,"op":"f"}`, string(result))
}

func TestUnmarshalValueRejectsFloats(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"a":1.5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")

	_, err = UnmarshalValue([]byte(`[1,null]`))
	require.Error(t, err)

	v, err := UnmarshalValue([]byte(`[1,2]`))
	require.NoError(t, err)
	ints, err := v.(Array).Ints()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ints)
}
