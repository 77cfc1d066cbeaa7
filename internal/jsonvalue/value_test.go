package jsonvalue

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrintScalars(t *testing.T) {
	v, err := Parse(`"hello"`, String, true)
	require.NoError(t, err)
	assert.Equal(t, "hello", v.String())

	v, err = Parse(`42.5`, Number, true)
	require.NoError(t, err)
	assert.Equal(t, 42.5, v.Number())

	v, err = Parse(`true`, True, true)
	require.NoError(t, err)
	assert.Equal(t, True, v.Kind())

	v, err = Parse(`null`, Null, true)
	require.NoError(t, err)
	assert.Equal(t, Null, v.Kind())
}

func TestParseRejectsTrailingData(t *testing.T) {
	_, err := Parse(`1 2`, Number, false)
	assert.Error(t, err)
}

func TestParseWrongTopKind(t *testing.T) {
	_, err := Parse(`"x"`, Number, true)
	assert.ErrorIs(t, err, ErrParse)
}

func TestObjectInsertAndLookup(t *testing.T) {
	obj := NewObject()
	require.NoError(t, obj.InsertString("zebra", "z"))
	require.NoError(t, obj.InsertString("apple", "a"))

	v, ok := obj.LookupString("apple")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = obj.LookupString("zebra")
	require.True(t, ok)
	assert.Equal(t, "z", v)

	_, ok = obj.LookupString("missing")
	assert.False(t, ok)
}

func TestArrayAppendAndIndex(t *testing.T) {
	arr := NewArray()
	require.NoError(t, arr.Append(NewNumber(1)))
	require.NoError(t, arr.Append(NewNumber(2)))
	assert.Equal(t, 2, arr.Len())

	elem, ok := arr.Index(1, Number, true)
	require.True(t, ok)
	assert.Equal(t, 2.0, elem.Number())

	_, ok = arr.Index(5, Number, true)
	assert.False(t, ok)
}

func TestUnicodeEscapeIsBMPOnly(t *testing.T) {
	v, err := Parse("\"\\u00E9\"", String, true)
	require.NoError(t, err)
	assert.Equal(t, "é", v.String())
}

// A surrogate pair written as two separate \uXXXX escapes (the JSON
// encoding of a supplementary-plane character, here U+1F600) is not
// reassembled: each half decodes independently, and a lone surrogate code
// unit is not a valid Unicode scalar value on its own, so each one comes
// out as the replacement character U+FFFD. This pins the documented
// BMP-only limitation rather than silently fixing it.
func TestUnicodeEscapeDoesNotReassembleSurrogatePairs(t *testing.T) {
	v, err := Parse("\"\\uD83D\\uDE00\"", String, true)
	require.NoError(t, err)
	assert.Equal(t, string(utf8.RuneError)+string(utf8.RuneError), v.String())
}

func TestPrintRoundTripsStringEscapes(t *testing.T) {
	v := NewString("a\"b\\c\nd")
	s := MarshalString(v)
	back, err := Parse(s, String, true)
	require.NoError(t, err)
	assert.Equal(t, v.String(), back.String())
}

func TestObjectPrintIsKeySorted(t *testing.T) {
	obj := NewObject()
	require.NoError(t, obj.InsertString("b", "2"))
	require.NoError(t, obj.InsertString("a", "1"))
	out := MarshalString(obj)
	assert.True(t, strings.Index(out, `"a"`) < strings.Index(out, `"b"`))
}

// TestRoundTripProperty generates arbitrary strings and bounded-range
// numbers and checks that printing then re-parsing each one as a JSON value
// yields an equal value.
func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("string values round-trip through print/parse", prop.ForAll(
		func(s string) bool {
			v := NewString(s)
			printed := MarshalString(v)
			back, err := Parse(printed, String, true)
			if err != nil {
				return false
			}
			return back.String() == v.String()
		},
		gen.AnyString(),
	))

	properties.Property("numbers round-trip through print/parse", prop.ForAll(
		func(n float64) bool {
			v := NewNumber(n)
			printed := MarshalString(v)
			back, err := Parse(printed, Number, true)
			if err != nil {
				return false
			}
			return back.Number() == v.Number() || (back.Number() != back.Number() && v.Number() != v.Number())
		},
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
