package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"zebra": "z",
		"apple": json.Number("1"),
		"mango": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"apple":1,"mango":null,"zebra":"z"}`, string(got))
}

func TestMarshalCanonicalRecord(t *testing.T) {
	r := NewRecord(F("name", Text("gear")), F("id", Int(1)), F("size", Null{}))

	got, err := MarshalCanonical(r)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"gear","size":null}`, string(got))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(got))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	got, err = MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	got, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(got))
}

func TestMarshalCanonicalNested(t *testing.T) {
	got, err := MarshalCanonical([]any{
		map[string]any{"b": true, "a": int64(2)},
		[]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"a":2,"b":true},[]]`, string(got))
}

func TestMarshalCanonicalRejectsUnknown(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, -1, compareKeysRFC8785("A", "a"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "aa"))
	assert.Equal(t, 0, compareKeysRFC8785("x", "x"))
	// U+FF61 sorts before U+1F600 in UTF-8 but after it in UTF-16.
	assert.Equal(t, 1, compareKeysRFC8785("\uFF61", "\U0001F600"))
}
