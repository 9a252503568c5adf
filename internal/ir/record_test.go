package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPreservesOrder(t *testing.T) {
	r := NewRecord(
		F("name", Text("gear")),
		F("color", Text("red")),
		F("weight", Int(3)),
	)

	assert.Equal(t, []string{"name", "color", "weight"}, r.Keys())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"gear","color":"red","weight":3}`, string(b))
}

func TestRecordSetReplacesInPlace(t *testing.T) {
	r := NewRecord(F("a", Text("1")), F("b", Text("2")))
	r.Set("a", Text("3"))

	assert.Equal(t, []string{"a", "b"}, r.Keys())
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, Text("3"), v)
}

func TestRecordSetNilStoresNull(t *testing.T) {
	var r Record
	r.Set("x", nil)

	v, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, Null{}, v)
}

func TestRecordDelete(t *testing.T) {
	r := NewRecord(F("a", Text("1")), F("b", Text("2")), F("c", Text("3")))
	clone := r.Clone()
	r.Delete("b")

	assert.Equal(t, []string{"a", "c"}, r.Keys())
	assert.Equal(t, []string{"a", "b", "c"}, clone.Keys(), "clone must not share storage")

	r.Delete("missing")
	assert.Equal(t, 2, r.Len())
}

func TestRecordGetFold(t *testing.T) {
	r := NewRecord(F("Name", Text("gear")))

	_, ok := r.Get("name")
	assert.False(t, ok)

	v, ok := r.GetFold("name")
	require.True(t, ok)
	assert.Equal(t, Text("gear"), v)
}

func TestRecordMerge(t *testing.T) {
	base := NewRecord(F("id", Int(1)))
	merged := base.Merge(NewRecord(F("name", Text("gear")), F("id", Int(2))))

	assert.Equal(t, []string{"id", "name"}, merged.Keys())
	v, _ := merged.Get("id")
	assert.Equal(t, Number("2"), v)
	assert.Equal(t, 1, base.Len())
}

func TestRecordUnmarshalJSON(t *testing.T) {
	var r Record
	err := json.Unmarshal([]byte(`{"zeta":"z","alpha":1.5,"ok":true,"none":null,"tags":["a", "b"]}`), &r)
	require.NoError(t, err)

	assert.Equal(t, []string{"zeta", "alpha", "ok", "none", "tags"}, r.Keys())

	v, _ := r.Get("alpha")
	assert.Equal(t, Number("1.5"), v)
	v, _ = r.Get("ok")
	assert.Equal(t, Number("1"), v)
	v, _ = r.Get("none")
	assert.Equal(t, Null{}, v)
	v, _ = r.Get("tags")
	assert.Equal(t, Text(`["a","b"]`), v)
}

func TestRecordUnmarshalJSONRejectsNonObject(t *testing.T) {
	var r Record
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))
	assert.Error(t, json.Unmarshal([]byte(`"text"`), &r))
}

func TestRecordRoundTripKeepsOrder(t *testing.T) {
	in := `{"name":"bolt","size":"M","count":4}`

	var r Record
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}
