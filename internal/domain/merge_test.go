package domain

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeStates_EmptySides(t *testing.T) {
	merged, err := MergeStates(nil, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(merged))

	merged, err = MergeStates(json.RawMessage(`{"a":1}`), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(merged))
}

func TestMergeStates_ObjectsOverrideAndUnion(t *testing.T) {
	current := json.RawMessage(`{"a":1,"b":"old","nested":{"x":1}}`)
	results := json.RawMessage(`{"b":"new","c":true,"nested":{"y":2}}`)

	merged, err := MergeStates(current, results)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(merged, &out))

	assert.Equal(t, float64(1), out["a"])
	assert.Equal(t, "new", out["b"])
	assert.Equal(t, true, out["c"])

	nested, ok := out["nested"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), nested["x"])
	assert.Equal(t, float64(2), nested["y"])
}

func TestMergeStates_ArraysConcatenate(t *testing.T) {
	merged, err := MergeStates(json.RawMessage(`[1,2]`), json.RawMessage(`[3]`))
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(merged))
}

func TestMergeStates_MismatchedShapesTakeResults(t *testing.T) {
	merged, err := MergeStates(json.RawMessage(`{"a":1}`), json.RawMessage(`[1]`))
	require.NoError(t, err)
	assert.JSONEq(t, `[1]`, string(merged))
}

func TestMergeStates_InvalidJSON(t *testing.T) {
	_, err := MergeStates(json.RawMessage(`{`), json.RawMessage(`{}`))
	assert.Error(t, err)
}
