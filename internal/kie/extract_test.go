package kie

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestExtractResultURLTotality(t *testing.T) {
	tests := []struct {
		name   string
		record any
	}{
		{"nil input", nil},
		{"string input", "not a map"},
		{"number input", 42},
		{"empty map", map[string]any{}},
		{"garbage shapes", decode(t, `{"data": {"images": 7, "resultUrls": "nope", "resultJson": 1}}`)},
		{"empty resultJson string", decode(t, `{"data": {"resultJson": ""}}`)},
		{"invalid resultJson", decode(t, `{"data": {"resultJson": "{broken"}}`)},
		{"url without scheme", decode(t, `{"data": {"resultUrl": "cdn.example.com/a.png"}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, ok := ExtractResultURL(tt.record)
			assert.False(t, ok)
			assert.Empty(t, url)
		})
	}
}

func TestExtractResultURLImagesArray(t *testing.T) {
	url, ok := ExtractResultURL(decode(t, `{"data": {"images": ["https://cdn.example.com/a.png"]}}`))
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/a.png", url)

	url, ok = ExtractResultURL(decode(t, `{"data": {"images": [{"url": "https://cdn.example.com/b.png"}]}}`))
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/b.png", url)

	url, ok = ExtractResultURL(decode(t, `{"data": {"images": [{"imageUrl": "https://cdn.example.com/c.png"}]}}`))
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/c.png", url)
}

func TestExtractResultURLFlatKeysAtAllDepths(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"top level", `{"resultUrl": "https://cdn.example.com/x.png"}`},
		{"under data", `{"data": {"imageUrl": "https://cdn.example.com/x.png"}}`},
		{"under data.response", `{"data": {"response": {"result_url": "https://cdn.example.com/x.png"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, ok := ExtractResultURL(decode(t, tt.raw))
			require.True(t, ok)
			assert.Equal(t, "https://cdn.example.com/x.png", url)
		})
	}
}

func TestExtractResultURLResultUrlsArray(t *testing.T) {
	url, ok := ExtractResultURL(decode(t, `{"data": {"resultUrls": ["https://cdn.example.com/1.png", "https://cdn.example.com/2.png"]}}`))
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/1.png", url)
}

func TestExtractResultURLResultJsonRecursion(t *testing.T) {
	// resultJson as an encoded string.
	record := decode(t, `{"data": {"resultJson": "{\"resultUrls\": [\"https://cdn.example.com/r.png\"]}"}}`)
	url, ok := ExtractResultURL(record)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/r.png", url)

	// resultJson as an already-decoded object.
	record = decode(t, `{"data": {"resultJson": {"data": {"images": ["https://cdn.example.com/o.png"]}}}}`)
	url, ok = ExtractResultURL(record)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/o.png", url)
}

func TestExtractResultURLChainOrder(t *testing.T) {
	// A flat key wins over resultUrls, which wins over resultJson.
	record := decode(t, `{"data": {
		"resultUrl": "https://cdn.example.com/flat.png",
		"resultUrls": ["https://cdn.example.com/list.png"],
		"resultJson": "{\"resultUrl\": \"https://cdn.example.com/json.png\"}"
	}}`)
	url, ok := ExtractResultURL(record)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/flat.png", url)

	record = decode(t, `{"data": {
		"resultUrls": ["https://cdn.example.com/list.png"],
		"resultJson": "{\"resultUrl\": \"https://cdn.example.com/json.png\"}"
	}}`)
	url, ok = ExtractResultURL(record)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/list.png", url)
}

func TestExtractVeoResultURL(t *testing.T) {
	// The Veo shape: data.info.resultUrls is a JSON-encoded array string.
	record := decode(t, `{"data": {"info": {"resultUrls": "[\"https://cdn.example.com/v.mp4\"]"}}}`)
	url, ok := ExtractVeoResultURL(record)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/v.mp4", url)

	// Already-decoded array variant.
	record = decode(t, `{"data": {"info": {"resultUrls": ["https://cdn.example.com/v2.mp4"]}}}`)
	url, ok = ExtractVeoResultURL(record)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/v2.mp4", url)

	// Falls back to the generic chain when the Veo shape is absent.
	record = decode(t, `{"data": {"resultUrl": "https://cdn.example.com/g.png"}}`)
	url, ok = ExtractVeoResultURL(record)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/g.png", url)
}

func TestExtractFor(t *testing.T) {
	veoRecord := decode(t, `{"data": {"info": {"resultUrls": "[\"https://cdn.example.com/v.mp4\"]"}}}`)
	url, ok := ExtractFor(TargetVeo, veoRecord)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/v.mp4", url)

	// The generic extractor does not know the Veo shape.
	_, ok = ExtractFor(TargetJobs, veoRecord)
	assert.False(t, ok)
}

func TestStateMapping(t *testing.T) {
	assert.Equal(t, "success", State(decode(t, `{"data": {"state": "SUCCESS"}}`)))
	assert.Equal(t, "generating", State(decode(t, `{"data": {"status": "generating"}}`)))
	assert.Equal(t, "queued", State(decode(t, `{"status": "queued"}`)))
	assert.Equal(t, "success", State(decode(t, `{"data": {"successFlag": 1}}`)))
	assert.Equal(t, "fail", State(decode(t, `{"data": {"successFlag": 2}}`)))
	assert.Equal(t, "generating", State(decode(t, `{"data": {"successFlag": 0}}`)))
	assert.Equal(t, "", State(decode(t, `{"data": {}}`)))
}

func TestIsFailedState(t *testing.T) {
	for _, state := range []string{"fail", "failed", "error", "cancelled", "canceled"} {
		assert.True(t, IsFailedState(state), state)
	}
	for _, state := range []string{"", "success", "generating", "waiting"} {
		assert.False(t, IsFailedState(state), state)
	}
}

func TestFailMessage(t *testing.T) {
	assert.Equal(t, "flagged", FailMessage(decode(t, `{"data": {"failMsg": "flagged"}}`)))
	assert.Equal(t, "boom", FailMessage(decode(t, `{"msg": "boom"}`)))
	assert.Equal(t, "", FailMessage(decode(t, `{"data": {}}`)))
}
