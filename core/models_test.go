package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Has(t *testing.T) {
	rec := NewRecord("document", "a")
	rec.Set("text", "hello")
	rec.Set("empty", "")
	rec.Set("null", nil)

	assert.True(t, rec.Has("text"))
	assert.True(t, rec.Has("empty"), "empty string is still a value")
	assert.False(t, rec.Has("null"), "explicit nil counts as absent")
	assert.False(t, rec.Has("missing"))

	var nilRec *Record
	assert.False(t, nilRec.Has("text"))
}

func TestRecord_GetAndString(t *testing.T) {
	rec := &Record{Table: "chunk", ID: "1", Fields: map[string]any{
		"text":  "some text",
		"count": float64(3),
	}}

	v, ok := rec.Get("count")
	require.True(t, ok)
	assert.Equal(t, float64(3), v)

	assert.Equal(t, "some text", rec.String("text"))
	assert.Equal(t, "", rec.String("count"), "non-string values read as empty")
	assert.Equal(t, "", rec.String("missing"))
}

func TestRecord_Clone(t *testing.T) {
	rec := NewRecord("document", "a")
	rec.Set("text", "hello")

	clone := rec.Clone()
	clone.Set("text", "changed")
	clone.Set("extra", true)

	assert.Equal(t, "hello", rec.String("text"))
	assert.False(t, rec.Has("extra"))
	assert.Equal(t, "document:a", clone.Ref())
}

func TestFlow_Clone(t *testing.T) {
	f := &Flow{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}}
	c := f.Clone()
	c.Dependencies[0] = "other"

	assert.Equal(t, "text", f.Dependencies[0])
}

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "simple", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)
			assert.Equal(t, id1, id2)
			assert.Len(t, id1, 16, "8 bytes hex encoded")
		})
	}

	assert.NotEqual(t, IDFromContent("content1"), IDFromContent("content2"))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("file contents"))
	b := Fingerprint([]byte("file contents"))
	c := Fingerprint([]byte("other contents"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestNewID_Sortable(t *testing.T) {
	prev := NewID()
	for range 100 {
		next := NewID()
		assert.Less(t, prev, next, "IDs must sort in creation order")
		prev = next
	}
}

func TestEdgeID(t *testing.T) {
	chunk := NewRecord("chunk", "c1")
	doc := NewRecord("document", "d1")

	assert.Equal(t, EdgeID(chunk, doc), EdgeID(chunk, doc))
	assert.NotEqual(t, EdgeID(chunk, doc), EdgeID(doc, chunk), "edges are directed")
}
