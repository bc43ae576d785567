package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowMUS_RoundTrip(t *testing.T) {
	updated := time.Date(2025, 3, 4, 5, 6, 7, 8000, time.UTC)
	tests := []struct {
		name string
		flow Flow
	}{
		{
			name: "full descriptor",
			flow: Flow{
				Name:         "chunk",
				Table:        "document",
				Stamp:        "chunked",
				Dependencies: []string{"text", "content_type"},
				Priority:     -3,
				Hash:         "0123456789abcdef0123456789abcdef",
				Seq:          42,
				UpdatedAt:    updated,
			},
		},
		{
			name: "zero time and no dependencies",
			flow: Flow{Name: "meta", Table: "chunk", Stamp: "meta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, FlowMUS.Size(tt.flow))
			n := FlowMUS.Marshal(tt.flow, buf)
			assert.Equal(t, len(buf), n)

			got, read, err := FlowMUS.Unmarshal(buf)
			require.NoError(t, err)
			assert.Equal(t, n, read)
			assert.Equal(t, tt.flow, got)
		})
	}
}

func TestFlowMUS_Truncated(t *testing.T) {
	f := Flow{Name: "chunk", Table: "document", Stamp: "chunked", Dependencies: []string{"text"}}
	buf := make([]byte, FlowMUS.Size(f))
	FlowMUS.Marshal(f, buf)

	_, _, err := FlowMUS.Unmarshal(buf[:len(buf)/2])
	assert.Error(t, err)
}
