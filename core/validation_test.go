package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFlow(t *testing.T) {
	valid := func() *Flow {
		return &Flow{
			Name:         "chunk",
			Table:        "document",
			Stamp:        "chunked",
			Dependencies: []string{"text"},
			Priority:     1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(f *Flow)
		wantErr error
	}{
		{name: "valid", mutate: func(f *Flow) {}},
		{name: "no dependencies", mutate: func(f *Flow) { f.Dependencies = nil }},
		{name: "empty name", mutate: func(f *Flow) { f.Name = "" }, wantErr: ErrEmptyFlowName},
		{name: "empty table", mutate: func(f *Flow) { f.Table = "" }, wantErr: ErrEmptyTable},
		{name: "empty stamp", mutate: func(f *Flow) { f.Stamp = "" }, wantErr: ErrEmptyStamp},
		{name: "empty dependency", mutate: func(f *Flow) { f.Dependencies = []string{"text", ""} }, wantErr: ErrEmptyDependency},
		{name: "stamp is dependency", mutate: func(f *Flow) { f.Dependencies = []string{"chunked"} }, wantErr: ErrStampIsDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(f)
			err := ValidateFlow(f)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidFlow)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.ErrorIs(t, ValidateFlow(nil), ErrInvalidFlow)
}

func TestValidateRecord(t *testing.T) {
	assert.NoError(t, ValidateRecord(NewRecord("document", "1")))
	assert.ErrorIs(t, ValidateRecord(nil), ErrInvalidRecord)
	assert.ErrorIs(t, ValidateRecord(NewRecord("", "1")), ErrEmptyTable)
	assert.ErrorIs(t, ValidateRecord(NewRecord("document", "")), ErrEmptyRecordID)
}

func TestValidateTaskStatus(t *testing.T) {
	for _, s := range []TaskStatus{TaskPending, TaskProcessing, TaskProcessed, TaskFailed} {
		assert.NoError(t, ValidateTaskStatus(s))
	}
	assert.ErrorIs(t, ValidateTaskStatus("done"), ErrInvalidTaskStatus)
}
