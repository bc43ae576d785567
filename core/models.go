package core

import (
	"maps"
	"time"
)

// Record is a loosely-typed view of one row of the record store.
// Fields hold JSON-compatible values; numbers read back from storage are float64.
type Record struct {
	Table  string
	ID     string
	Fields map[string]any
}

// NewRecord creates a record with an empty field map.
func NewRecord(table, id string) *Record {
	return &Record{
		Table:  table,
		ID:     id,
		Fields: map[string]any{},
	}
}

// Has reports whether the field is present on the record.
// A field explicitly set to nil is treated the same as a missing field.
func (r *Record) Has(field string) bool {
	if r == nil || r.Fields == nil {
		return false
	}
	v, ok := r.Fields[field]
	return ok && v != nil
}

// Get returns the value of a field and whether it is present.
func (r *Record) Get(field string) (any, bool) {
	if !r.Has(field) {
		return nil, false
	}
	return r.Fields[field], true
}

// String returns the field as a string, or "" if absent or not a string.
func (r *Record) String(field string) string {
	v, ok := r.Get(field)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Set assigns a field value, allocating the field map if needed.
func (r *Record) Set(field string, value any) {
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	r.Fields[field] = value
}

// Clone returns a shallow copy of the record with its own field map.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Table:  r.Table,
		ID:     r.ID,
		Fields: maps.Clone(r.Fields),
	}
}

// Ref returns "table:id", the form used in logs and edge records.
func (r *Record) Ref() string {
	return r.Table + ":" + r.ID
}

// Flow describes one registered transformation step.
//
// A record of Table is a candidate for the flow when its Stamp field is absent
// and every field named in Dependencies is present. Higher Priority flows run
// earlier within a pass. Hash identifies the version of the handler logic.
type Flow struct {
	Name         string
	Table        string
	Stamp        string
	Dependencies []string
	Priority     int
	Hash         string
	Seq          uint64    // Registration order, assigned by the store on first upsert
	UpdatedAt    time.Time // When the descriptor was last written
}

// Clone returns a deep copy of the flow.
func (f *Flow) Clone() *Flow {
	if f == nil {
		return nil
	}
	c := *f
	c.Dependencies = append([]string(nil), f.Dependencies...)
	return &c
}

// TaskStatus is the lifecycle state of a queued task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskProcessed  TaskStatus = "processed"
	TaskFailed     TaskStatus = "failed"
)

// Task is an explicit unit of work in the status-queue strategy.
// Ref points at the record the task operates on.
type Task struct {
	ID       string
	Kind     string
	RefTable string
	RefID    string
	Status   TaskStatus
	Detail   string
}
