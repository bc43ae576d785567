package query

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/poiesic/flowrun/core"
)

var (
	// ErrEmptyTable is returned when a query has no table.
	ErrEmptyTable = errors.New("query table cannot be empty")

	// ErrEmptyField is returned when a predicate names an empty field.
	ErrEmptyField = errors.New("predicate field cannot be empty")

	// ErrNegativeLimit is returned when a query has a negative limit.
	ErrNegativeLimit = errors.New("query limit cannot be negative")
)

// Predicate is a filter condition over a record's fields.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Present matches records where Field is set to a non-null value.
type Present struct {
	Field string
}

// Absent matches records where Field is missing or null.
type Absent struct {
	Field string
}

// Equals matches records where Field is present and equal to Value.
type Equals struct {
	Field string
	Value any
}

// NotEquals matches records where Field is present and not equal to Value.
// Records missing the field do not match.
type NotEquals struct {
	Field string
	Value any
}

// And matches records that satisfy every predicate. An empty And matches all records.
type And []Predicate

func (Present) predicateNode()   {}
func (Absent) predicateNode()    {}
func (Equals) predicateNode()    {}
func (NotEquals) predicateNode() {}
func (And) predicateNode()       {}

// AllPresent returns a predicate requiring every field to be present.
func AllPresent(fields ...string) And {
	preds := make(And, 0, len(fields))
	for _, f := range fields {
		preds = append(preds, Present{Field: f})
	}
	return preds
}

// Query selects records from one table.
//
// Results are ordered by record ID ascending. After is an exclusive cursor:
// only records with ID > After are returned. A Limit of 0 means no limit.
type Query struct {
	Table string
	Where Predicate
	After string
	Limit int
}

// Validate checks that the query is well formed.
func Validate(q Query) error {
	if q.Table == "" {
		return ErrEmptyTable
	}
	if q.Limit < 0 {
		return ErrNegativeLimit
	}
	return validatePredicate(q.Where)
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Present:
		return checkField(pred.Field)
	case Absent:
		return checkField(pred.Field)
	case Equals:
		return checkField(pred.Field)
	case NotEquals:
		return checkField(pred.Field)
	case And:
		for _, sub := range pred {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func checkField(field string) error {
	if field == "" {
		return ErrEmptyField
	}
	return nil
}

// Match evaluates a predicate against a record. A nil predicate matches everything.
func Match(p Predicate, rec *core.Record) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Present:
		return rec.Has(pred.Field)
	case Absent:
		return !rec.Has(pred.Field)
	case Equals:
		v, ok := rec.Get(pred.Field)
		return ok && valuesEqual(v, pred.Value)
	case NotEquals:
		v, ok := rec.Get(pred.Field)
		return ok && !valuesEqual(v, pred.Value)
	case And:
		for _, sub := range pred {
			if !Match(sub, rec) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// valuesEqual compares field values the way they look after a JSON round trip,
// so int 3 and float64 3 are equal.
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && sa == sb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
