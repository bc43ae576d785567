package sqlite

import (
	"fmt"
	"strings"

	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
)

// compiled is a SQL condition with its bound arguments.
type compiled struct {
	sql  string
	args []any
}

// compileQuery turns a query into a SELECT over the records table.
func compileQuery(q query.Query) (compiled, error) {
	where, err := compileWhere(q.Where)
	if err != nil {
		return compiled{}, err
	}

	var b strings.Builder
	b.WriteString("SELECT id, data FROM records WHERE tbl = ?")
	args := []any{q.Table}
	if q.After != "" {
		b.WriteString(" AND id > ?")
		args = append(args, q.After)
	}
	b.WriteString(" AND (")
	b.WriteString(where.sql)
	b.WriteString(")")
	args = append(args, where.args...)
	b.WriteString(" ORDER BY id ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return compiled{sql: b.String(), args: args}, nil
}

// compileWhere compiles a predicate against the data column.
// Missing fields and JSON null both yield a NULL json_extract and a 'null'
// (or NULL) json_type, so they are treated alike.
func compileWhere(p query.Predicate) (compiled, error) {
	switch pred := p.(type) {
	case nil:
		return compiled{sql: "1 = 1"}, nil
	case query.Present:
		path, err := jsonPath(pred.Field)
		if err != nil {
			return compiled{}, err
		}
		return compiled{sql: "COALESCE(json_type(data, ?), 'null') != 'null'", args: []any{path}}, nil
	case query.Absent:
		path, err := jsonPath(pred.Field)
		if err != nil {
			return compiled{}, err
		}
		return compiled{sql: "COALESCE(json_type(data, ?), 'null') = 'null'", args: []any{path}}, nil
	case query.Equals:
		return compileComparison(pred.Field, "=", pred.Value)
	case query.NotEquals:
		return compileComparison(pred.Field, "!=", pred.Value)
	case query.And:
		if len(pred) == 0 {
			return compiled{sql: "1 = 1"}, nil
		}
		parts := make([]string, 0, len(pred))
		var args []any
		for _, sub := range pred {
			c, err := compileWhere(sub)
			if err != nil {
				return compiled{}, err
			}
			parts = append(parts, "("+c.sql+")")
			args = append(args, c.args...)
		}
		return compiled{sql: strings.Join(parts, " AND "), args: args}, nil
	default:
		return compiled{}, fmt.Errorf("%w: unsupported predicate %T", storage.ErrInvalidQuery, p)
	}
}

func compileComparison(field, op string, value any) (compiled, error) {
	path, err := jsonPath(field)
	if err != nil {
		return compiled{}, err
	}
	arg, err := bindValue(value)
	if err != nil {
		return compiled{}, err
	}
	return compiled{sql: "json_extract(data, ?) " + op + " ?", args: []any{path, arg}}, nil
}

// jsonPath builds a quoted JSON path for a top-level field.
func jsonPath(field string) (string, error) {
	if field == "" || strings.ContainsAny(field, "\"\\") {
		return "", fmt.Errorf("%w: unsupported field name %q", storage.ErrInvalidQuery, field)
	}
	return `$."` + field + `"`, nil
}

// bindValue converts a comparison value to a driver argument. Only scalars
// compare meaningfully against json_extract results.
func bindValue(v any) (any, error) {
	switch n := v.(type) {
	case string, bool, int64, float64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float32:
		return float64(n), nil
	default:
		return nil, fmt.Errorf("%w: unsupported comparison value %T", storage.ErrInvalidQuery, v)
	}
}
