package flow

import (
	"context"
	"fmt"
	"maps"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
)

// Commit writes fields and sets stamp to value on rec in one conditional
// update that only applies while the stamp is still absent. This is the
// commit point of a handler: once it succeeds the record stops being a
// candidate for the flow.
//
// If another worker stamped the record first nothing is written and
// core.ErrAlreadyStamped is returned; the executor counts that as a skip.
// On success rec.Fields reflects the write.
func Commit(ctx context.Context, repo storage.RecordRepository, rec *core.Record, stamp, value string, fields map[string]any) error {
	update := maps.Clone(fields)
	if update == nil {
		update = make(map[string]any, 1)
	}
	update[stamp] = value

	ok, err := repo.UpdateIf(ctx, rec.Table, rec.ID, query.Absent{Field: stamp}, update)
	if err != nil {
		return fmt.Errorf("commit %s on %s: %w", stamp, rec.Ref(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s", core.ErrAlreadyStamped, stamp, rec.Ref())
	}
	rec.Fields = storage.ApplyFields(rec.Fields, update)
	return nil
}
