package flow

import (
	"context"

	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
)

// DefaultPageSize bounds how many candidates are loaded per store query.
const DefaultPageSize = 100

// Scanner finds records eligible for a flow.
type Scanner struct {
	repo     storage.RecordRepository
	pageSize int
}

// NewScanner creates a scanner over repo. A pageSize of 0 or less loads all
// candidates of a flow in a single query.
func NewScanner(repo storage.RecordRepository, pageSize int) *Scanner {
	if pageSize < 0 {
		pageSize = 0
	}
	return &Scanner{repo: repo, pageSize: pageSize}
}

// CandidatePredicate returns the condition a record must meet to be a
// candidate: the stamp field is absent and every dependency is present.
func CandidatePredicate(f *core.Flow) query.Predicate {
	pred := make(query.And, 0, len(f.Dependencies)+1)
	pred = append(pred, query.Absent{Field: f.Stamp})
	pred = append(pred, query.AllPresent(f.Dependencies...)...)
	return pred
}

// Find returns every current candidate for the flow.
func (s *Scanner) Find(ctx context.Context, f *core.Flow) ([]*core.Record, error) {
	var all []*core.Record
	err := s.Pages(ctx, f, func(page []*core.Record) bool {
		all = append(all, page...)
		return true
	})
	return all, err
}

// FindPage returns up to one page of candidates with IDs greater than after.
func (s *Scanner) FindPage(ctx context.Context, f *core.Flow, after string) ([]*core.Record, error) {
	return s.repo.Find(ctx, query.Query{
		Table: f.Table,
		Where: CandidatePredicate(f),
		After: after,
		Limit: s.pageSize,
	})
}

// Pages walks the candidates page by page in ID order until fn returns false
// or no candidates remain. Records that stay un-stamped (failed handlers) are
// passed over by the cursor, so each candidate is visited at most once per walk.
func (s *Scanner) Pages(ctx context.Context, f *core.Flow, fn func(page []*core.Record) bool) error {
	after := ""
	for {
		page, err := s.FindPage(ctx, f, after)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if !fn(page) {
			return nil
		}
		if s.pageSize == 0 || len(page) < s.pageSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}
