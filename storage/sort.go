package storage

import (
	"cmp"
	"slices"

	"github.com/poiesic/flowrun/core"
)

// SortFlows orders descriptors by priority descending, ties broken by
// registration order (Seq ascending) and then by name.
func SortFlows(flows []*core.Flow) {
	slices.SortStableFunc(flows, func(a, b *core.Flow) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}
