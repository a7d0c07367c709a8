// Package selection models the user's multi-select over a list that may be
// larger than is ever materialized. An "all matching" selection stores the
// predicate and the ids the user excluded, never the matching ids; those are
// resolved against the cache only when a bulk action actually executes.
package selection

import (
	"context"

	"github.com/maildrift/maildrift/internal/feed"
)

// Mode tags the selection variant.
type Mode int

const (
	// ModeNone selects nothing.
	ModeNone Mode = iota
	// ModeSome selects an explicit id set.
	ModeSome
	// ModeAll selects every row matching a predicate, minus exclusions.
	ModeAll
)

// Predicate decides membership from a cached row.
type Predicate func(feed.Row) bool

// Lister is the slice of the cache store that resolution needs. List must
// return rows in a stable order for a fixed snapshot.
type Lister interface {
	List(ctx context.Context, table string, includeDeleted bool) ([]feed.Row, error)
}

// Selection is one multi-select over a single table. The zero value is not
// usable; construct with None, Some or All.
type Selection struct {
	table     string
	mode      Mode
	ids       map[string]bool
	predicate Predicate
	subFilter Predicate
	excluded  map[string]bool
}

// None returns an empty selection over table.
func None(table string) *Selection {
	return &Selection{table: table, mode: ModeNone, ids: map[string]bool{}}
}

// Some returns an explicit selection of ids.
func Some(table string, ids ...string) *Selection {
	s := &Selection{table: table, mode: ModeSome, ids: make(map[string]bool, len(ids))}
	for _, id := range ids {
		s.ids[id] = true
	}
	return s
}

// All returns a predicate selection. subFilter may be nil; when set it
// further narrows the predicate (e.g. "unread" within "category = work").
func All(table string, predicate Predicate, subFilter Predicate) *Selection {
	return &Selection{
		table:     table,
		mode:      ModeAll,
		predicate: predicate,
		subFilter: subFilter,
		excluded:  map[string]bool{},
	}
}

// Mode reports the variant.
func (s *Selection) Mode() Mode { return s.mode }

// Table reports the table the selection ranges over.
func (s *Selection) Table() string { return s.table }

// Toggle flips the membership of id. In None mode it promotes the selection
// to Some{id}. In All mode it flips the exclusion entry instead of touching
// any materialized id set, so toggling twice is always a no-op.
func (s *Selection) Toggle(id string) {
	switch s.mode {
	case ModeNone:
		s.mode = ModeSome
		s.ids = map[string]bool{id: true}
	case ModeSome:
		if s.ids[id] {
			delete(s.ids, id)
			if len(s.ids) == 0 {
				s.mode = ModeNone
			}
		} else {
			s.ids[id] = true
		}
	case ModeAll:
		if s.excluded[id] {
			delete(s.excluded, id)
		} else {
			s.excluded[id] = true
		}
	}
}

// IsSelected reports whether row is in the selection, without resolving.
// It agrees with Resolve: a row is selected exactly when resolution against
// a snapshot containing it would include its id.
func (s *Selection) IsSelected(row feed.Row) bool {
	switch s.mode {
	case ModeSome:
		return s.ids[row.Meta.ID]
	case ModeAll:
		return s.matches(row) && !s.excluded[row.Meta.ID]
	default:
		return false
	}
}

// Count returns the number of explicitly tracked ids: the selected set for
// Some, the exclusion set for All. UI badges for All mode show "all minus n".
func (s *Selection) Count() int {
	switch s.mode {
	case ModeSome:
		return len(s.ids)
	case ModeAll:
		return len(s.excluded)
	default:
		return 0
	}
}

// Resolve materializes the selection into a concrete id list against the
// cache. For a fixed snapshot the result is deterministic: Some follows the
// store's listing order restricted to the selected set, All replays the
// predicate over the listing and subtracts exclusions. Tombstoned rows never
// resolve.
func (s *Selection) Resolve(ctx context.Context, store Lister) ([]string, error) {
	if s.mode == ModeNone {
		return nil, nil
	}

	rows, err := store.List(ctx, s.table, false)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, row := range rows {
		if s.IsSelected(row) {
			ids = append(ids, row.Meta.ID)
		}
	}
	return ids, nil
}

func (s *Selection) matches(row feed.Row) bool {
	if row.Meta.Deleted {
		return false
	}
	if s.predicate != nil && !s.predicate(row) {
		return false
	}
	if s.subFilter != nil && !s.subFilter(row) {
		return false
	}
	return true
}
