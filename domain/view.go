package domain

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortMode selects the primary comparator of a projection.
type SortMode string

const (
	SortByPosition  SortMode = "position"
	SortByName      SortMode = "name"
	SortByPriority  SortMode = "priority"
	SortByCategory  SortMode = "category"
	SortByCompleted SortMode = "completed"
)

// SortDirection flips the primary comparison for the name and priority modes.
// Position sorting is always ascending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// CompletionFilter narrows a projection by completion state.
type CompletionFilter string

const (
	ShowAll       CompletionFilter = "all"
	ShowActive    CompletionFilter = "active"
	ShowCompleted CompletionFilter = "completed"
)

// View describes one filtered, sorted rendering of a room's canonical task set.
// An empty Category means no category filter.
type View struct {
	Category   string           `json:"category,omitempty"`
	Completion CompletionFilter `json:"completion,omitempty"`
	SortBy     SortMode         `json:"sortBy,omitempty"`
	Direction  SortDirection    `json:"direction,omitempty"`
}

// DefaultView shows everything in manual order.
func DefaultView() View {
	return View{Completion: ShowAll, SortBy: SortByPosition, Direction: SortAsc}
}

// Matches reports whether the task passes both filters.
func (v View) Matches(t Task) bool {
	if v.Category != "" && t.Category != v.Category {
		return false
	}
	switch v.Completion {
	case ShowActive:
		return !t.Completed
	case ShowCompleted:
		return t.Completed
	default:
		return true
	}
}

// Project computes the displayable sequence for a view: filter first, then a
// stable sort by the view's comparator chain. The input is never mutated and
// equal-key tasks keep their relative input order.
func Project(tasks []Task, v View) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if v.Matches(t) {
			out = append(out, t)
		}
	}

	var coll *collate.Collator
	compare := func(a, b string) int {
		if coll == nil {
			coll = collate.New(language.English)
		}
		return coll.CompareString(a, b)
	}
	byName := func(a, b Task) int { return compare(a.Text, b.Text) }

	desc := v.Direction == SortDesc

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch v.SortBy {
		case SortByName:
			if c := byName(a, b); c != 0 {
				if desc {
					c = -c
				}
				return c < 0
			}
			return a.Priority.Rank() < b.Priority.Rank()
		case SortByPriority:
			if c := a.Priority.Rank() - b.Priority.Rank(); c != 0 {
				if desc {
					c = -c
				}
				return c < 0
			}
			if a.Completed != b.Completed {
				return !a.Completed
			}
			return byName(a, b) < 0
		case SortByCategory:
			if c := compare(a.Category, b.Category); c != 0 {
				return c < 0
			}
			if c := a.Priority.Rank() - b.Priority.Rank(); c != 0 {
				return c < 0
			}
			return byName(a, b) < 0
		case SortByCompleted:
			if a.Completed != b.Completed {
				return !a.Completed
			}
			if c := a.Priority.Rank() - b.Priority.Rank(); c != 0 {
				return c < 0
			}
			return byName(a, b) < 0
		default: // position, direction ignored
			return lessByPosition(a, b)
		}
	})
	return out
}

// lessByPosition orders positioned tasks by Position ascending; tasks without
// an assigned position (negative) sort after every positioned task and keep
// their relative input order between themselves.
func lessByPosition(a, b Task) bool {
	switch {
	case a.Position >= 0 && b.Position >= 0:
		return a.Position < b.Position
	case a.Position >= 0:
		return true
	default:
		return false
	}
}
