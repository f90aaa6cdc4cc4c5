package domain

import "time"

// Priority is the canonical three-value task priority.
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityNormal Priority = "Normal"
	PriorityLow    Priority = "Low Priority"
)

// DefaultCategory is assigned at creation and can never be removed from a room.
const DefaultCategory = "Not Categorized"

// DefaultCategories seeds the category set of a freshly created room.
func DefaultCategories() []string {
	return []string{DefaultCategory, "Coding", "Design", "Research", "Marketing"}
}

var priorityRank = map[Priority]int{
	PriorityUrgent: 0,
	PriorityNormal: 1,
	PriorityLow:    2,
}

// Rank returns the sort rank of the priority: Urgent < Normal < Low Priority.
// Unknown values rank as Normal.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return 1
}

// ParsePriority maps both schema variants onto the canonical labels: the
// canonical strings pass through, the legacy lowercase set ("high", "normal",
// "low") is translated, and anything else falls back to Normal.
func ParsePriority(s string) Priority {
	switch s {
	case string(PriorityUrgent), string(PriorityNormal), string(PriorityLow):
		return Priority(s)
	case "high":
		return PriorityUrgent
	case "low":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Task represents a single item in a room's shared list.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	Category  string    `json:"category"`
	Priority  Priority  `json:"priority"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// Room is a named shared task list. Todos is the canonical, unordered set;
// display order is always computed, never stored beyond Position.
type Room struct {
	ID          string    `json:"id"`
	Todos       []Task    `json:"todos"`
	Categories  []string  `json:"categories"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NextPosition returns max(existing positions)+1, starting at 0 for an empty set.
func NextPosition(tasks []Task) int {
	max := -1
	for _, t := range tasks {
		if t.Position > max {
			max = t.Position
		}
	}
	return max + 1
}
