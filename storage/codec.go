package storage

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"quicktodo-api/domain"
)

// taskRecord is the wire shape of a task inside a room document. Two schema
// variants exist in stored data: string ids with canonical priority labels,
// and integer ids with lowercase labels. Decoding accepts both; encoding
// always writes the canonical variant.
type taskRecord struct {
	ID        any    `json:"id,omitempty"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Category  string `json:"category,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Position  *int   `json:"position,omitempty"`
	CreatedAt any    `json:"createdAt,omitempty"`
}

func encodeTasks(tasks []domain.Task) ([]byte, error) {
	records := make([]taskRecord, len(tasks))
	for i, t := range tasks {
		pos := t.Position
		records[i] = taskRecord{
			ID:        t.ID,
			Text:      t.Text,
			Completed: t.Completed,
			Category:  t.Category,
			Priority:  string(t.Priority),
			Position:  &pos,
		}
		if !t.CreatedAt.IsZero() {
			records[i].CreatedAt = t.CreatedAt.UnixMilli()
		}
	}
	return json.Marshal(records)
}

// decodeTasks normalizes a stored task array into the canonical model. With
// lenient set, missing fields get the documented defaults (synthesized id,
// "Untitled Task", index position) so partially-shaped blobs always load;
// without it, only the variant translation applies and an absent position is
// kept as unassigned (-1).
func decodeTasks(data []byte, lenient bool) ([]domain.Task, error) {
	if len(data) == 0 {
		return []domain.Task{}, nil
	}
	var records []taskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(records))
	for i, r := range records {
		t := domain.Task{
			Text:      r.Text,
			Completed: r.Completed,
			Category:  r.Category,
			Priority:  domain.ParsePriority(r.Priority),
			CreatedAt: decodeTimestamp(r.CreatedAt),
		}
		if t.Category == "" {
			t.Category = domain.DefaultCategory
		}
		switch id := r.ID.(type) {
		case string:
			t.ID = id
		case float64:
			t.ID = strconv.FormatInt(int64(id), 10)
		}
		switch {
		case r.Position != nil:
			t.Position = *r.Position
		case lenient:
			t.Position = i
		default:
			t.Position = -1
		}
		if lenient {
			if t.ID == "" {
				t.ID = strconv.FormatInt(nextTimestamp()+int64(i), 10)
			}
			if t.Text == "" {
				t.Text = "Untitled Task"
			}
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// decodeTimestamp accepts unix milliseconds or an RFC3339 string, the two
// forms task timestamps take across stored documents.
func decodeTimestamp(v any) time.Time {
	switch ts := v.(type) {
	case float64:
		return time.UnixMilli(int64(ts)).UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// tasksEqual is the value equality the store's exact-match array removal uses.
func tasksEqual(a, b domain.Task) bool {
	return a.ID == b.ID &&
		a.Text == b.Text &&
		a.Completed == b.Completed &&
		a.Category == b.Category &&
		a.Priority == b.Priority &&
		a.Position == b.Position &&
		a.CreatedAt.Equal(b.CreatedAt)
}

var lastTimestamp int64

// nextTimestamp returns strictly increasing unix-millisecond values, used to
// synthesize ids for stored tasks that never had one.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}
