package api

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// DefaultLogBufferSize bounds the in-memory diagnostic log unless configured
// otherwise.
const DefaultLogBufferSize = 100

// logRecord is the wire shape of one retained log entry.
type logRecord struct {
	Time    int64          `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// LogBuffer is a logrus hook retaining the most recent entries in a bounded
// ring. When full, the oldest entry is dropped. It backs GET /api/logs so the
// last moments before a failure stay inspectable without external log
// shipping.
type LogBuffer struct {
	mu      sync.Mutex
	records []logRecord
	next    int
	full    bool
}

// NewLogBuffer creates a ring buffer hook holding up to size entries; a
// non-positive size falls back to DefaultLogBufferSize.
func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = DefaultLogBufferSize
	}
	return &LogBuffer{records: make([]logRecord, size)}
}

// Levels implements log.Hook; every level is retained.
func (b *LogBuffer) Levels() []log.Level {
	return log.AllLevels
}

// Fire implements log.Hook.
func (b *LogBuffer) Fire(entry *log.Entry) error {
	rec := logRecord{
		Time:    entry.Time.UnixMilli(),
		Level:   entry.Level.String(),
		Message: entry.Message,
	}
	if len(entry.Data) > 0 {
		rec.Fields = make(map[string]any, len(entry.Data))
		for k, v := range entry.Data {
			if err, ok := v.(error); ok {
				rec.Fields[k] = err.Error()
				continue
			}
			rec.Fields[k] = v
		}
	}

	b.mu.Lock()
	b.records[b.next] = rec
	b.next++
	if b.next == len(b.records) {
		b.next = 0
		b.full = true
	}
	b.mu.Unlock()
	return nil
}

// Records returns the retained entries, oldest first.
func (b *LogBuffer) Records() []logRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]logRecord, b.next)
		copy(out, b.records[:b.next])
		return out
	}
	out := make([]logRecord, 0, len(b.records))
	out = append(out, b.records[b.next:]...)
	out = append(out, b.records[:b.next]...)
	return out
}

// Len reports how many entries are currently retained.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.records)
	}
	return b.next
}

var _ log.Hook = (*LogBuffer)(nil)
