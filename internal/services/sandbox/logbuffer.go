package sandbox

import (
	"sync"
	"time"
)

const DefaultMaxLogLines = 2000

// CapturedLog is one console line emitted by a sandboxed program.
type CapturedLog struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogBuffer is a bounded ring of console output. When full, the oldest entry
// is dropped and the drop counter keeps the total honest.
type LogBuffer struct {
	mu      sync.Mutex
	entries []CapturedLog
	start   int
	size    int
	dropped int
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultMaxLogLines
	}
	return &LogBuffer{
		entries: make([]CapturedLog, capacity),
	}
}

func (b *LogBuffer) Append(level, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.start + b.size) % len(b.entries)
	b.entries[idx] = CapturedLog{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
	if b.size < len(b.entries) {
		b.size++
		return
	}
	b.start = (b.start + 1) % len(b.entries)
	b.dropped++
}

// Snapshot returns the retained entries oldest-first plus the drop count.
func (b *LogBuffer) Snapshot() ([]CapturedLog, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]CapturedLog, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.entries[(b.start+i)%len(b.entries)]
	}
	return out, b.dropped
}

func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}
