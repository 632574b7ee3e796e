package sandbox

import (
	"fmt"
	"testing"
)

func TestLogBuffer_RetainsMostRecentAndCountsDrops(t *testing.T) {
	buf := NewLogBuffer(2000)

	for i := 0; i < 2500; i++ {
		buf.Append("log", fmt.Sprintf("line %d", i))
	}

	entries, dropped := buf.Snapshot()
	if len(entries) != 2000 {
		t.Fatalf("retained = %d, want 2000", len(entries))
	}
	if dropped != 500 {
		t.Fatalf("dropped = %d, want 500", dropped)
	}
	if entries[0].Message != "line 500" {
		t.Errorf("oldest retained = %q, want %q", entries[0].Message, "line 500")
	}
	if entries[1999].Message != "line 2499" {
		t.Errorf("newest retained = %q, want %q", entries[1999].Message, "line 2499")
	}
}

func TestLogBuffer_UnderCapacity(t *testing.T) {
	buf := NewLogBuffer(10)
	buf.Append("warn", "only one")

	entries, dropped := buf.Snapshot()
	if len(entries) != 1 || dropped != 0 {
		t.Fatalf("got %d entries, %d dropped; want 1, 0", len(entries), dropped)
	}
	if entries[0].Level != "warn" || entries[0].Message != "only one" {
		t.Errorf("unexpected entry %+v", entries[0])
	}
}

func TestLogBuffer_DefaultCapacity(t *testing.T) {
	buf := NewLogBuffer(0)
	if got := len(buf.entries); got != DefaultMaxLogLines {
		t.Fatalf("default capacity = %d, want %d", got, DefaultMaxLogLines)
	}
}
