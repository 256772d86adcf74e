package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/cropcast/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	formatRunsList(&buf, []store.RunSummary{{
		ID:         "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Units:      24,
		Completed:  20,
		Skipped:    4,
		Partial:    true,
	}})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2026-09-01T10:00:00Z")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "true")
}
