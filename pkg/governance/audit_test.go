package governance

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_RecordAndRecent(t *testing.T) {
	l := NewAuditLog(10, nil, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seq := 0
	l.SetClock(func() time.Time {
		seq++
		return base.Add(time.Duration(seq) * time.Second)
	})

	id1 := l.Record("acme", "shell", map[string]any{"command": "ls"}, true, "")
	id2 := l.Record("acme", "web_fetch", map[string]any{"url": "https://example.com"}, false, "timeout")
	assert.NotEqual(t, id1, id2)

	records := l.Recent(0)
	require.Len(t, records, 2)
	assert.Equal(t, "web_fetch", records[0].Tool)
	assert.Equal(t, "timeout", records[0].Error)
	assert.Equal(t, "shell", records[1].Tool)
	assert.True(t, records[0].Timestamp.After(records[1].Timestamp))

	assert.Len(t, l.Recent(1), 1)
	assert.Equal(t, 2, l.Len())
}

func TestAuditLog_RingEviction(t *testing.T) {
	l := NewAuditLog(3, nil, nil)

	for i := 0; i < 5; i++ {
		l.Record("acme", fmt.Sprintf("tool-%d", i), nil, true, "")
	}

	records := l.Recent(0)
	require.Len(t, records, 3)
	assert.Equal(t, "tool-4", records[0].Tool)
	assert.Equal(t, "tool-2", records[2].Tool)
}

func TestAuditLog_Redactor(t *testing.T) {
	redactor := func(s string) string {
		return strings.ReplaceAll(s, "hunter2", "***")
	}
	l := NewAuditLog(10, redactor, nil)

	l.Record("acme", "shell",
		map[string]any{"command": "login --password hunter2", "retries": 3},
		false, "auth failed for hunter2")

	rec := l.Recent(1)[0]
	assert.Equal(t, "login --password ***", rec.Arguments["command"])
	assert.Equal(t, 3, rec.Arguments["retries"])
	assert.Equal(t, "auth failed for ***", rec.Error)
}

func TestAuditLog_DefaultCapacity(t *testing.T) {
	l := NewAuditLog(0, nil, nil)
	assert.Equal(t, DefaultAuditCap, len(l.records))
}
