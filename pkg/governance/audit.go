package governance

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAuditCap bounds the in-memory audit ring.
const DefaultAuditCap = 1000

// AuditRecord is one post-execution governance entry.
type AuditRecord struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Redactor rewrites a string before it is stored, typically to mask
// secrets.
type Redactor func(string) string

// AuditLog is a bounded in-memory ring of audit records, newest kept.
// A redactor, when set, is applied to string argument values and the
// error text before storage.
type AuditLog struct {
	mu       sync.Mutex
	records  []AuditRecord
	start    int
	count    int
	redactor Redactor
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuditLog returns a ring holding up to capacity records;
// non-positive capacity uses the default.
func NewAuditLog(capacity int, redactor Redactor, logger *slog.Logger) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{
		records:  make([]AuditRecord, capacity),
		redactor: redactor,
		logger:   logger.With("component", "governance_audit"),
		now:      time.Now,
	}
}

// SetClock overrides the log's time source.
func (l *AuditLog) SetClock(now func() time.Time) { l.now = now }

// Record stores one entry, evicting the oldest when full, and returns
// the entry's ID.
func (l *AuditLog) Record(tenantID, tool string, args map[string]any, success bool, errText string) string {
	rec := AuditRecord{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Tool:      tool,
		Arguments: l.redactArgs(args),
		Success:   success,
		Error:     l.redact(errText),
		Timestamp: l.now().UTC(),
	}

	l.mu.Lock()
	idx := (l.start + l.count) % len(l.records)
	l.records[idx] = rec
	if l.count < len(l.records) {
		l.count++
	} else {
		l.start = (l.start + 1) % len(l.records)
	}
	l.mu.Unlock()

	l.logger.Info("tool execution audited",
		"tool", tool,
		"tenant_id", tenantID,
		"success", success)
	return rec.ID
}

// Recent returns up to limit records, newest first. limit <= 0 means
// all retained records.
func (l *AuditLog) Recent(limit int) []AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]AuditRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.start + l.count - 1 - i) % len(l.records)
		out = append(out, l.records[idx])
	}
	return out
}

// Len returns the number of retained records.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *AuditLog) redact(s string) string {
	if l.redactor == nil {
		return s
	}
	return l.redactor(s)
}

func (l *AuditLog) redactArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && l.redactor != nil {
			out[k] = l.redactor(s)
			continue
		}
		out[k] = v
	}
	return out
}
