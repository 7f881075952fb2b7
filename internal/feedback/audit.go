package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

// auditEntry is a single line of the feedback audit trail.
type auditEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     intent.FeedbackEvent   `json:"event"`
	Outcome   intent.FeedbackOutcome `json:"outcome"`
	Error     string                 `json:"error,omitempty"`
}

// auditLog persists feedback events as append-only JSON lines in a local
// file. Thread-safe for concurrent use.
type auditLog struct {
	mu   sync.Mutex
	path string
}

// newAuditLog creates an auditLog that writes to the given path. The file
// is created on first append if it does not exist.
func newAuditLog(path string) *auditLog {
	return &auditLog{path: path}
}

// append writes one entry to the trail.
func (l *auditLog) append(e auditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("feedback: marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write audit log: %w", err)
	}
	return nil
}
