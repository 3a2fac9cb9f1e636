package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Actions recorded by the HTTP layer.
const (
	ActionRegister       = "account.register"
	ActionLogin          = "session.login"
	ActionLogout         = "session.logout"
	ActionRotate         = "session.rotate"
	ActionPasswordChange = "account.password_change"
	ActionProductCreate  = "product.create"
	ActionProductEdit    = "product.edit"
	ActionOrderPlace     = "order.place"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Event struct {
	At      string `json:"at"`
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	Target  string `json:"target,omitempty"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// Recorder is what handlers depend on; a nil *Logger records nothing.
type Recorder interface {
	Record(e Event) error
}

// Logger appends events as JSON lines to a file.
type Logger struct {
	path    string
	mu      sync.Mutex
	nowFunc func() time.Time
}

func NewLogger(path string) *Logger {
	return &Logger{path: path, nowFunc: time.Now}
}

func (l *Logger) Record(e Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	if e.At == "" {
		e.At = l.nowFunc().UTC().Format(time.RFC3339)
	}
	if e.Actor == "" {
		e.Actor = "anonymous"
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir audit log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write audit log entry: %w", err)
	}
	return nil
}

// Outcome maps an operation error to OutcomeSuccess or OutcomeFailure.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
