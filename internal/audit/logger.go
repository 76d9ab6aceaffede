package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenerationEntry is one line of the bulk generation audit log.
type GenerationEntry struct {
	Timestamp     time.Time     `json:"timestamp"`
	SessionID     string        `json:"session_id,omitempty"`
	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	PromptLength  int           `json:"prompt_length"`
	Target        int           `json:"target"`
	Matched       int           `json:"matched"`
	Duration      time.Duration `json:"duration_ns"`
	LatencyMs     int64         `json:"latency_ms"`
	Error         string        `json:"error,omitempty"`
	CorrelationID string        `json:"correlation_id"`
}

type Logger struct {
	writer io.Writer
	mu     sync.Mutex
	now    func() time.Time
}

func NewLogger(w io.Writer) *Logger {
	return &Logger{writer: w, now: time.Now}
}

// NewFileLogger appends JSON lines to path and mirrors them to stdout.
func NewFileLogger(path string) (*Logger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	cleanPath := filepath.Clean(path)
	f, err := os.OpenFile(cleanPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is from application config
	if err != nil {
		return nil, err
	}
	return NewLogger(io.MultiWriter(os.Stdout, f)), nil
}

func (l *Logger) Log(entry GenerationEntry) {
	entry.Timestamp = l.now()
	entry.LatencyMs = entry.Duration.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write generation audit entry", "error", err)
	}
}
