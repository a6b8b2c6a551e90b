package domain

import (
	"fmt"
	"strings"
	"time"
)

// LogLevel grades a manual execution log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelSuccess LogLevel = "success"
	LogLevelError   LogLevel = "error"
)

func (l LogLevel) String() string { return string(l) }

func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelInfo, LogLevelSuccess, LogLevelError:
		return true
	}
	return false
}

// LogEntry is one timestamped step in a promoted dry-run execution.
// Entries are append-only; the log is cleared only by explicit user action.
type LogEntry struct {
	ID        string
	CronName  string
	Level     LogLevel
	Message   string
	Timestamp time.Time
}

func (e LogEntry) Validate() error {
	if !e.Level.IsValid() {
		return fmt.Errorf("%w: invalid log level %q", ErrValidation, e.Level)
	}
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Errorf("%w: log message is required", ErrValidation)
	}
	return nil
}
