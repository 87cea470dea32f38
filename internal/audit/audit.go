// Package audit provides a write-only audit trail of order lifecycle events.
// Unlike a state snapshot meant to be reloaded on the next startup, this
// package only appends: the core carries no local state across restarts, so
// there is nothing to load back. The file exists purely as an
// operator-facing record of what the bot published and observed.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one audit entry. Kind names the event ("submit", "cancel",
// "order_update", "reject", ...); Detail carries whatever the caller wants
// recorded, marshaled as-is.
type Record struct {
	Timestamp int64       `json:"timestamp"`
	Kind      string      `json:"kind"`
	Symbol    string      `json:"symbol,omitempty"`
	Detail    interface{} `json:"detail,omitempty"`
}

// Log appends Records to a single JSONL file, one JSON object per line.
// Writes are serialized and fsync'd, so a record is never torn by a
// concurrent write, but the file itself is never read back by the bot.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if necessary) the audit log at path, appending to any
// existing content.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &Log{file: f}, nil
}

// Append writes one record, stamping Timestamp with the current wall clock.
func (l *Log) Append(kind, symbol string, detail interface{}) error {
	rec := Record{Timestamp: time.Now().UnixNano(), Kind: kind, Symbol: symbol, Detail: detail}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	return l.file.Sync()
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
