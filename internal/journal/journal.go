package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"smabt/internal/backtest"
)

const (
	ResultOK      = "ok"
	ResultEmpty   = "empty"
	ResultInvalid = "invalid"
	ResultError   = "error"
)

// Entry is one backtest run as written to the run log.
type Entry struct {
	RunID       string            `json:"run_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Symbol      string            `json:"symbol"`
	Start       string            `json:"start"`
	End         string            `json:"end"`
	ShortWindow int               `json:"short_window"`
	LongWindow  int               `json:"long_window"`
	Metrics     *backtest.Metrics `json:"metrics,omitempty"`
	Exposure    float64           `json:"exposure,omitempty"`
	Entries     int               `json:"entries,omitempty"`
	Result      string            `json:"result"`
	Error       string            `json:"error,omitempty"`
}

// Logger appends entries to a newline-delimited JSON file.
type Logger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewLogger(path string, runID string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Logger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Append stamps the entry with the logger's run id when it has none and
// flushes it to disk.
func (l *Logger) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.RunID == "" {
		entry.RunID = l.runID
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if _, err := l.writer.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

// Read decodes every entry in an NDJSON run log.
func Read(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
