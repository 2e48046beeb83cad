// Package auditlog is the one process-wide mutable resource every other
// padlock component writes through: a line-oriented, monotonically-growing,
// append-only text file. Each line is a fixed-format record
// `<ISO-8601 UTC timestamp> <level> <subsystem> <message>`. Key material,
// passphrases, and ciphertext must never appear in a message — callers pass
// only structural detail (fingerprints, paths, rule names).
package auditlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// timeFormat is RFC3339 in UTC, matching the record format's ISO-8601 field.
const timeFormat = time.RFC3339

// Logger appends records to a single file, synchronising concurrent writers
// from separate process invocations with an advisory file lock. A bare
// O_APPEND open only protects against torn writes within one process; two
// padlock invocations racing on the same log need the stronger guarantee
// gofrs/flock provides.
type Logger struct {
	Path string
}

// New builds a Logger writing to path. The parent directory is created on
// first write, not here, so constructing a Logger never touches disk.
func New(path string) *Logger {
	return &Logger{Path: path}
}

// Record satisfies every component-local AuditSink interface in padlock. It
// never returns an error: a logging fault must not abort the operation that
// triggered it. Use Append directly when the caller wants to know whether
// the write succeeded.
func (l *Logger) Record(level, subsystem, message string) {
	_ = l.Append(level, subsystem, message)
}

// Append writes one record, acquiring the advisory lock for the duration of
// the write.
func (l *Logger) Append(level, subsystem, message string) error {
	if l == nil || l.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("auditlog: create log dir: %w", err)
	}

	fl := flock.New(l.Path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("auditlog: acquire lock: %w", err)
	}
	defer fl.Unlock()

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("auditlog: open log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s %s %s\n", time.Now().UTC().Format(timeFormat), level, subsystem, sanitize(message))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("auditlog: write log: %w", err)
	}
	return nil
}

// sanitize collapses embedded newlines so a single audit record always
// occupies exactly one line.
func sanitize(message string) string {
	return strings.ReplaceAll(strings.ReplaceAll(message, "\r\n", " "), "\n", " ")
}

// Record is a single parsed audit line.
type Record struct {
	Timestamp time.Time
	Level     string
	Subsystem string
	Message   string
}

// Read parses every record in path, optionally filtering to subsystem when
// non-empty, returning at most the last limit records (all when limit <= 0).
func Read(path, subsystemFilter string, limit int) ([]Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auditlog: open log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			continue // skip malformed lines rather than aborting the read
		}
		if subsystemFilter != "" && r.Subsystem != subsystemFilter {
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auditlog: scan log: %w", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func parseLine(line string) (Record, error) {
	parts := strings.SplitN(line, " ", 4)
	if len(parts) != 4 {
		return Record{}, fmt.Errorf("auditlog: malformed record")
	}
	ts, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return Record{}, fmt.Errorf("auditlog: malformed timestamp: %w", err)
	}
	return Record{Timestamp: ts, Level: parts[1], Subsystem: parts[2], Message: parts[3]}, nil
}
