// Package history appends evaluation outcomes to a JSONL log and reads
// them back for reporting.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/timvw/vibecheck/internal/model"
)

// Record is one evaluation outcome in the history log.
type Record struct {
	Provider      string        `json:"provider"`
	Model         string        `json:"model,omitempty"`
	Specification string        `json:"specification"`
	Artifact      string        `json:"artifact,omitempty"`
	Verdict       model.Verdict `json:"verdict"`
	Confidence    float64       `json:"confidence"`
	Passed        bool          `json:"passed"`
	TS            time.Time     `json:"ts"`
	DurationMs    int64         `json:"duration_ms,omitempty"`
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.Provider) == "" {
		return fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(r.Specification) == "" {
		return fmt.Errorf("specification is required")
	}
	if r.Verdict != model.VerdictYes && r.Verdict != model.VerdictNo {
		return fmt.Errorf("invalid verdict %q", r.Verdict)
	}
	if r.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// RecordOf builds a Record from a finished evaluation.
func RecordOf(req model.EvaluationRequest, result *model.EvaluationResult, passed bool) Record {
	return Record{
		Provider:      result.Provider,
		Model:         result.Model,
		Specification: req.Specification,
		Artifact:      req.ImagePath,
		Verdict:       result.Verdict,
		Confidence:    result.Confidence,
		Passed:        passed,
		TS:            result.EvaluatedAt,
		DurationMs:    result.DurationMs,
	}
}

// Log is an append-only JSONL file of evaluation records.
type Log struct {
	mu   sync.Mutex
	path string
}

func Open(path string) *Log {
	return &Log{path: path}
}

func (l *Log) Path() string {
	return l.path
}

// Append validates and writes one record as a JSON line. The log file
// and its directory are created on first write.
func (l *Log) Append(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	line, err := json.Marshal(r)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write history log: %w", err)
	}
	return nil
}

// Tail returns the last n records, oldest first. n <= 0 returns all.
// Malformed or invalid lines are skipped. A missing file is empty, not
// an error.
func (l *Log) Tail(n int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			continue
		}
		if err := r.Validate(); err != nil {
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history log: %w", err)
	}

	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}
