package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pricesync/pkg/syncjob"
)

// ErrNoRuns is returned by Latest when the journal is empty.
var ErrNoRuns = errors.New("journal: no runs recorded")

const filePrefix = "run_"

// Writer persists sync run summaries to a directory as JSON files, one per
// run. File names sort chronologically.
type Writer struct {
	dir string
	mu  sync.Mutex
}

// NewWriter constructs a journal writer rooted at dir.
func NewWriter(dir string) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("journal: dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the journal directory.
func (w *Writer) Dir() string { return w.dir }

// RecordResult is a no-op; the journal keeps whole runs only.
func (w *Writer) RecordResult(context.Context, syncjob.SyncResult) error { return nil }

// RecordSummary implements syncjob.Recorder.
func (w *Writer) RecordSummary(_ context.Context, summary *syncjob.SyncSummary) error {
	if summary == nil {
		return nil
	}
	_, err := w.WriteRun(summary)
	return err
}

// WriteRun writes summary to a timestamped JSON file and returns its path.
func (w *Writer) WriteRun(summary *syncjob.SyncSummary) (string, error) {
	if summary == nil {
		return "", fmt.Errorf("journal: nil summary")
	}
	id := summary.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s%s_%s.json", filePrefix, summary.StartedAt.UTC().Format("20060102_150405"), id)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write %s: %w", name, err)
	}
	return path, nil
}

// LastSummary returns the newest run in the journal.
func (w *Writer) LastSummary(context.Context) (*syncjob.SyncSummary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("journal: read dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, ErrNoRuns
	}
	sort.Strings(names)
	data, err := os.ReadFile(filepath.Join(w.dir, names[len(names)-1]))
	if err != nil {
		return nil, fmt.Errorf("journal: read run: %w", err)
	}
	var summary syncjob.SyncSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("journal: decode run: %w", err)
	}
	return &summary, nil
}
