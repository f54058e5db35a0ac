package syncjob

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pricesync/pkg/fallback"
	"pricesync/pkg/market"
)

// Mode names the kind of run that produced a summary.
type Mode string

const (
	ModeSymbols     Mode = "symbols"
	ModeIncremental Mode = "incremental"
	ModeYearsBack   Mode = "years_back"
	ModeReseed      Mode = "reseed"
	ModeScheduled   Mode = "scheduled"
)

// Error kinds reported in SyncResult beyond the provider taxonomy.
const (
	KindExhausted = "ExhaustedProviders"
	KindStorage   = "Storage"
	KindCancelled = "Cancelled"
	KindInternal  = "Internal"
	KindNoData    = "NoData"
)

// SyncResult is the outcome for one symbol.
type SyncResult struct {
	Symbol         string    `json:"symbol"`
	RecordsWritten int       `json:"recordsWritten"`
	RangeStart     time.Time `json:"rangeStart"`
	RangeEnd       time.Time `json:"rangeEnd"`
	UpToDate       bool      `json:"upToDate,omitempty"`
	Skipped        bool      `json:"skipped,omitempty"`
	ErrorKind      string    `json:"errorKind,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// Failed reports whether the symbol ended in error.
func (r SyncResult) Failed() bool { return r.ErrorKind != "" }

// SyncSummary aggregates one invocation of the job.
type SyncSummary struct {
	RunID        string       `json:"runId"`
	Mode         Mode         `json:"mode"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
	Results      []SyncResult `json:"results"`
	Successes    int          `json:"successes"`
	Failures     int          `json:"failures"`
	Skipped      int          `json:"skipped"`
	TotalRecords int          `json:"totalRecords"`
	Cancelled    bool         `json:"cancelled,omitempty"`
	NotStarted   []string     `json:"notStarted,omitempty"`
}

func newSummary(mode Mode, now time.Time) *SyncSummary {
	return &SyncSummary{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: now,
		Results:   []SyncResult{},
	}
}

func (s *SyncSummary) add(r SyncResult) {
	s.Results = append(s.Results, r)
	switch {
	case r.Failed():
		s.Failures++
	case r.Skipped:
		s.Skipped++
	default:
		s.Successes++
		s.TotalRecords += r.RecordsWritten
	}
}

// Failed returns the failed results.
func (s *SyncSummary) Failed() []SyncResult {
	var out []SyncResult
	for _, r := range s.Results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// failure converts err into a SyncResult. Messages never include payloads:
// provider errors are already truncated at the adapter.
func failure(symbol string, err error) SyncResult {
	return SyncResult{Symbol: symbol, ErrorKind: errorKind(err), Message: err.Error()}
}

func errorKind(err error) string {
	var exhausted *fallback.ExhaustedProvidersError
	var perr *market.Error
	var serr *storageError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrNoData):
		return KindNoData
	case errors.As(err, &exhausted):
		return KindExhausted
	case errors.As(err, &perr):
		return perr.Kind.String()
	case errors.As(err, &serr):
		return KindStorage
	default:
		return KindInternal
	}
}

// storageError marks failures raised by the store rather than providers.
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string { return "syncjob: " + e.op + ": " + e.err.Error() }
func (e *storageError) Unwrap() error { return e.err }
