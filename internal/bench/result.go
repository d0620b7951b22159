package bench

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// WorkerResult is what one worker reports back to the scheduler.
type WorkerResult struct {
	Index int    `json:"wallet"`
	Count uint64 `json:"transactions"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Result summarises a run.
type Result struct {
	RunID             string         `json:"run_id,omitempty"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	RunSeconds        int64          `json:"run_seconds"`
	WalletCount       int            `json:"wallet_count"`
	Workers           []WorkerResult `json:"workers"`
	TotalTransactions uint64         `json:"total_transaction_count"`
	AverageTPS        uint64         `json:"avg_tps"`
	Failures          []WorkerResult `json:"failures,omitempty"`
}

// Aggregate combines worker results in any order. Failed workers are listed
// but contribute nothing to the totals. Elapsed time is truncated to whole
// seconds with a floor of one.
func Aggregate(results []WorkerResult, start, end time.Time, duration time.Duration) *Result {
	workers := make([]WorkerResult, len(results))
	copy(workers, results)
	sort.Slice(workers, func(i, j int) bool { return workers[i].Index < workers[j].Index })

	res := &Result{
		StartTime:   start,
		EndTime:     end,
		RunSeconds:  wholeSeconds(duration),
		WalletCount: len(workers),
		Workers:     workers,
	}
	for i := range res.Workers {
		worker := &res.Workers[i]
		if worker.Err != nil {
			worker.Count = 0
			worker.Error = worker.Err.Error()
			res.Failures = append(res.Failures, *worker)
			continue
		}
		res.TotalTransactions += worker.Count
	}
	res.AverageTPS = res.TotalTransactions / uint64(wholeSeconds(end.Sub(start)))
	return res
}

// TPS returns count per whole second of duration.
func TPS(count uint64, duration time.Duration) uint64 {
	return count / uint64(wholeSeconds(duration))
}

func wholeSeconds(d time.Duration) int64 {
	if secs := int64(d / time.Second); secs > 0 {
		return secs
	}
	return 1
}

// WorkerFailures is returned by a run in which at least one worker failed.
type WorkerFailures struct {
	Failures []WorkerResult
	Total    int
}

func (e *WorkerFailures) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("wallet %d: %s", f.Index, f.Error)
	}
	return fmt.Sprintf("%d of %d workers failed: %s", len(e.Failures), e.Total, strings.Join(parts, "; "))
}

// Unwrap exposes the individual worker errors to errors.Is and errors.As.
func (e *WorkerFailures) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
