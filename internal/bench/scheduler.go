package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/congo-pay/cashubench/internal/logging"
	"github.com/congo-pay/cashubench/internal/metrics"
)

// Scheduler runs the setup phase, launches one worker per starting token and
// aggregates what they report.
type Scheduler struct {
	Options Options
	Factory WalletFactory
	RunID   string
	Clock   Clock
	Out     io.Writer
	Logger  *slog.Logger
	Metrics *metrics.Registry

	// SetupDone, if set, is called once every worker has been launched and
	// before their results are awaited. The run's ctx may be cancelled from
	// here on without affecting the workers.
	SetupDone func()
}

// Run executes a complete benchmark. Setup failures abort the run and return
// no result. Worker failures do not stop the other workers: the run finishes,
// the totals cover only the workers that succeeded and the returned error is
// a *WorkerFailures alongside the result.
//
// Cancelling ctx interrupts setup only. Launched workers always run to their
// deadline on a context detached from ctx.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	s.defaults()
	opts := s.Options
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}

	s.Logger.Info("starting benchmark",
		"mint", opts.MintURL,
		"unit", opts.Unit,
		"wallets", opts.WalletCount,
		"duration", opts.Duration,
	)

	top, err := s.Factory.NewWallet(opts.MintURL, opts.Unit)
	if err != nil {
		return nil, errors.Wrap(err, "create top-level wallet")
	}
	setup := &Setup{
		Wallet:  top,
		Options: opts,
		Clock:   s.Clock,
		Out:     s.Out,
		Logger:  s.Logger,
		Metrics: s.Metrics,
	}
	if _, err := setup.Fund(ctx); err != nil {
		return nil, errors.Wrap(err, "fund top-level wallet")
	}

	workerCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()

	resCh := make(chan WorkerResult, opts.WalletCount)
	launched := 0
	start := s.Clock.Now()

	_, err = setup.Distribute(ctx, opts.WalletCount, func(i int, token string) {
		fmt.Fprintf(s.Out, "Starting wallet %d\n", i)
		launched++

		worker := s.worker(i)
		go func() {
			s.Metrics.WorkerStarted()
			count, err := worker.Run(workerCtx, token)
			s.Metrics.WorkerStopped(err)
			resCh <- WorkerResult{Index: i, Count: count, Err: err}
		}()
	})
	if err != nil {
		s.Logger.Error("distribution failed, abandoning launched workers", "launched", launched, "error", err)
		return nil, errors.Wrap(err, "distribute starting tokens")
	}
	if s.SetupDone != nil {
		s.SetupDone()
	}

	results := make([]WorkerResult, 0, launched)
	for len(results) < launched {
		res := <-resCh
		if res.Err != nil {
			fmt.Fprintf(s.Out, "Wallet %d failed: %v\n", res.Index, res.Err)
			s.Logger.Error("worker failed", "worker", res.Index, "error", res.Err)
		} else {
			fmt.Fprintf(s.Out, "Wallet %d completed %d transaction\n", res.Index, res.Count)
			fmt.Fprintf(s.Out, "tps: %d\n", TPS(res.Count, opts.Duration))
		}
		results = append(results, res)
	}
	end := s.Clock.Now()

	result := Aggregate(results, start, end, opts.Duration)
	result.RunID = s.RunID

	fmt.Fprintf(s.Out, "Total transaction: %d\n", result.TotalTransactions)
	fmt.Fprintf(s.Out, "avg tps: %d\n", result.AverageTPS)
	s.Logger.Info("benchmark finished",
		"transactions", result.TotalTransactions,
		"avg_tps", result.AverageTPS,
		"failed_workers", len(result.Failures),
	)

	if len(result.Failures) > 0 {
		return result, &WorkerFailures{Failures: result.Failures, Total: len(results)}
	}
	return result, nil
}

func (s *Scheduler) worker(i int) *Worker {
	return &Worker{
		Index:     i,
		Factory:   s.Factory,
		MintURL:   s.Options.MintURL,
		Unit:      s.Options.Unit,
		Duration:  s.Options.Duration,
		Send:      s.Options.Send,
		RateLimit: s.Options.RateLimit,
		Clock:     s.Clock,
		Out:       s.Out,
		Logger:    s.Logger.With("worker", i),
		Metrics:   s.Metrics,
	}
}

func (s *Scheduler) defaults() {
	if s.Clock == nil {
		s.Clock = RealClock{}
	}
	if s.Out == nil {
		s.Out = os.Stdout
	}
	if _, ok := s.Out.(*syncWriter); !ok {
		s.Out = &syncWriter{w: s.Out}
	}
	if s.Logger == nil {
		s.Logger = logging.Discard()
	}
}

// syncWriter serialises report lines written by concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}
