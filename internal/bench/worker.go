package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/congo-pay/cashubench/internal/cashu"
	"github.com/congo-pay/cashubench/internal/metrics"
)

// Worker runs the send and receive loop of one simulated wallet.
type Worker struct {
	Index    int
	Factory  WalletFactory
	MintURL  string
	Unit     cashu.CurrencyUnit
	Duration time.Duration
	Send     SendPolicy
	// RateLimit caps round trips per second. Zero is unthrottled.
	RateLimit float64
	Clock     Clock
	Out       io.Writer
	Logger    *slog.Logger
	Metrics   *metrics.Registry
}

// Run creates the worker's wallet, redeems the starting token into it and
// repeats send then receive until Duration has passed since the first
// iteration. The deadline is only checked between round trips. Any error
// aborts the loop and the count is discarded.
func (w *Worker) Run(ctx context.Context, startingToken string) (uint64, error) {
	wallet, err := w.Factory.NewWallet(w.MintURL, w.Unit)
	if err != nil {
		return 0, errors.Wrap(err, "create wallet")
	}
	if _, err := wallet.Receive(ctx, startingToken, cashu.DefaultSplit); err != nil {
		return 0, errors.Wrap(err, "receive starting token")
	}

	var limiter *rate.Limiter
	if w.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(w.RateLimit), 1)
	}

	fmt.Fprintf(w.Out, "Starting swapping on wallet %d\n", w.Index)

	var count uint64
	start := w.Clock.Now()
	for w.Clock.Since(start) < w.Duration {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return 0, errors.Wrap(err, "wait for rate limiter")
			}
		}

		amount := w.Send.Next()
		began := w.Clock.Now()
		err := roundTrip(ctx, wallet, amount)
		w.Metrics.RoundTrip(w.Clock.Since(began), err)
		if err != nil {
			return 0, errors.Wrapf(err, "round trip %d (amount %d)", count+1, amount)
		}
		count++
	}

	w.Logger.Debug("worker finished", "transactions", count)
	return count, nil
}

func roundTrip(ctx context.Context, wallet Wallet, amount cashu.Amount) error {
	token, err := wallet.Send(ctx, amount, cashu.DefaultSplit)
	if err != nil {
		return errors.Wrap(err, "send")
	}
	if _, err := wallet.Receive(ctx, token.String(), cashu.DefaultSplit); err != nil {
		return errors.Wrap(err, "receive")
	}
	return nil
}
