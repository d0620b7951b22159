package bench

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/congo-pay/cashubench/internal/cashu"
)

// ErrQuoteTimeout is returned when a quote is still unpaid after the
// poller's timeout.
var ErrQuoteTimeout = errors.New("timed out waiting for mint quote payment")

// Poller waits for a mint quote to be paid.
type Poller struct {
	Clock    Clock
	Interval time.Duration
	// Timeout of zero waits until the quote is paid or ctx is done.
	Timeout time.Duration
	Out     io.Writer
}

// Wait queries the quote every Interval and returns it once it is paid. Each
// unpaid state is written to Out.
func (p *Poller) Wait(ctx context.Context, w Wallet, quoteID string) (cashu.MintQuote, error) {
	var deadline <-chan time.Time
	if p.Timeout > 0 {
		deadline = p.Clock.After(p.Timeout)
	}

	for {
		quote, err := w.MintQuoteState(ctx, quoteID)
		if err != nil {
			return cashu.MintQuote{}, errors.Wrapf(err, "check state of quote %s", quoteID)
		}
		if quote.State.Paid() {
			return quote, nil
		}

		fmt.Fprintf(p.Out, "Quote state: %s\n", quote.State)

		select {
		case <-ctx.Done():
			return cashu.MintQuote{}, ctx.Err()
		case <-deadline:
			return cashu.MintQuote{}, errors.Wrapf(ErrQuoteTimeout, "quote %s after %s", quoteID, p.Timeout)
		case <-p.Clock.After(p.Interval):
		}
	}
}
