package bench

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/congo-pay/cashubench/internal/cashu"
	"github.com/congo-pay/cashubench/internal/metrics"
)

// Setup funds the top-level wallet and cuts it into starting tokens. It owns
// the top-level wallet for the whole setup phase.
type Setup struct {
	Wallet  Wallet
	Options Options
	Clock   Clock
	Out     io.Writer
	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Fund mints Options.MintAmount into the top-level wallet. It blocks until
// the quote is paid, ctx is done or Options.QuoteTimeout elapses.
func (s *Setup) Fund(ctx context.Context) (cashu.Amount, error) {
	quote, err := s.Wallet.CreateMintQuote(ctx, s.Options.MintAmount)
	s.Metrics.SetupStep("quote", err)
	if err != nil {
		return 0, errors.Wrap(err, "create mint quote")
	}

	fmt.Fprintf(s.Out, "Pay request: %s\n", quote.Request)
	s.Logger.Info("waiting for mint quote payment", "quote", quote.ID, "amount", quote.Amount)

	poller := &Poller{
		Clock:    s.Clock,
		Interval: s.Options.PollInterval,
		Timeout:  s.Options.QuoteTimeout,
		Out:      s.Out,
	}
	_, err = poller.Wait(ctx, s.Wallet, quote.ID)
	s.Metrics.SetupStep("poll", err)
	if err != nil {
		return 0, errors.Wrap(err, "wait for quote payment")
	}

	minted, err := s.Wallet.Mint(ctx, quote.ID, cashu.DefaultSplit)
	s.Metrics.SetupStep("mint", err)
	if err != nil {
		return 0, errors.Wrapf(err, "mint quote %s", quote.ID)
	}

	fmt.Fprintf(s.Out, "Minted: %d\n", minted)
	s.Logger.Info("minted", "quote", quote.ID, "amount", minted)
	return minted, nil
}

// Distribute sends Options.StartingAmount out of the top-level wallet n
// times, one send after another. Each token is handed to ready, when it is
// not nil, before the next send starts. The first failed send aborts the
// distribution.
func (s *Setup) Distribute(ctx context.Context, n int, ready func(i int, token string)) ([]string, error) {
	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		balance, err := s.Wallet.TotalBalance(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "read top-level balance")
		}
		fmt.Fprintf(s.Out, "Balance: %d\n", balance)

		token, err := s.Wallet.Send(ctx, s.Options.StartingAmount, cashu.DefaultSplit)
		s.Metrics.SetupStep("distribute", err)
		if err != nil {
			return nil, errors.Wrapf(err, "send starting token %d", i)
		}
		s.Logger.Debug("starting token ready", "worker", i, "amount", token.Amount())

		encoded := token.String()
		tokens = append(tokens, encoded)
		if ready != nil {
			ready(i, encoded)
		}
	}
	return tokens, nil
}
