package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/cashubench/internal/bench"
	"github.com/congo-pay/cashubench/internal/cashu"
	"github.com/congo-pay/cashubench/internal/config"
	"github.com/congo-pay/cashubench/internal/logging"
	"github.com/congo-pay/cashubench/internal/metrics"
	"github.com/congo-pay/cashubench/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("run_id", runID)
	reg := metrics.New(runID)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	factory, err := walletFactory(cfg)
	if err != nil {
		logger.Error("build wallet factory", "error", err)
		os.Exit(1)
	}

	// signals cancel setup; once workers run, stop restores the default
	// handling so a signal terminates the process
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := &bench.Scheduler{
		Options:   cfg.BenchOptions(),
		Factory:   factory,
		RunID:     runID,
		Out:       os.Stdout,
		Logger:    logger,
		Metrics:   reg,
		SetupDone: stop,
	}

	res, runErr := scheduler.Run(ctx)
	if res != nil && cfg.ResultPath != "" {
		if err := writeResult(cfg.ResultPath, res); err != nil {
			logger.Error("write result", "path", cfg.ResultPath, "error", err)
			runErr = errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		logger.Error("benchmark failed", "error", runErr)
		os.Exit(1)
	}
}

func walletFactory(cfg config.Config) (bench.WalletFactory, error) {
	f := wallet.NewFactory()
	if cfg.Seed != nil {
		seeds, err := wallet.NewDeterministicSeeds(cfg.Seed)
		if err != nil {
			return nil, err
		}
		f.Seeds = seeds
	}

	return bench.FactoryFunc(func(endpoint string, unit cashu.CurrencyUnit) (bench.Wallet, error) {
		w, err := f.New(endpoint, unit)
		if err != nil {
			return nil, err
		}
		return w, nil
	}), nil
}

func metricsMux(reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func writeResult(path string, res *bench.Result) error {
	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(body, '\n'), 0o644)
}
