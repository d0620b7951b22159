package config

import (
	"strings"
	"testing"
	"time"

	"github.com/congo-pay/cashubench/internal/cashu"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MintURL != "https://mint.thesimplekid.dev" || cfg.Unit != cashu.UnitSat {
		t.Fatalf("unexpected mint defaults %+v", cfg)
	}
	if cfg.MintAmount != 100_000 || cfg.WalletCount != 16 || cfg.StartingAmount != 100 {
		t.Fatalf("unexpected amount defaults %+v", cfg)
	}
	if cfg.RunDuration != 60*time.Second || cfg.PollInterval != 5*time.Second || cfg.QuoteTimeout != 0 {
		t.Fatalf("unexpected duration defaults %+v", cfg)
	}
	if cfg.SendMode != SendModeRandom || cfg.SendMin != 1 || cfg.SendMax != 20 || cfg.SendAmount != 3 {
		t.Fatalf("unexpected send defaults %+v", cfg)
	}
	if cfg.Seed != nil || cfg.MetricsAddr != "" || cfg.ResultPath != "" {
		t.Fatalf("expected optional settings unset %+v", cfg)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MINT_URL", "http://127.0.0.1:8085")
	t.Setenv("CURRENCY_UNIT", "USD")
	t.Setenv("WALLET_COUNT", "4")
	t.Setenv("MINT_AMOUNT", "400")
	t.Setenv("RUN_DURATION", "1500ms")
	t.Setenv("POLL_INTERVAL_SECONDS", "1")
	t.Setenv("QUOTE_TIMEOUT", "2m")
	t.Setenv("SEND_MODE", "fixed")
	t.Setenv("SEND_AMOUNT", "7")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("SEED", "00ff")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Unit != cashu.UnitUSD || cfg.WalletCount != 4 || cfg.MintAmount != 400 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.RunDuration != 1500*time.Millisecond || cfg.PollInterval != time.Second || cfg.QuoteTimeout != 2*time.Minute {
		t.Fatalf("unexpected durations %+v", cfg)
	}
	if cfg.SendMode != SendModeFixed || cfg.SendAmount != 7 || cfg.RateLimit != 2.5 {
		t.Fatalf("unexpected send settings %+v", cfg)
	}
	if len(cfg.Seed) != 2 || cfg.Seed[1] != 0xff {
		t.Fatalf("unexpected seed %x", cfg.Seed)
	}
}

func TestLoad_SecondsWinOverDuration(t *testing.T) {
	t.Setenv("RUN_SECONDS", "5")
	t.Setenv("RUN_DURATION", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RunDuration != 5*time.Second {
		t.Fatalf("expected RUN_SECONDS to win, got %s", cfg.RunDuration)
	}
}

func TestBenchOptions(t *testing.T) {
	t.Setenv("SEND_MODE", "fixed")
	t.Setenv("SEND_AMOUNT", "5")
	t.Setenv("RUN_SECONDS", "2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	opts := cfg.BenchOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("options from valid config rejected: %v", err)
	}
	if opts.Send.Random || opts.Send.Next() != 5 {
		t.Fatalf("expected fixed sends of 5, got %+v", opts.Send)
	}
	if opts.Duration != 2*time.Second || opts.WalletCount != 16 || opts.MintURL != cfg.MintURL {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"zero wallets", map[string]string{"WALLET_COUNT": "0"}, "WALLET_COUNT"},
		{"negative wallets", map[string]string{"WALLET_COUNT": "-1"}, "WALLET_COUNT"},
		{"huge wallet count", map[string]string{"WALLET_COUNT": "18446744073709551615", "STARTING_AMOUNT": "1", "SEND_MAX": "1"}, "WALLET_COUNT"},
		{"wrapping funding", map[string]string{"WALLET_COUNT": "4096", "STARTING_AMOUNT": "4611686018427387904", "MINT_AMOUNT": "4611686018427387904"}, "MINT_AMOUNT"},
		{"unknown unit", map[string]string{"CURRENCY_UNIT": "doge"}, "CURRENCY_UNIT"},
		{"bad duration", map[string]string{"RUN_DURATION": "soon"}, "RUN_DURATION"},
		{"min above max", map[string]string{"SEND_MIN": "30", "SEND_MAX": "10"}, "SEND_MIN"},
		{"send above start", map[string]string{"SEND_MODE": "fixed", "SEND_AMOUNT": "101"}, "SEND_AMOUNT"},
		{"underfunded", map[string]string{"MINT_AMOUNT": "1599"}, "MINT_AMOUNT"},
		{"unknown mode", map[string]string{"SEND_MODE": "burst"}, "SEND_MODE"},
		{"bad seed", map[string]string{"SEED": "xyz"}, "SEED"},
		{"bad rate", map[string]string{"RATE_LIMIT": "fast"}, "RATE_LIMIT"},
		{"negative rate", map[string]string{"RATE_LIMIT": "-1"}, "RATE_LIMIT"},
		{"zero duration", map[string]string{"RUN_SECONDS": "0"}, "RUN_DURATION"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}
