package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/congo-pay/cashubench/internal/bench"
	"github.com/congo-pay/cashubench/internal/cashu"
)

const (
	defaultMintURL         = "https://mint.thesimplekid.dev"
	defaultUnit            = "sat"
	defaultMintAmount      = 100_000
	defaultWalletCount     = 16
	defaultStartingAmount  = 100
	defaultRunDuration     = 60 * time.Second
	defaultPollInterval    = 5 * time.Second
	defaultSendMode        = SendModeRandom
	defaultSendAmount      = 3
	defaultSendMin         = 1
	defaultSendMax         = 20
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	runSecondsEnvVar       = "RUN_SECONDS"
	runDurationEnvVar      = "RUN_DURATION"
	pollSecondsEnvVar      = "POLL_INTERVAL_SECONDS"
	pollDurationEnvVar     = "POLL_INTERVAL"
	quoteTimeoutEnvVar     = "QUOTE_TIMEOUT"
	quoteTimeoutSecsEnvVar = "QUOTE_TIMEOUT_SECONDS"
)

// Send modes accepted by SEND_MODE.
const (
	SendModeRandom = "random"
	SendModeFixed  = "fixed"
)

// Config captures benchmark configuration loaded from environment variables.
type Config struct {
	MintURL        string
	Unit           cashu.CurrencyUnit
	MintAmount     cashu.Amount
	WalletCount    int
	StartingAmount cashu.Amount
	RunDuration    time.Duration
	PollInterval   time.Duration
	QuoteTimeout   time.Duration
	SendMode       string
	SendAmount     cashu.Amount
	SendMin        cashu.Amount
	SendMax        cashu.Amount
	RateLimit      float64
	Seed           []byte
	LogLevel       string
	LogFormat      string
	MetricsAddr    string
	ResultPath     string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		MintURL:     strings.TrimSpace(getEnv("MINT_URL", defaultMintURL)),
		SendMode:    strings.ToLower(getEnv("SEND_MODE", defaultSendMode)),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		ResultPath:  os.Getenv("RESULT_PATH"),
	}

	unit, err := cashu.ParseUnit(getEnv("CURRENCY_UNIT", defaultUnit))
	if err != nil {
		return Config{}, fmt.Errorf("invalid CURRENCY_UNIT: %w", err)
	}
	cfg.Unit = unit

	amounts := []struct {
		key      string
		fallback uint64
		dst      *cashu.Amount
	}{
		{"MINT_AMOUNT", defaultMintAmount, &cfg.MintAmount},
		{"STARTING_AMOUNT", defaultStartingAmount, &cfg.StartingAmount},
		{"SEND_AMOUNT", defaultSendAmount, &cfg.SendAmount},
		{"SEND_MIN", defaultSendMin, &cfg.SendMin},
		{"SEND_MAX", defaultSendMax, &cfg.SendMax},
	}
	for _, a := range amounts {
		v, err := getUint(a.key, a.fallback)
		if err != nil {
			return Config{}, err
		}
		*a.dst = cashu.Amount(v)
	}

	count, err := getUint("WALLET_COUNT", defaultWalletCount)
	if err != nil {
		return Config{}, err
	}
	cfg.WalletCount = int(count)

	if cfg.RunDuration, err = getDuration(runSecondsEnvVar, runDurationEnvVar, defaultRunDuration); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = getDuration(pollSecondsEnvVar, pollDurationEnvVar, defaultPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.QuoteTimeout, err = getDuration(quoteTimeoutSecsEnvVar, quoteTimeoutEnvVar, 0); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = limit
	}

	if v := os.Getenv("SEED"); v != "" {
		seed, err := hex.DecodeString(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SEED: %w", err)
		}
		cfg.Seed = seed
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// optionEnvVars names the variable behind each bench option.
var optionEnvVars = map[string]string{
	"MintURL":        "MINT_URL",
	"WalletCount":    "WALLET_COUNT",
	"StartingAmount": "STARTING_AMOUNT",
	"MintAmount":     "MINT_AMOUNT",
	"Duration":       runDurationEnvVar,
	"PollInterval":   pollDurationEnvVar,
	"QuoteTimeout":   quoteTimeoutEnvVar,
	"RateLimit":      "RATE_LIMIT",
	"Send.Fixed":     "SEND_AMOUNT",
	"Send.Min":       "SEND_MIN",
	"Send.Max":       "SEND_MAX",
}

// BenchOptions converts the configuration into run parameters.
func (c Config) BenchOptions() bench.Options {
	return bench.Options{
		MintURL:        c.MintURL,
		Unit:           c.Unit,
		MintAmount:     c.MintAmount,
		WalletCount:    c.WalletCount,
		StartingAmount: c.StartingAmount,
		Duration:       c.RunDuration,
		PollInterval:   c.PollInterval,
		QuoteTimeout:   c.QuoteTimeout,
		Send: bench.SendPolicy{
			Random: c.SendMode == SendModeRandom,
			Fixed:  c.SendAmount,
			Min:    c.SendMin,
			Max:    c.SendMax,
		},
		RateLimit: c.RateLimit,
	}
}

func (c Config) validate() error {
	if c.SendMode != SendModeRandom && c.SendMode != SendModeFixed {
		return fmt.Errorf("SEND_MODE must be %q or %q, got %q", SendModeRandom, SendModeFixed, c.SendMode)
	}

	err := c.BenchOptions().Validate()
	var invalid *bench.InvalidOptionError
	if errors.As(err, &invalid) {
		if name, ok := optionEnvVars[invalid.Option]; ok {
			return fmt.Errorf("invalid %s: %s", name, invalid.Reason)
		}
	}
	return err
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getDuration prefers the whole-seconds variable and falls back to the
// duration string variable.
func getDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
