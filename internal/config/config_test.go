package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Symbol:          "SPY",
		Start:           time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Source:          "csv",
		DataDir:         "data",
		Cache:           "memory",
		Advisor:         "none",
		LogLevel:        "info",
		FetchTimeout:    time.Second,
		AdvisoryTimeout: time.Second,
		RateLimit:       1,
	}
}

func TestValidateConfigAcceptsValidConfig(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("expected config to be valid, got %v", err)
	}
}

func TestValidateConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]func(*Config){
		"source":        func(c *Config) { c.Source = "yahoo" },
		"alpaca keys":   func(c *Config) { c.Source = "alpaca" },
		"cache":         func(c *Config) { c.Cache = "redis" },
		"postgres dsn":  func(c *Config) { c.Cache = "postgres" },
		"advisor":       func(c *Config) { c.Advisor = "bard" },
		"log level":     func(c *Config) { c.LogLevel = "loud" },
		"rate":          func(c *Config) { c.RateLimit = 0 },
		"range":         func(c *Config) { c.End = c.Start },
		"negative stop": func(c *Config) { c.StopLossPct = -0.1 },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		if err := validate(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestValidateLeavesWindowsToEngine(t *testing.T) {
	cfg := validConfig()
	cfg.ShortWindow = 0
	cfg.LongWindow = -1
	if err := validate(cfg); err != nil {
		t.Fatalf("windows should not be validated here, got %v", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadArgs([]string{"-source", "csv"})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Symbol != "SPY" || cfg.ShortWindow != 10 || cfg.LongWindow != 30 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.Start.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", cfg.Start)
	}
	if !cfg.End.Equal(today()) {
		t.Fatalf("expected end to default to today, got %v", cfg.End)
	}
	if cfg.Sweep != nil || len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no sweep and no brokers")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	configContents := `{
  "symbol": "qqq",
  "shortWindow": 5,
  "longWindow": 50,
  "source": "csv",
  "llmModel": "config-model",
  "kafkaBrokers": ["a:9092", "b:9092"],
  "llmAPIKey": "config-key"
}`
	if err := os.WriteFile(configPath, []byte(configContents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("SMABT_LONG_WINDOW", "40")
	t.Setenv("LLM_API_KEY", "env-key")

	cfg, err := LoadArgs([]string{
		"--config", configPath,
		"--long-window", "60",
		"--start", "2020-01-01",
		"--end", "2021-01-01",
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Symbol != "QQQ" {
		t.Fatalf("expected symbol from file, got %q", cfg.Symbol)
	}
	if cfg.ShortWindow != 5 {
		t.Fatalf("expected short window from file, got %d", cfg.ShortWindow)
	}
	if cfg.LongWindow != 60 {
		t.Fatalf("expected long window from CLI, got %d", cfg.LongWindow)
	}
	if cfg.LLMModel != "env-model" {
		t.Fatalf("expected LLM model from env, got %q", cfg.LLMModel)
	}
	if cfg.LLMAPIKey.Reveal() != "env-key" {
		t.Fatalf("expected API key from env")
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("expected brokers from file, got %v", cfg.KafkaBrokers)
	}
}

func TestLoadConfigSweepAndDates(t *testing.T) {
	cfg, err := LoadArgs([]string{"-source", "csv", "-sweep", "2:20:2, 20:60:10", "-start", "2021-03-01", "-end", "2021-06-01"})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Sweep == nil || cfg.Sweep.ShortMax != 20 || cfg.Sweep.LongStep != 10 {
		t.Fatalf("unexpected sweep %+v", cfg.Sweep)
	}

	if _, err := LoadArgs([]string{"-source", "csv", "-start", "03/01/2021"}); err == nil {
		t.Fatal("expected bad date error")
	}
	if _, err := LoadArgs([]string{"-source", "csv", "-sweep", "2:20"}); err == nil {
		t.Fatal("expected bad sweep error")
	}
	if _, err := LoadArgs([]string{"-source", "csv", "-no-such-flag"}); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestLoadConfigBadEnvValue(t *testing.T) {
	t.Setenv("SMABT_SHORT_WINDOW", "ten")
	if _, err := LoadArgs([]string{"-source", "csv"}); err == nil || !strings.Contains(err.Error(), "short-window") {
		t.Fatalf("expected short-window error, got %v", err)
	}
}

func TestSplitListTrimsAndDropsEmpty(t *testing.T) {
	cases := map[string][]string{
		"":                     nil,
		" , ":                  nil,
		"a:9092":               {"a:9092"},
		" a:9092 ,, b:9092 , ": {"a:9092", "b:9092"},
	}
	for in, want := range cases {
		got := splitList(in)
		if len(got) != len(want) {
			t.Fatalf("splitList(%q) = %v, want %v", in, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("splitList(%q) = %v, want %v", in, got, want)
			}
		}
	}
}

func TestParseSweep(t *testing.T) {
	r, err := ParseSweep("2:10:2,20:40:10")
	if err != nil {
		t.Fatalf("parse sweep: %v", err)
	}
	if r.ShortMin != 2 || r.ShortMax != 10 || r.ShortStep != 2 || r.LongMin != 20 || r.LongMax != 40 || r.LongStep != 10 {
		t.Fatalf("unexpected range %+v", r)
	}
	if _, err := ParseSweep("2:x:2,20:40:10"); err == nil {
		t.Fatal("expected non-numeric error")
	}
}

func TestSecretsAreRedactedInFormatting(t *testing.T) {
	t.Setenv("APCA_API_KEY_ID", "key-id")
	t.Setenv("APCA_API_SECRET_KEY", "very-secret")
	cfg, err := LoadArgs(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if out := strings.Join([]string{cfg.APIKey.String(), cfg.APISecret.String()}, " "); strings.Contains(out, "very-secret") {
		t.Fatalf("secret leaked: %s", out)
	}
}

func TestSetupLogging(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	var buf bytes.Buffer
	logger := SetupLogging(&buf, "warn", true)
	logger.Info("hidden")
	logger.Warn("shown", "symbol", "SPY")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered: %s", out)
	}
	if !strings.Contains(out, `"symbol":"SPY"`) {
		t.Fatalf("expected JSON output, got %s", out)
	}
}
