package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"smabt/internal/backtest"
	"smabt/internal/credential"
)

const dateLayout = "2006-01-02"

type Config struct {
	Symbol      string
	Start       time.Time
	End         time.Time
	ShortWindow int
	LongWindow  int

	Source       string
	DataDir      string
	Feed         string
	FetchTimeout time.Duration
	RateLimit    float64
	APIKey       credential.Secret
	APISecret    credential.Secret

	Cache       string
	CachePath   string
	PostgresDSN string

	JournalPath string
	CSVOut      string
	Tail        int
	Sweep       *backtest.SweepRange

	KafkaBrokers []string
	KafkaTopic   string

	Advisor           string
	Explain           bool
	LLMModel          string
	LLMBaseURL        string
	LLMAPIKey         credential.Secret
	AdvisoryTimeout   time.Duration
	PromptContext     string
	SystemPromptPath  string
	ExplainPromptPath string

	HTTPAddr string
	LogLevel string
	LogJSON  bool

	// Accepted and reported; the engine never enforces them.
	StopLossPct   float64
	TakeProfitPct float64
}

// binding ties a flag to its environment variable and config file key.
type binding struct {
	flag string
	env  string
	key  string
}

var bindings = []binding{
	{"symbol", "SMABT_SYMBOL", "symbol"},
	{"start", "SMABT_START", "start"},
	{"end", "SMABT_END", "end"},
	{"short-window", "SMABT_SHORT_WINDOW", "shortWindow"},
	{"long-window", "SMABT_LONG_WINDOW", "longWindow"},
	{"source", "SMABT_SOURCE", "source"},
	{"data-dir", "SMABT_DATA_DIR", "dataDir"},
	{"feed", "SMABT_FEED", "feed"},
	{"fetch-timeout", "SMABT_FETCH_TIMEOUT", "fetchTimeout"},
	{"rate-limit", "SMABT_RATE_LIMIT", "rateLimit"},
	{"cache", "SMABT_CACHE", "cache"},
	{"cache-path", "SMABT_CACHE_PATH", "cachePath"},
	{"postgres-dsn", "POSTGRES_DSN", "postgresDSN"},
	{"journal", "SMABT_JOURNAL", "journal"},
	{"csv-out", "SMABT_CSV_OUT", "csvOut"},
	{"tail", "SMABT_TAIL", "tail"},
	{"sweep", "SMABT_SWEEP", "sweep"},
	{"kafka-brokers", "KAFKA_BROKERS", "kafkaBrokers"},
	{"kafka-topic", "KAFKA_TOPIC", "kafkaTopic"},
	{"advisor", "LLM_PROVIDER", "advisor"},
	{"explain", "SMABT_EXPLAIN", "explain"},
	{"llm-model", "LLM_MODEL", "llmModel"},
	{"llm-base-url", "LLM_BASE_URL", "llmBaseURL"},
	{"advisory-timeout", "LLM_TIMEOUT", "advisoryTimeout"},
	{"prompt-context", "LLM_PROMPT_CONTEXT", "promptContext"},
	{"system-prompt", "LLM_SYSTEM_PROMPT_PATH", "systemPromptPath"},
	{"explain-prompt", "LLM_EXPLAIN_PROMPT_PATH", "explainPromptPath"},
	{"http-addr", "SMABT_HTTP_ADDR", "httpAddr"},
	{"log-level", "SMABT_LOG_LEVEL", "logLevel"},
	{"log-json", "SMABT_LOG_JSON", "logJSON"},
	{"stop-loss", "SMABT_STOP_LOSS", "stopLoss"},
	{"take-profit", "SMABT_TAKE_PROFIT", "takeProfit"},
}

// Load reads configuration from os.Args. See LoadArgs.
func Load() (Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs resolves configuration with precedence flags > environment >
// config file > defaults. A .env file in the working directory is loaded
// first without overriding variables already set.
func LoadArgs(args []string) (Config, error) {
	var cfg Config
	var start, end, sweep, brokers, configPath string

	if err := loadDotEnv(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	fs := flag.NewFlagSet("smabt", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configPath, "config", "", "path to JSON config file")
	fs.StringVar(&cfg.Symbol, "symbol", "SPY", "ticker symbol")
	fs.StringVar(&start, "start", "2022-01-01", "first date, inclusive (YYYY-MM-DD)")
	fs.StringVar(&end, "end", "", "last date, exclusive (YYYY-MM-DD, default today)")
	fs.IntVar(&cfg.ShortWindow, "short-window", 10, "short moving average window")
	fs.IntVar(&cfg.LongWindow, "long-window", 30, "long moving average window")
	fs.StringVar(&cfg.Source, "source", "alpaca", "price source: alpaca or csv")
	fs.StringVar(&cfg.DataDir, "data-dir", "data", "directory of <SYMBOL>.csv files for the csv source")
	fs.StringVar(&cfg.Feed, "feed", "iex", "alpaca data feed: iex or sip")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", 30*time.Second, "price fetch timeout")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", 3, "alpaca requests per second")
	fs.StringVar(&cfg.Cache, "cache", "memory", "price cache: memory, postgres or none")
	fs.StringVar(&cfg.CachePath, "cache-path", "", "file to persist the memory cache")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", "", "postgres connection string for the postgres cache")
	fs.StringVar(&cfg.JournalPath, "journal", "runs.ndjson", "run log path, empty to disable")
	fs.StringVar(&cfg.CSVOut, "csv-out", "", "write the signal table to this CSV file")
	fs.IntVar(&cfg.Tail, "tail", 10, "rows of the signal table to show")
	fs.StringVar(&sweep, "sweep", "", "window grid shortMin:shortMax:shortStep,longMin:longMax:longStep, e.g. 2:20:2,20:60:10")
	fs.StringVar(&brokers, "kafka-brokers", "", "comma-separated kafka brokers, empty to disable")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", "backtest_runs", "kafka topic for run entries")
	fs.StringVar(&cfg.Advisor, "advisor", "none", "advisory provider: none, ollama or openai")
	fs.BoolVar(&cfg.Explain, "explain", false, "ask the advisory provider to comment on the result")
	fs.StringVar(&cfg.LLMModel, "llm-model", "", "advisory model name")
	fs.StringVar(&cfg.LLMBaseURL, "llm-base-url", "", "advisory provider base URL")
	fs.DurationVar(&cfg.AdvisoryTimeout, "advisory-timeout", 60*time.Second, "advisory request timeout")
	fs.StringVar(&cfg.PromptContext, "prompt-context", "", "extra context appended to the advisory prompt")
	fs.StringVar(&cfg.SystemPromptPath, "system-prompt", "", "override system prompt template file")
	fs.StringVar(&cfg.ExplainPromptPath, "explain-prompt", "", "override explain prompt template file")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.BoolVar(&cfg.LogJSON, "log-json", false, "emit JSON logs")
	fs.Float64Var(&cfg.StopLossPct, "stop-loss", 0, "stop-loss fraction, reported only")
	fs.Float64Var(&cfg.TakeProfitPct, "take-profit", 0, "take-profit fraction, reported only")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})

	file, err := readConfigFile(configPath)
	if err != nil {
		return cfg, err
	}
	for _, b := range bindings {
		if explicit[b.flag] {
			continue
		}
		value, ok := lookup(b.env, b.key, file)
		if !ok {
			continue
		}
		if err := fs.Set(b.flag, value); err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", b.flag, err)
		}
	}

	if v, ok := lookup("APCA_API_KEY_ID", "apiKey", file); ok {
		cfg.APIKey = credential.New(v)
	}
	if v, ok := lookup("APCA_API_SECRET_KEY", "apiSecret", file); ok {
		cfg.APISecret = credential.New(v)
	}
	if v, ok := lookup("LLM_API_KEY", "llmAPIKey", file); ok {
		cfg.LLMAPIKey = credential.New(v)
	}

	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if cfg.Start, err = parseDate(start); err != nil {
		return cfg, fmt.Errorf("invalid start: %w", err)
	}
	if end == "" {
		cfg.End = today()
	} else if cfg.End, err = parseDate(end); err != nil {
		return cfg, fmt.Errorf("invalid end: %w", err)
	}
	if sweep != "" {
		r, err := ParseSweep(sweep)
		if err != nil {
			return cfg, err
		}
		cfg.Sweep = &r
	}
	cfg.KafkaBrokers = splitList(brokers)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func lookup(env, key string, file map[string]any) (string, bool) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		return v, true
	}
	raw, ok := file[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ","), true
	default:
		return fmt.Sprint(v), true
	}
}

func readConfigFile(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, strings.TrimSpace(s))
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseSweep reads "shortMin:shortMax:shortStep,longMin:longMax:longStep".
func ParseSweep(s string) (backtest.SweepRange, error) {
	halves := strings.Split(s, ",")
	if len(halves) != 2 {
		return backtest.SweepRange{}, fmt.Errorf("invalid sweep %q: want short,long ranges", s)
	}
	short, err := parseTriple(halves[0])
	if err != nil {
		return backtest.SweepRange{}, fmt.Errorf("invalid sweep short range: %w", err)
	}
	long, err := parseTriple(halves[1])
	if err != nil {
		return backtest.SweepRange{}, fmt.Errorf("invalid sweep long range: %w", err)
	}
	return backtest.SweepRange{
		ShortMin: short[0], ShortMax: short[1], ShortStep: short[2],
		LongMin: long[0], LongMax: long[1], LongStep: long[2],
	}, nil
}

func parseTriple(s string) ([3]int, error) {
	var out [3]int
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return out, fmt.Errorf("%q: want min:max:step", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return out, fmt.Errorf("%q: %w", s, err)
		}
		out[i] = n
	}
	return out, nil
}

// validate checks operational settings. Window lengths are left to the
// engine, which reports them as invalid input.
func validate(cfg Config) error {
	if cfg.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !cfg.End.After(cfg.Start) {
		return fmt.Errorf("end must be after start")
	}
	switch cfg.Source {
	case "alpaca":
		if cfg.APIKey.IsZero() || cfg.APISecret.IsZero() {
			return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required for the alpaca source")
		}
	case "csv":
		if cfg.DataDir == "" {
			return fmt.Errorf("data-dir is required for the csv source")
		}
	default:
		return fmt.Errorf("invalid source: %s", cfg.Source)
	}
	switch cfg.Cache {
	case "memory", "none":
	case "postgres":
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn is required for the postgres cache")
		}
	default:
		return fmt.Errorf("invalid cache: %s", cfg.Cache)
	}
	switch cfg.Advisor {
	case "none", "ollama", "openai":
	default:
		return fmt.Errorf("invalid advisor: %s", cfg.Advisor)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("fetch-timeout must be > 0")
	}
	if cfg.AdvisoryTimeout <= 0 {
		return fmt.Errorf("advisory-timeout must be > 0")
	}
	if cfg.RateLimit <= 0 {
		return fmt.Errorf("rate-limit must be > 0")
	}
	if cfg.Tail < 0 {
		return fmt.Errorf("tail must be >= 0")
	}
	if cfg.StopLossPct < 0 || cfg.TakeProfitPct < 0 {
		return fmt.Errorf("stop-loss and take-profit must be >= 0")
	}
	return nil
}
