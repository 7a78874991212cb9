package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MajorPairs are the currency pairs every analysis component understands.
var MajorPairs = []string{"EUR/USD", "GBP/USD", "USD/JPY", "USD/CHF", "AUD/USD", "USD/CAD", "NZD/USD"}

type Config struct {
	ProjectDir   string `json:"project_dir"`
	ResultsDir   string `json:"results_dir"`
	DataDir      string `json:"data_dir"`
	WorkflowsDir string `json:"workflows_dir"`
	ServersDir   string `json:"servers_dir"`
	DBPath       string `json:"db_path"`

	LLMProvider    string  `json:"llm_provider"`
	DeepThinkLLM   string  `json:"deep_think_llm"`
	QuickThinkLLM  string  `json:"quick_think_llm"`
	BackendURL     string  `json:"backend_url"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float32 `json:"temperature"`
	OpenAIAPIKey   string  `json:"openai_api_key"`
	DeepSeekAPIKey string  `json:"deepseek_api_key"`
	ReactMaxStep   int     `json:"react_max_step"`

	// Twelve Data market data
	TwelveDataAPIKey   string   `json:"twelve_data_api_key"`
	TwelveDataBaseURL  string   `json:"twelve_data_base_url"`
	DefaultTimeframe   string   `json:"default_timeframe"`
	MinRequestInterval float64  `json:"min_request_interval"` // seconds
	MaxDailyRequests   int      `json:"max_daily_requests"`
	RateLimitBackoff   float64  `json:"rate_limit_backoff"` // seconds
	SupportedPairs     []string `json:"supported_pairs"`
	MarketDataProvider string   `json:"market_data_provider"` // twelvedata | yahoo

	// Alpha Vantage news and macro indicators
	AlphaVantageAPIKey     string `json:"alpha_vantage_api_key"`
	AlphaVantageBaseURL    string `json:"alpha_vantage_base_url"`
	AlphaVantageDailyLimit int    `json:"alpha_vantage_daily_limit"`

	CacheEnabled  bool `json:"cache_enabled"`
	CacheDuration int  `json:"cache_duration"` // seconds

	LogLevel string `json:"log_level"`
	Debug    bool   `json:"debug"`

	APIAddr         string `json:"api_addr"`
	MetricsAddr     string `json:"metrics_addr"`
	ServerPortStart int    `json:"server_port_start"`
	ServerPortEnd   int    `json:"server_port_end"`

	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`
}

// DefaultConfig returns the defaults rooted at the working directory with
// .env and environment overrides applied.
func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	_ = godotenv.Load()
	cfg.loadFromEnv()
	return cfg
}

// DefaultConfigWithRoot returns the defaults rooted at dir without reading
// the environment.
func DefaultConfigWithRoot(dir string) *Config {
	return &Config{
		ProjectDir:   dir,
		ResultsDir:   filepath.Join(dir, "results"),
		DataDir:      filepath.Join(dir, "data"),
		WorkflowsDir: filepath.Join(dir, "workflows"),
		ServersDir:   filepath.Join(dir, "servers"),
		DBPath:       filepath.Join(dir, "data", "forexcell.db"),

		LLMProvider:   "deepseek",
		DeepThinkLLM:  "deepseek-chat",
		QuickThinkLLM: "deepseek-chat",
		BackendURL:    "https://api.deepseek.com/v1",
		MaxTokens:     4000,
		Temperature:   0.3,
		ReactMaxStep:  20,

		TwelveDataBaseURL:  "https://api.twelvedata.com",
		DefaultTimeframe:   "1h",
		MinRequestInterval: 7.5,
		MaxDailyRequests:   800,
		RateLimitBackoff:   60,
		SupportedPairs:     append([]string(nil), MajorPairs...),
		MarketDataProvider: "twelvedata",

		AlphaVantageBaseURL:    "https://www.alphavantage.co/query",
		AlphaVantageDailyLimit: 25,

		CacheEnabled:  true,
		CacheDuration: 300,

		LogLevel: "info",

		APIAddr:         ":8080",
		MetricsAddr:     "",
		ServerPortStart: 8000,
		ServerPortEnd:   8099,

		EinoDebugPort: 52538,
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("FOREXCELL_WORKFLOWS_DIR"); val != "" {
		c.WorkflowsDir = val
	}
	if val := os.Getenv("FOREXCELL_SERVERS_DIR"); val != "" {
		c.ServersDir = val
	}
	if val := os.Getenv("FOREXCELL_DB_PATH"); val != "" {
		c.DBPath = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("DEEP_THINK_LLM"); val != "" {
		c.DeepThinkLLM = val
	}
	if val := os.Getenv("QUICK_THINK_LLM"); val != "" {
		c.QuickThinkLLM = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxTokens = v
		}
	}
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		if v, err := strconv.ParseFloat(val, 32); err == nil {
			c.Temperature = float32(v)
		}
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}

	if val := os.Getenv("TWELVE_DATA_API_KEY"); val != "" {
		c.TwelveDataAPIKey = val
	}
	if val := os.Getenv("TWELVE_DATA_BASE_URL"); val != "" {
		c.TwelveDataBaseURL = val
	}
	if val := os.Getenv("FOREXCELL_DEFAULT_TIMEFRAME"); val != "" {
		c.DefaultTimeframe = val
	}
	if val := os.Getenv("FOREXCELL_MIN_REQUEST_INTERVAL"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.MinRequestInterval = v
		}
	}
	if val := os.Getenv("FOREXCELL_MAX_DAILY_REQUESTS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxDailyRequests = v
		}
	}
	if val := os.Getenv("FOREXCELL_SUPPORTED_PAIRS"); val != "" {
		var pairs []string
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				if canon, ok := CanonicalPair(p); ok {
					p = canon
				}
				pairs = append(pairs, p)
			}
		}
		if len(pairs) > 0 {
			c.SupportedPairs = pairs
		}
	}
	if val := os.Getenv("FOREXCELL_MARKET_DATA_PROVIDER"); val != "" {
		c.MarketDataProvider = val
	}

	if val := os.Getenv("ALPHA_VANTAGE_API_KEY"); val != "" {
		c.AlphaVantageAPIKey = val
	}
	if val := os.Getenv("ALPHA_VANTAGE_BASE_URL"); val != "" {
		c.AlphaVantageBaseURL = val
	}
	if val := os.Getenv("ALPHA_VANTAGE_DAILY_LIMIT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AlphaVantageDailyLimit = v
		}
	}

	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}
	if val := os.Getenv("CACHE_DURATION"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.CacheDuration = v
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("FOREXCELL_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
	if val := os.Getenv("FOREXCELL_API_ADDR"); val != "" {
		c.APIAddr = val
	}
	if val := os.Getenv("FOREXCELL_METRICS_ADDR"); val != "" {
		c.MetricsAddr = val
	}
	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ResultsDir) == "" || strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("results_dir and data_dir are required")
	}
	if c.ServerPortStart <= 0 || c.ServerPortEnd < c.ServerPortStart {
		return fmt.Errorf("invalid server port range %d-%d", c.ServerPortStart, c.ServerPortEnd)
	}
	if c.CacheEnabled && c.CacheDuration <= 0 {
		return fmt.Errorf("cache_duration must be positive when cache is enabled")
	}
	if c.MinRequestInterval < 0 {
		return fmt.Errorf("min_request_interval must not be negative")
	}
	if c.MaxDailyRequests <= 0 {
		return fmt.Errorf("max_daily_requests must be positive")
	}
	switch c.LLMProvider {
	case "openai", "deepseek", "":
	default:
		return fmt.Errorf("unsupported llm_provider %q", c.LLMProvider)
	}
	return c.validateMarket()
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ResultsDir, c.DataDir, c.WorkflowsDir, c.ServersDir, filepath.Dir(c.DBPath)}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheDuration) * time.Second
}

func (c *Config) RequestInterval() time.Duration {
	return time.Duration(c.MinRequestInterval * float64(time.Second))
}

func (c *Config) RateLimitWait() time.Duration {
	return time.Duration(c.RateLimitBackoff * float64(time.Second))
}

// IsSupportedPair reports whether pair is in SupportedPairs (case-insensitive).
func (c *Config) IsSupportedPair(pair string) bool {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	for _, p := range c.SupportedPairs {
		if strings.EqualFold(p, pair) {
			return true
		}
	}
	return false
}

// ActiveAPIKey returns the key for the configured LLM provider.
func (c *Config) ActiveAPIKey() string {
	if c.LLMProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.DeepSeekAPIKey
}
