package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
)

// DefaultAccountID is the id of the account declared through FEISHU_APP_ID
const DefaultAccountID = "default"

// Config represents application configuration
type Config struct {
	// Accounts are the Feishu apps the relay runs, env account first
	Accounts []AccountConfig

	// Pipeline defaults shared by every account
	Pipeline PipelineConfig

	// Features are the outbound capability toggles
	Features domain.Capabilities

	// Responder configuration (optional)
	Responder ResponderConfig

	// Storage configuration
	Storage StorageConfig

	// API configuration
	API APIConfig

	LogLevel string

	// Debug mode
	Debug bool
}

// PipelineConfig contains the global pipeline knobs
type PipelineConfig struct {
	DebounceWindow   time.Duration
	DedupTTL         time.Duration
	ChunkLimit       int
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RequireMention   bool
	MentionFallback  usecase.MentionFallback
}

// ResponderConfig contains the OpenAI-compatible responder configuration
type ResponderConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	HistoryLimit int
}

// Enabled reports whether a responder is configured
func (c ResponderConfig) Enabled() bool {
	return c.APIKey != ""
}

// StorageConfig contains the local storage locations
type StorageConfig struct {
	DBPath      string
	MediaDir    string
	MediaMaxAge time.Duration
}

// APIConfig contains the local HTTP API configuration
type APIConfig struct {
	Port int
}

// Addr returns the loopback listen address
func (c APIConfig) Addr() string {
	return "127.0.0.1:" + strconv.Itoa(c.Port)
}

// BaseURL returns the URL clients use to reach the API
func (c APIConfig) BaseURL() string {
	return "http://" + c.Addr()
}

// AccountConfig contains the configuration of one Feishu app
type AccountConfig struct {
	ID             string
	AppID          string
	AppSecret      string
	Domain         string
	DebounceWindow time.Duration
	RequireMention *bool
	SessionPrefix  string
	Groups         map[string]GroupConfig
}

// GroupConfig contains per-conversation overrides
type GroupConfig struct {
	RequireMention *bool
}

// Configured reports whether the account has credentials
func (a AccountConfig) Configured() bool {
	return a.AppID != "" && a.AppSecret != ""
}

// RequireMentionFor resolves the mention requirement of a conversation:
// conversation override, then account default, then true.
func (a AccountConfig) RequireMentionFor(chatID string) bool {
	if g, ok := a.Groups[chatID]; ok && g.RequireMention != nil {
		return *g.RequireMention
	}
	if a.RequireMention != nil {
		return *a.RequireMention
	}
	return true
}

// LoadFromEnv loads configuration from environment variables and the
// optional YAML file named by RELAY_CONFIG_PATH.
func LoadFromEnv() (*Config, error) {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".feishu-relay")

	cfg := &Config{
		Pipeline: PipelineConfig{
			DebounceWindow:   envMillis("DEBOUNCE_MS", usecase.DefaultDebounceWindow),
			DedupTTL:         time.Duration(envInt("DEDUP_TTL_SECONDS", 60)) * time.Second,
			ChunkLimit:       envInt("TEXT_CHUNK_LIMIT", usecase.DefaultTextChunkLimit),
			RetryMaxAttempts: envInt("RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:   envMillis("RETRY_BASE_DELAY_MS", time.Second),
			RequireMention:   envBool("REQUIRE_MENTION", true),
			MentionFallback:  usecase.ParseMentionFallback(os.Getenv("MENTION_FALLBACK")),
		},
		Features: domain.Capabilities{
			Markdown:  envBool("FEATURE_MARKDOWN", true),
			Cards:     envBool("FEATURE_CARDS", false),
			Reactions: envBool("FEATURE_REACTIONS", true),
			Typing:    envBool("FEATURE_TYPING", true),
		},
		Responder: ResponderConfig{
			APIKey:       os.Getenv("RESPONDER_API_KEY"),
			BaseURL:      os.Getenv("RESPONDER_BASE_URL"),
			Model:        os.Getenv("RESPONDER_MODEL"),
			HistoryLimit: 20,
		},
		Storage: StorageConfig{
			DBPath:      envString("DB_PATH", filepath.Join(dataDir, "relay.db")),
			MediaDir:    envString("MEDIA_DIR", filepath.Join(dataDir, "media")),
			MediaMaxAge: time.Duration(envInt("MEDIA_MAX_AGE_MINUTES", 60)) * time.Minute,
		},
		API: APIConfig{
			Port: envInt("API_PORT", 9876),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
		Debug:    os.Getenv("DEBUG") == "true",
	}

	file, err := LoadFile(os.Getenv("RELAY_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	if file != nil {
		if file.Responder.SystemPrompt != "" {
			cfg.Responder.SystemPrompt = file.Responder.SystemPrompt
		}
		if file.Responder.HistoryLimit > 0 {
			cfg.Responder.HistoryLimit = file.Responder.HistoryLimit
		}
	}

	// The env account comes first so it keeps the default id
	if appID := os.Getenv("FEISHU_APP_ID"); appID != "" || file == nil || len(file.Accounts) == 0 {
		cfg.Accounts = append(cfg.Accounts, AccountConfig{
			ID:        envString("FEISHU_ACCOUNT_ID", DefaultAccountID),
			AppID:     appID,
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			Domain:    os.Getenv("FEISHU_DOMAIN"),
		})
	}
	if file != nil {
		for _, a := range file.Accounts {
			cfg.Accounts = append(cfg.Accounts, a.toAccountConfig())
		}
	}

	for i := range cfg.Accounts {
		cfg.applyDefaults(&cfg.Accounts[i])
	}
	return cfg, nil
}

func (c *Config) applyDefaults(a *AccountConfig) {
	if a.DebounceWindow <= 0 {
		a.DebounceWindow = c.Pipeline.DebounceWindow
	}
	if a.RequireMention == nil {
		v := c.Pipeline.RequireMention
		a.RequireMention = &v
	}
}

// Account returns the account with the given id
func (c *Config) Account(id string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return AccountConfig{}, false
}

// SenderConfig converts to the outbound sender configuration
func (c *Config) SenderConfig() usecase.SenderConfig {
	return usecase.SenderConfig{
		Capabilities: c.Features,
		ChunkLimit:   c.Pipeline.ChunkLimit,
		Retry: usecase.RetryPolicy{
			MaxAttempts: c.Pipeline.RetryMaxAttempts,
			BaseDelay:   c.Pipeline.RetryBaseDelay,
		},
	}
}

// CacheConfig converts to the cache configuration
func (c *Config) CacheConfig() usecase.CacheConfig {
	cache := usecase.DefaultCacheConfig()
	cache.DedupTTL = c.Pipeline.DedupTTL
	return cache
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return &ConfigError{Field: "accounts", Message: "no account declared"}
	}
	seen := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.ID == "" {
			return &ConfigError{Field: "accounts.id", Message: "required"}
		}
		if seen[a.ID] {
			return &ConfigError{Field: "accounts.id", Message: "duplicate id " + a.ID}
		}
		seen[a.ID] = true
	}
	if c.Pipeline.ChunkLimit <= 0 {
		return &ConfigError{Field: "TEXT_CHUNK_LIMIT", Message: "must be positive"}
	}
	if c.Pipeline.RetryMaxAttempts <= 0 {
		return &ConfigError{Field: "RETRY_MAX_ATTEMPTS", Message: "must be positive"}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
