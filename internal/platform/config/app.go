package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"spai/internal/domain/prompt"
)

// 存储后端
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string         `json:"log_level"`
	LogFormat string         `json:"log_format"`
	Server    ServerConfig   `json:"server"`
	Store     StoreConfig    `json:"store"`
	Database  DatabaseConfig `json:"database"`
	SQLite    SQLiteConfig   `json:"sqlite"`
	Redis     RedisConfig    `json:"redis"`
	Auth      AuthConfig     `json:"auth"`
	OpenAI    OpenAIConfig   `json:"openai"`
	LLM       LLMConfig      `json:"llm"`
	Session   SessionConfig  `json:"session"`
	Prompts   PromptConfig   `json:"prompts"`
}

type ServerConfig struct {
	Host                   string `json:"host"`
	Port                   int    `json:"port"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `json:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
	MaxBodyBytes           int64  `json:"max_body_bytes"`
}

type StoreConfig struct {
	Backend         string `json:"backend"` // memory | postgres | sqlite | redis
	CacheTTLSeconds int    `json:"cache_ttl_seconds"`
}

type DatabaseConfig struct {
	URL                    string `json:"url"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type LLMConfig struct {
	Provider     string `json:"provider"`
	ChatModel    string `json:"chat_model"`
	SummaryModel string `json:"summary_model"`
}

// SessionConfig 会话缓冲与空闲摘要参数
type SessionConfig struct {
	IdleTimeoutSeconds     int  `json:"idle_timeout_seconds"`
	MinFlushMessages       int  `json:"min_flush_messages"`
	ModelTimeoutSeconds    int  `json:"model_timeout_seconds"`
	FlushTimeoutSeconds    int  `json:"flush_timeout_seconds"`
	JanitorIntervalSeconds int  `json:"janitor_interval_seconds"`
	MaxIdleSeconds         int  `json:"max_idle_seconds"`
	MaxPendingMessages     int  `json:"max_pending_messages"` // 缓冲上限，超出丢最旧
	RecallStoredSummary    bool `json:"recall_stored_summary"`
}

type PromptConfig struct {
	ChatSystem    string `json:"chat_system"`
	SummarySystem string `json:"summary_system"`
	SummaryUser   string `json:"summary_user"`
	Greeting      string `json:"greeting"`
}

// IdleTimeout 返回空闲阈值 T
func (s SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

func (s SessionConfig) ModelTimeout() time.Duration {
	return time.Duration(s.ModelTimeoutSeconds) * time.Second
}

func (s SessionConfig) FlushTimeout() time.Duration {
	return time.Duration(s.FlushTimeoutSeconds) * time.Second
}

func (s SessionConfig) JanitorInterval() time.Duration {
	return time.Duration(s.JanitorIntervalSeconds) * time.Second
}

func (s SessionConfig) MaxIdle() time.Duration {
	return time.Duration(s.MaxIdleSeconds) * time.Second
}

// Default 返回默认配置。
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8000,
			ReadTimeoutSeconds:     30,
			WriteTimeoutSeconds:    180,
			ShutdownTimeoutSeconds: 15,
			MaxBodyBytes:           1 << 20,
		},
		Store: StoreConfig{
			Backend:         StoreMemory,
			CacheTTLSeconds: 1800,
		},
		Database: DatabaseConfig{
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeSeconds: 300,
		},
		SQLite: SQLiteConfig{
			Path: "./data/spai.db",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			ChatModel: "gpt-4o-mini",
		},
		Session: SessionConfig{
			IdleTimeoutSeconds:     30,
			MinFlushMessages:       2,
			ModelTimeoutSeconds:    60,
			FlushTimeoutSeconds:    90,
			JanitorIntervalSeconds: 300,
			MaxIdleSeconds:         3600,
			MaxPendingMessages:     200,
		},
		Prompts: PromptConfig{
			ChatSystem:    prompt.DefaultChatSystem,
			SummarySystem: prompt.DefaultSummarySystem,
			SummaryUser:   prompt.DefaultSummaryUser,
			Greeting:      prompt.DefaultGreeting,
		},
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	// .env 非必需
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)
	applyInt("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeoutSeconds)
	applyInt64("SERVER_MAX_BODY_BYTES", &c.Server.MaxBodyBytes)

	applyString("STORE_BACKEND", &c.Store.Backend)
	applyInt("SUMMARY_CACHE_TTL", &c.Store.CacheTTLSeconds)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)

	applyString("SQLITE_PATH", &c.SQLite.Path)
	applyString("REDIS_URL", &c.Redis.URL)

	applyString("JWT_SECRET", &c.Auth.JWTSecret)
	applyString("JWT_ISSUER", &c.Auth.JWTIssuer)

	applyString("OPENAI_API_KEY", &c.OpenAI.APIKey)
	applyString("OPENAI_BASE_URL", &c.OpenAI.BaseURL)

	applyString("LLM_PROVIDER", &c.LLM.Provider)
	applyString("CHAT_MODEL", &c.LLM.ChatModel)
	applyString("SUMMARY_MODEL", &c.LLM.SummaryModel)

	applyInt("SESSION_IDLE_TIMEOUT", &c.Session.IdleTimeoutSeconds)
	applyInt("SESSION_MIN_FLUSH_MESSAGES", &c.Session.MinFlushMessages)
	applyInt("SESSION_MODEL_TIMEOUT", &c.Session.ModelTimeoutSeconds)
	applyInt("SESSION_FLUSH_TIMEOUT", &c.Session.FlushTimeoutSeconds)
	applyInt("SESSION_JANITOR_INTERVAL", &c.Session.JanitorIntervalSeconds)
	applyInt("SESSION_MAX_IDLE", &c.Session.MaxIdleSeconds)
	applyInt("SESSION_MAX_PENDING_MESSAGES", &c.Session.MaxPendingMessages)
	applyBool("SESSION_RECALL_STORED_SUMMARY", &c.Session.RecallStoredSummary)

	applyString("CHAT_SYSTEM_PROMPT", &c.Prompts.ChatSystem)
	applyString("SUMMARY_SYSTEM_PROMPT", &c.Prompts.SummarySystem)
	applyString("SUMMARY_USER_TEMPLATE", &c.Prompts.SummaryUser)
	applyString("GREETING", &c.Prompts.Greeting)
}

func (c *AppConfig) normalize() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreMemory
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.SummaryModel == "" {
		c.LLM.SummaryModel = c.LLM.ChatModel
	}
	if c.Prompts.Greeting == "" {
		c.Prompts.Greeting = prompt.DefaultGreeting
	}
}

func (c *AppConfig) validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=postgres")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return fmt.Errorf("SQLITE_PATH is required for STORE_BACKEND=sqlite")
		}
	case StoreRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			return fmt.Errorf("REDIS_URL is required for STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Session.IdleTimeoutSeconds <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be > 0")
	}
	if c.Session.MinFlushMessages < 2 {
		return fmt.Errorf("SESSION_MIN_FLUSH_MESSAGES must be >= 2")
	}
	if c.Session.ModelTimeoutSeconds <= 0 || c.Session.FlushTimeoutSeconds <= 0 {
		return fmt.Errorf("SESSION_MODEL_TIMEOUT and SESSION_FLUSH_TIMEOUT must be > 0")
	}
	if c.Session.MaxPendingMessages != 0 && c.Session.MaxPendingMessages < c.Session.MinFlushMessages {
		return fmt.Errorf("SESSION_MAX_PENDING_MESSAGES must be 0 (unlimited) or >= SESSION_MIN_FLUSH_MESSAGES")
	}
	// 排在 flush 后面的请求最坏要等 flush + 直接回复两段超时
	if worst := c.Session.FlushTimeoutSeconds + c.Session.ModelTimeoutSeconds; c.Server.WriteTimeoutSeconds > 0 && c.Server.WriteTimeoutSeconds < worst {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%ds) must be 0 or >= SESSION_FLUSH_TIMEOUT + SESSION_MODEL_TIMEOUT (%ds)",
			c.Server.WriteTimeoutSeconds, worst)
	}

	if !prompt.HasSlot(c.Prompts.SummaryUser, prompt.SlotCurrentLogs) {
		return fmt.Errorf("SUMMARY_USER_TEMPLATE must contain {%s}", prompt.SlotCurrentLogs)
	}
	for _, slot := range prompt.Slots(c.Prompts.SummaryUser) {
		if slot != prompt.SlotCurrentLogs && slot != prompt.SlotPastQuestions {
			return fmt.Errorf("SUMMARY_USER_TEMPLATE has unknown slot {%s}", slot)
		}
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*target = n
		}
	}
}

func applyInt64(key string, target *int64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*target = n
		}
	}
}

func applyBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*target = b
		}
	}
}
