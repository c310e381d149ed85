package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	MCP        MCPConfig
	Paths      PathsConfig
	Database   DatabaseConfig
	Log        LogConfig
	WorkerPool WorkerPoolConfig
	Security   SecurityConfig
	Providers  ProvidersConfig
	Dispatch   DispatchConfig
	Events     EventsConfig
	AI         AIConfig
	Monitor    MonitorConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	BaseUrl            string
	CorsAllowedOrigins []string
	ServerID           string
	BodyLimit          int
}

type MCPConfig struct {
	Port string
	Host string
}

type PathsConfig struct {
	BaseDir  string
	Statics  string
	Media    string
	Storages string
	Logs     string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB Name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type LogConfig struct {
	Level      string
	Format     string // text | json
	Output     string // stdout | file | both
	FileName   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type SecurityConfig struct {
	SecretKey       string
	RevokedTokenTTL time.Duration
}

// ProvidersConfig is the process-wide fallback used by the credential resolver
// when a channel carries neither an explicit nor a legacy value.
type ProvidersConfig struct {
	Official OfficialConfig
	Bridge   BridgeConfig
}

type OfficialConfig struct {
	GraphBaseURL  string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	WabaID        string
	VerifyToken   string
	AppSecret     string
}

type BridgeConfig struct {
	ServerURL      string
	APIKey         string
	InlineMaxBytes int64
	InlineMaxEdge  int
}

type DispatchConfig struct {
	CountryCode       string
	BridgeDailyLimit  int
	BridgeDelayMin    time.Duration
	BridgeDelayMax    time.Duration
	OfficialDelayMin  time.Duration
	OfficialDelayMax  time.Duration
	ExtraJitterMax    time.Duration
	InboundDedupTTL   time.Duration
	MediaLookupBudget time.Duration
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
	Source   string
}

type MonitorConfig struct {
	BufferSize int
	TTL        time.Duration // 0 keeps every buffered event visible
}

type AIConfig struct {
	Provider     string // openai | gemini | "" (disabled)
	Model        string
	SystemPrompt string
	OpenAIKey    string
	GeminiKey    string
}

// Global provides access to the loaded configuration globally
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	debug := false
	if v := os.Getenv("APP_DEBUG"); v == "true" || v == "1" || v == "on" {
		debug = true
	} else if v := os.Getenv("DEBUG"); v == "true" || v == "1" {
		debug = true
	}

	var basicAuth []string
	if v := os.Getenv("APP_BASIC_AUTH"); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	if v := os.Getenv("APP_CORS_ALLOWED_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.4.2",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              debug,
		Environment:        getEnv("APP_ENV", "development"),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		BaseUrl:            strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("SERVER_ID", ""),
		BodyLimit:          getEnvInt("APP_BODY_LIMIT", 64*1024*1024),
	}
	if v := os.Getenv("APP_TRUSTED_PROXIES"); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	statics := getEnv("PATH_STATICS", "statics")
	pathsCfg := PathsConfig{
		BaseDir:  baseDir,
		Statics:  statics,
		Media:    getEnv("PATH_MEDIA", filepath.Join(statics, "media")),
		Storages: baseDir,
		Logs:     getEnv("PATH_LOGS", "logs"),
	}

	dbCfg := DatabaseConfig{
		Driver:          getEnv("DB_DRIVER", "sqlite"),
		Name:            getEnv("DB_NAME", filepath.Join(pathsCfg.Storages, "relay.db")),
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", ""),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azrelay:"),
	}

	logCfg := LogConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "text"),
		Output:     getEnv("LOG_OUTPUT", "stdout"),
		FileName:   getEnv("LOG_FILE", filepath.Join(pathsCfg.Logs, "relay.log")),
		MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 7),
		MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		Compress:   getEnvBool("LOG_COMPRESS", true),
	}
	if debug {
		logCfg.Level = "debug"
	}

	providersCfg := ProvidersConfig{
		Official: OfficialConfig{
			GraphBaseURL:  strings.TrimRight(getEnv("OFFICIAL_GRAPH_URL", "https://graph.facebook.com"), "/"),
			APIVersion:    getEnv("OFFICIAL_API_VERSION", "v21.0"),
			PhoneNumberID: getEnv("OFFICIAL_PHONE_NUMBER_ID", ""),
			AccessToken:   getEnv("OFFICIAL_ACCESS_TOKEN", ""),
			WabaID:        getEnv("OFFICIAL_WABA_ID", ""),
			VerifyToken:   getEnv("OFFICIAL_VERIFY_TOKEN", ""),
			AppSecret:     getEnv("OFFICIAL_APP_SECRET", ""),
		},
		Bridge: BridgeConfig{
			ServerURL:      strings.TrimRight(getEnv("BRIDGE_SERVER_URL", ""), "/"),
			APIKey:         getEnv("BRIDGE_API_KEY", ""),
			InlineMaxBytes: getEnvInt64("BRIDGE_INLINE_MAX_BYTES", 16*1024*1024),
			InlineMaxEdge:  getEnvInt("BRIDGE_INLINE_MAX_EDGE", 1600),
		},
	}

	dispatchCfg := DispatchConfig{
		CountryCode:       getEnv("DISPATCH_COUNTRY_CODE", "55"),
		BridgeDailyLimit:  getEnvInt("DISPATCH_BRIDGE_DAILY_LIMIT", 200),
		BridgeDelayMin:    getEnvDuration("DISPATCH_BRIDGE_DELAY_MIN", 15*time.Second),
		BridgeDelayMax:    getEnvDuration("DISPATCH_BRIDGE_DELAY_MAX", 45*time.Second),
		OfficialDelayMin:  getEnvDuration("DISPATCH_OFFICIAL_DELAY_MIN", 45*time.Second),
		OfficialDelayMax:  getEnvDuration("DISPATCH_OFFICIAL_DELAY_MAX", 120*time.Second),
		ExtraJitterMax:    getEnvDuration("DISPATCH_EXTRA_JITTER_MAX", 5*time.Second),
		InboundDedupTTL:   getEnvDuration("INBOUND_DEDUP_TTL", 24*time.Hour),
		MediaLookupBudget: getEnvDuration("INBOUND_MEDIA_LOOKUP_TIMEOUT", 5*time.Second),
	}
	if dispatchCfg.BridgeDelayMax < dispatchCfg.BridgeDelayMin {
		return nil, fmt.Errorf("DISPATCH_BRIDGE_DELAY_MAX (%s) is lower than DISPATCH_BRIDGE_DELAY_MIN (%s)", dispatchCfg.BridgeDelayMax, dispatchCfg.BridgeDelayMin)
	}
	if dispatchCfg.OfficialDelayMax < dispatchCfg.OfficialDelayMin {
		return nil, fmt.Errorf("DISPATCH_OFFICIAL_DELAY_MAX (%s) is lower than DISPATCH_OFFICIAL_DELAY_MIN (%s)", dispatchCfg.OfficialDelayMax, dispatchCfg.OfficialDelayMin)
	}

	poolSize := getEnvInt("MESSAGE_WORKER_POOL_SIZE", 20)

	cfg := &Config{
		App:        appCfg,
		MCP:        MCPConfig{Port: getEnv("MCP_PORT", "8080"), Host: getEnv("MCP_HOST", "localhost")},
		Paths:      pathsCfg,
		Database:   dbCfg,
		Log:        logCfg,
		WorkerPool: WorkerPoolConfig{Size: poolSize, QueueSize: getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 1000)},
		Security: SecurityConfig{
			SecretKey:       getEnv("APP_SECRET_KEY", "changeme_please_change_me_in_prod_12345"),
			RevokedTokenTTL: getEnvDuration("SESSION_REVOKED_TTL", 24*time.Hour),
		},
		Providers: providersCfg,
		Dispatch:  dispatchCfg,
		Events: EventsConfig{
			AMQPURL:  getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "relay.events"),
			Source:   getEnv("AMQP_SOURCE", "az-relay"),
		},
		AI: AIConfig{
			Provider:     strings.ToLower(getEnv("AI_PROVIDER", "")),
			Model:        getEnv("AI_MODEL", ""),
			SystemPrompt: getEnv("AI_SYSTEM_PROMPT", ""),
			OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
			GeminiKey:    getEnv("GEMINI_API_KEY", ""),
		},
		Monitor: MonitorConfig{
			BufferSize: getEnvInt("MONITOR_BUFFER", 200),
			TTL:        getEnvDuration("MONITOR_TTL", 0),
		},
	}

	Global = cfg
	return cfg, nil
}
