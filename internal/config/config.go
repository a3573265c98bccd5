package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Profiles ProfilesConfig
	Fallback FallbackConfig
	Features FeaturesConfig
	Parser   ParserConfig
	DB       DBConfig
	S3       S3Config
	Backup   BackupConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProfilesConfig locates bank profile definitions and configures hot reload.
type ProfilesConfig struct {
	Directory string          `mapstructure:"directory"`
	HotReload HotReloadConfig `mapstructure:"hot_reload"`
}

// HotReloadConfig holds the boot values of the profile directory watcher.
type HotReloadConfig struct {
	Enabled     bool  `mapstructure:"enabled"`
	DebounceMs  int   `mapstructure:"debounce_ms"`
	BackupCount int   `mapstructure:"backup_count"`
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// FallbackConfig holds the global knobs of the fallback ladder.
type FallbackConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	AutoSwitchThreshold float64 `mapstructure:"auto_switch_threshold"`
	MaxAttempts         int     `mapstructure:"max_attempts"`
	RetryDelayMs        int     `mapstructure:"retry_delay_ms"`
}

// FeaturesConfig carries boot-time flag overrides keyed by flag name.
// Only variables present in the environment appear in Overrides.
type FeaturesConfig struct {
	Overrides map[string]string
}

// ParserConfig holds settings for the strategy runner.
type ParserConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	APIKey          string        `mapstructure:"api_key"`
	AttemptTimeout  time.Duration `mapstructure:"attempt_timeout"`
	CircuitCooldown time.Duration `mapstructure:"circuit_cooldown"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// BackupConfig selects where profile backups are written.
type BackupConfig struct {
	Provider string `mapstructure:"provider"` // none | s3 | postgres
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// featureEnv maps flag names to the unprefixed variables that override them.
var featureEnv = map[string]string{
	"ml-classification":   "FEATURE_ML_CLASSIFICATION",
	"ai-extraction":       "FEATURE_AI_EXTRACTION",
	"auto-fix-enabled":    "FEATURE_AUTO_FIX",
	"checksum-validation": "FEATURE_CHECKSUM_VALIDATION",
	"duplicate-detection": "FEATURE_DUPLICATE_DETECTION",
}

// Load reads configuration from environment variables with the STMTRULES_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STMTRULES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Profile defaults
	v.SetDefault("profiles.directory", "config/bank-profiles")
	v.SetDefault("profiles.hot_reload.enabled", false)
	v.SetDefault("profiles.hot_reload.debounce_ms", 500)
	v.SetDefault("profiles.hot_reload.backup_count", 5)
	v.SetDefault("profiles.hot_reload.max_file_size", 10*1024*1024)

	// Fallback defaults
	v.SetDefault("fallback.enabled", true)
	v.SetDefault("fallback.auto_switch_threshold", 0.7)
	v.SetDefault("fallback.max_attempts", 3)
	v.SetDefault("fallback.retry_delay_ms", 1000)

	// Parser defaults
	v.SetDefault("parser.endpoint", "")
	v.SetDefault("parser.attempt_timeout", "120s")
	v.SetDefault("parser.circuit_cooldown", "60s")

	// DB defaults
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "stmtrules")
	v.SetDefault("db.password", "stmtrules_secret")
	v.SetDefault("db.name", "stmtrules_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "stmtrules-config")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "profile-backups")

	v.SetDefault("backup.provider", "none")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                       "STMTRULES_SERVER_PORT",
		"server.read_timeout":               "STMTRULES_SERVER_READ_TIMEOUT",
		"server.write_timeout":              "STMTRULES_SERVER_WRITE_TIMEOUT",
		"server.environment":                "STMTRULES_SERVER_ENVIRONMENT",
		"log.level":                         "STMTRULES_LOG_LEVEL",
		"log.format":                        "STMTRULES_LOG_FORMAT",
		"profiles.directory":                "STMTRULES_PROFILES_DIRECTORY",
		"profiles.hot_reload.enabled":       "STMTRULES_PROFILES_HOT_RELOAD_ENABLED",
		"profiles.hot_reload.debounce_ms":   "STMTRULES_PROFILES_HOT_RELOAD_DEBOUNCE_MS",
		"profiles.hot_reload.backup_count":  "STMTRULES_PROFILES_HOT_RELOAD_BACKUP_COUNT",
		"profiles.hot_reload.max_file_size": "STMTRULES_PROFILES_HOT_RELOAD_MAX_FILE_SIZE",
		"fallback.enabled":                  "STMTRULES_FALLBACK_ENABLED",
		"fallback.auto_switch_threshold":    "STMTRULES_FALLBACK_AUTO_SWITCH_THRESHOLD",
		"fallback.max_attempts":             "STMTRULES_FALLBACK_MAX_ATTEMPTS",
		"fallback.retry_delay_ms":           "STMTRULES_FALLBACK_RETRY_DELAY_MS",
		"parser.endpoint":                   "STMTRULES_PARSER_ENDPOINT",
		"parser.api_key":                    "STMTRULES_PARSER_API_KEY",
		"parser.attempt_timeout":            "STMTRULES_PARSER_ATTEMPT_TIMEOUT",
		"parser.circuit_cooldown":           "STMTRULES_PARSER_CIRCUIT_COOLDOWN",
		"db.enabled":                        "STMTRULES_DB_ENABLED",
		"db.host":                           "STMTRULES_DB_HOST",
		"db.port":                           "STMTRULES_DB_PORT",
		"db.user":                           "STMTRULES_DB_USER",
		"db.password":                       "STMTRULES_DB_PASSWORD",
		"db.name":                           "STMTRULES_DB_NAME",
		"db.sslmode":                        "STMTRULES_DB_SSLMODE",
		"db.max_open":                       "STMTRULES_DB_MAX_OPEN",
		"db.max_idle":                       "STMTRULES_DB_MAX_IDLE",
		"s3.region":                         "STMTRULES_S3_REGION",
		"s3.bucket":                         "STMTRULES_S3_BUCKET",
		"s3.endpoint":                       "STMTRULES_S3_ENDPOINT",
		"s3.access_key":                     "STMTRULES_S3_ACCESS_KEY",
		"s3.secret_key":                     "STMTRULES_S3_SECRET_KEY",
		"s3.prefix":                         "STMTRULES_S3_PREFIX",
		"backup.provider":                   "STMTRULES_BACKUP_PROVIDER",
		"cors.allowed_origins":              "STMTRULES_CORS_ALLOWED_ORIGINS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	// Feature overrides are read without the prefix.
	for flag, env := range featureEnv {
		_ = v.BindEnv(featureKey(flag), env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if STMTRULES_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("STMTRULES_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Profiles = ProfilesConfig{
		Directory: v.GetString("profiles.directory"),
		HotReload: HotReloadConfig{
			Enabled:     v.GetBool("profiles.hot_reload.enabled"),
			DebounceMs:  v.GetInt("profiles.hot_reload.debounce_ms"),
			BackupCount: v.GetInt("profiles.hot_reload.backup_count"),
			MaxFileSize: v.GetInt64("profiles.hot_reload.max_file_size"),
		},
	}
	cfg.Fallback = FallbackConfig{
		Enabled:             v.GetBool("fallback.enabled"),
		AutoSwitchThreshold: v.GetFloat64("fallback.auto_switch_threshold"),
		MaxAttempts:         v.GetInt("fallback.max_attempts"),
		RetryDelayMs:        v.GetInt("fallback.retry_delay_ms"),
	}

	cfg.Features = FeaturesConfig{Overrides: make(map[string]string)}
	for flag := range featureEnv {
		if v.IsSet(featureKey(flag)) {
			cfg.Features.Overrides[flag] = v.GetString(featureKey(flag))
		}
	}

	cfg.Parser = ParserConfig{
		Endpoint:        v.GetString("parser.endpoint"),
		APIKey:          v.GetString("parser.api_key"),
		AttemptTimeout:  v.GetDuration("parser.attempt_timeout"),
		CircuitCooldown: v.GetDuration("parser.circuit_cooldown"),
	}
	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
		Prefix:    v.GetString("s3.prefix"),
	}
	cfg.Backup = BackupConfig{
		Provider: strings.ToLower(v.GetString("backup.provider")),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	switch cfg.Backup.Provider {
	case "none", "s3", "postgres":
	default:
		return nil, fmt.Errorf("unknown backup provider %q", cfg.Backup.Provider)
	}
	if cfg.Backup.Provider == "postgres" && !cfg.DB.Enabled {
		return nil, fmt.Errorf("backup provider postgres requires STMTRULES_DB_ENABLED")
	}

	return cfg, nil
}

func featureKey(flag string) string {
	return "features." + strings.ReplaceAll(flag, "-", "_")
}
