package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del oráculo.
type Config struct {
	Worker   WorkerConfig   `yaml:"worker"`
	PokerNow PokerNowConfig `yaml:"pokernow"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Notify   NotifyConfig   `yaml:"notify"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// WorkerConfig controla el loop de sincronización.
type WorkerConfig struct {
	IntervalSeconds          int `yaml:"interval_seconds"`
	TournamentTimeoutSeconds int `yaml:"tournament_timeout_seconds"`
	LockTTLSeconds           int `yaml:"lock_ttl_seconds"` // solo con redis.enabled
}

// PokerNowConfig controla el cliente del log de mesas.
type PokerNowConfig struct {
	BaseURL      string  `yaml:"base_url"`
	MaxHand      int     `yaml:"max_hand"`
	BatchSize    int     `yaml:"batch_size"`
	BatchDelayMs *int    `yaml:"batch_delay_ms"` // nil = 1000; 0 = sin pausa
	RatePerSec   float64 `yaml:"rate_per_sec"`
	Burst        int     `yaml:"burst"`
	MaxRetries   *int    `yaml:"max_retries"` // nil = 2; 0 = sin reintentos
	TimeoutSec   int     `yaml:"timeout_seconds"`
}

// StorageConfig elige el backend de mercados.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // sqlite | postgres
	DSN      string `yaml:"dsn"`    // ruta SQLite o DSN de Postgres (env DATABASE_URL)
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig activa el lease por torneo entre instancias.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"` // env REDIS_PASSWORD
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	TLS      bool   `yaml:"tls"`
}

// ArchiveConfig activa el archivo de logs de manos en S3.
type ArchiveConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"` // vacío = AWS
	Region         string `yaml:"region"`
	Bucket         string `yaml:"bucket"`
	AccessKey      string `yaml:"-"` // env S3_ACCESS_KEY
	SecretKey      string `yaml:"-"` // env S3_SECRET_KEY
	UseSSL         bool   `yaml:"use_ssl"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// NotifyConfig controla los avisos al operador.
type NotifyConfig struct {
	Events         []string `yaml:"events"` // vacío = todos
	DiscordWebhook string   `yaml:"-"`      // env DISCORD_WEBHOOK_URL
	TelegramToken  string   `yaml:"-"`      // env TELEGRAM_TOKEN
	TelegramChatID string   `yaml:"telegram_chat_id"`
}

// MetricsConfig controla el endpoint Prometheus.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // vacío = deshabilitado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los secretos solo se leen del entorno.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// SyncInterval devuelve el intervalo entre ticks.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Worker.IntervalSeconds) * time.Second
}

// TournamentTimeout devuelve el presupuesto por torneo dentro de un tick.
func (c *Config) TournamentTimeout() time.Duration {
	return time.Duration(c.Worker.TournamentTimeoutSeconds) * time.Second
}

// LockTTL devuelve la duración del lease por torneo.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Worker.LockTTLSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.Driver = "postgres"
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Archive.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.Archive.SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.Notify.DiscordWebhook = os.Getenv("DISCORD_WEBHOOK_URL")
	cfg.Notify.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Worker.IntervalSeconds <= 0 {
		cfg.Worker.IntervalSeconds = 10
	}
	if cfg.Worker.TournamentTimeoutSeconds <= 0 {
		cfg.Worker.TournamentTimeoutSeconds = 20
	}
	if cfg.Worker.LockTTLSeconds <= 0 {
		cfg.Worker.LockTTLSeconds = 30
	}
	if cfg.PokerNow.BaseURL == "" {
		cfg.PokerNow.BaseURL = "https://www.pokernow.club"
	}
	if cfg.PokerNow.MaxHand <= 0 {
		cfg.PokerNow.MaxHand = 5000
	}
	if cfg.PokerNow.BatchSize <= 0 {
		cfg.PokerNow.BatchSize = 5
	}
	if cfg.PokerNow.BatchDelayMs == nil {
		cfg.PokerNow.BatchDelayMs = intPtr(1000)
	}
	if cfg.PokerNow.MaxRetries == nil {
		cfg.PokerNow.MaxRetries = intPtr(2)
	}
	if cfg.PokerNow.TimeoutSec <= 0 {
		cfg.PokerNow.TimeoutSec = 10
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DSN = "pokeroracle.db"
	}
	if cfg.Storage.MaxConns <= 0 {
		cfg.Storage.MaxConns = 10
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if *c.PokerNow.BatchDelayMs < 0 {
		return fmt.Errorf("pokernow.batch_delay_ms must not be negative")
	}
	if *c.PokerNow.MaxRetries < 0 {
		return fmt.Errorf("pokernow.max_retries must not be negative")
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn (or DATABASE_URL) is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive is enabled")
	}
	return nil
}

func intPtr(v int) *int { return &v }
