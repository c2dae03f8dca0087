package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD",
		"S3_ACCESS_KEY", "S3_SECRET_KEY", "DISCORD_WEBHOOK_URL", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.SyncInterval())
	assert.Equal(t, 20*time.Second, cfg.TournamentTimeout())
	assert.Equal(t, 30*time.Second, cfg.LockTTL())
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "pokeroracle.db", cfg.Storage.DSN)
	assert.Equal(t, "https://www.pokernow.club", cfg.PokerNow.BaseURL)
	assert.Equal(t, 5000, cfg.PokerNow.MaxHand)
	assert.Equal(t, 2, *cfg.PokerNow.MaxRetries)
	assert.Equal(t, 1000, *cfg.PokerNow.BatchDelayMs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/oracle")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.test/hook")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(writeConfig(t, "storage:\n  driver: sqlite\nnotify:\n  telegram_chat_id: \"1\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/oracle", cfg.Storage.DSN)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, "https://discord.test/hook", cfg.Notify.DiscordWebhook)
	assert.Equal(t, "42", cfg.Notify.TelegramChatID)
}

func TestLoad_ExplicitZeroPokerNowKnobs(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "pokernow:\n  batch_delay_ms: 0\n  max_retries: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, *cfg.PokerNow.BatchDelayMs)
	assert.Equal(t, 0, *cfg.PokerNow.MaxRetries)

	_, err = Load(writeConfig(t, "pokernow:\n  batch_delay_ms: -5\n"))
	assert.ErrorContains(t, err, "batch_delay_ms")

	_, err = Load(writeConfig(t, "pokernow:\n  max_retries: -1\n"))
	assert.ErrorContains(t, err, "max_retries")
}

func TestLoad_SecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "redis:\n  password: leaked\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Redis.Password)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "worker: [not, a, map]\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  driver: mongo\n"))
	assert.ErrorContains(t, err, "unknown storage driver")

	_, err = Load(writeConfig(t, "storage:\n  driver: postgres\n"))
	assert.ErrorContains(t, err, "required for postgres")

	_, err = Load(writeConfig(t, "archive:\n  enabled: true\n"))
	assert.ErrorContains(t, err, "archive.bucket")
}

func TestLoad_ExampleFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
	assert.Len(t, cfg.Notify.Events, 4)
}
