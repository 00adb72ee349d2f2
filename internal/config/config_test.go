package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HIVE_PORT", "HIVE_BASE_URL", "HIVE_ADMIN_EMAIL", "HIVE_DEV_MODE", "HIVE_TIMEZONE",
		"HIVE_SMTP_HOST", "HIVE_SMTP_PORT", "HIVE_SMTP_USER", "HIVE_SMTP_PASS", "HIVE_SMTP_FROM",
		"HIVE_REDIS_ADDR", "HIVE_CRON_CLEANUP", "HIVE_CRON_REMINDERS", "HIVE_CRON_EXPIRE_CODES",
		"HIVE_NOTIFY_QUEUE", "HIVE_NOTIFY_RATE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "UTC", cfg.TimeZone)
	assert.Equal(t, "587", cfg.SMTP.Port)
	assert.Equal(t, "@hourly", cfg.CleanupSpec)
	assert.Equal(t, 100, cfg.NotifyQueue)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.False(t, cfg.DevMode)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HIVE_PORT", "9090")
	t.Setenv("HIVE_ADMIN_EMAIL", "admin@example.com")
	t.Setenv("HIVE_DEV_MODE", "true")
	t.Setenv("HIVE_TIMEZONE", "America/Chicago")
	t.Setenv("HIVE_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "http://localhost:9090", cfg.BaseURL)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "America/Chicago", cfg.Location().String())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)

	a := cfg.Auth()
	assert.Equal(t, "admin@example.com", a.AdminEmail)
	assert.True(t, a.DevMode)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even empty ones
	require.NoError(t, os.Unsetenv("HIVE_ADMIN_EMAIL"))
	require.NoError(t, os.Unsetenv("HIVE_PORT"))
	t.Cleanup(func() {
		_ = os.Unsetenv("HIVE_ADMIN_EMAIL")
		_ = os.Unsetenv("HIVE_PORT")
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HIVE_ADMIN_EMAIL=seller@example.com\nHIVE_PORT=7070\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "seller@example.com", cfg.AdminEmail)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port not a number", "HIVE_PORT", "abc"},
		{"port out of range", "HIVE_PORT", "70000"},
		{"bad admin email", "HIVE_ADMIN_EMAIL", "not-an-email"},
		{"unknown time zone", "HIVE_TIMEZONE", "Mars/Olympus"},
		{"bad redis address", "HIVE_REDIS_ADDR", "no port here"},
		{"zero queue", "HIVE_NOTIFY_QUEUE", "0"},
		{"negative rate", "HIVE_NOTIFY_RATE", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestSMTPFromRequiresHost(t *testing.T) {
	clearEnv(t)
	t.Setenv("HIVE_SMTP_FROM", "noreply@example.com")

	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("HIVE_SMTP_HOST", "smtp.example.com")
	_, err = Load("")
	assert.NoError(t, err)
}
