package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CARE_JWT_SECRET", "s3cret")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "s3cret", cfg.JWT.RefreshSecret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 5, cfg.Security.MaxLoginAttempts)
	assert.Equal(t, 3, cfg.Outbox.RetryAttempts)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CARE_JWT_SECRET", "s3cret")
	t.Setenv("CARE_DATABASE_DRIVER", "memory")
	t.Setenv("CARE_SERVER_PORT", "9090")
	t.Setenv("CARE_OUTBOX_POLL_INTERVAL", "250ms")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("CARE_JWT_SECRET", "")
		_, err := load(viper.New())
		assert.ErrorContains(t, err, "jwt.secret")
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("CARE_JWT_SECRET", "s3cret")
		t.Setenv("CARE_DATABASE_DRIVER", "sqlite")
		_, err := load(viper.New())
		assert.ErrorContains(t, err, "sqlite")
	})
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "care", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=care sslmode=disable", d.DSN())
}
