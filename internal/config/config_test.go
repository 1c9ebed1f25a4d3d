package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndSecretBootstrap(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, 10, cfg.River.MaxWorkers)
	require.Equal(t, 100, cfg.Worker.GeneralPoolSize)
	require.Equal(t, 20, cfg.Worker.MessagingPoolSize)

	// Missing secrets are generated, 32 random bytes hex encoded.
	require.Len(t, cfg.Security.TokenSecret, 64)
	require.Len(t, cfg.Security.JWTSigningKey, 64)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SECURITY_TOKEN_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Security.TokenSecret)
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080},
		Security: SecurityConfig{TokenSecret: "short"},
	}
	require.Error(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://u:p@db:5432/x"}
	require.Equal(t, "postgres://u:p@db:5432/x", c.DSN())

	c = DatabaseConfig{Host: "localhost", Port: 5432, User: "approvals", Password: "pw", Database: "approvals"}
	require.Equal(t, "postgres://approvals:pw@localhost:5432/approvals?sslmode=disable", c.DSN())
}
