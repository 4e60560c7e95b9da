package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnv = []string{
	"DEBUG",
	"NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_URL",
	"NEXT_PUBLIC_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY", "EXPO_PUBLIC_SUPABASE_KEY",
	"STORE_BACKEND", "DATA_DIR", "LATENCY_DATA", "LATENCY_SIGN_IN", "LATENCY_SIGN_UP",
	"DERIVE_USER_IDS", "HOST", "PORT", "ALLOWED_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allEnv {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Backend.Configured())
	assert.Equal(t, "json", cfg.Store.Backend)
	assert.Equal(t, "./data", cfg.Store.DataDir)
	assert.Equal(t, 200*time.Millisecond, cfg.Latency.Data)
	assert.Equal(t, 500*time.Millisecond, cfg.Latency.SignIn)
	assert.Equal(t, 800*time.Millisecond, cfg.Latency.SignUp)
	assert.False(t, cfg.Auth.DeriveUserIDs)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("DATA_DIR", "/tmp/eden")
	t.Setenv("LATENCY_DATA", "0s")
	t.Setenv("LATENCY_SIGN_IN", "50ms")
	t.Setenv("DERIVE_USER_IDS", "true")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/eden", cfg.Store.DataDir)
	assert.Equal(t, time.Duration(0), cfg.Latency.Data)
	assert.Equal(t, 50*time.Millisecond, cfg.Latency.SignIn)
	assert.True(t, cfg.Auth.DeriveUserIDs)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestCredentialPrecedence(t *testing.T) {
	t.Run("first naming convention wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://next.example")
		t.Setenv("SUPABASE_URL", "https://plain.example")
		t.Setenv("EXPO_PUBLIC_SUPABASE_KEY", "expo-key")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "https://next.example", cfg.Backend.URL)
		assert.Equal(t, "expo-key", cfg.Backend.AnonKey)
		assert.True(t, cfg.Backend.Configured())
	})

	t.Run("placeholder key is unconfigured", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SUPABASE_URL", "https://plain.example")
		t.Setenv("SUPABASE_ANON_KEY", PlaceholderKey)

		cfg, err := Load("")
		require.NoError(t, err)
		assert.False(t, cfg.Backend.Configured())
	})

	t.Run("key without url is unconfigured", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SUPABASE_ANON_KEY", "k")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.False(t, cfg.Backend.Configured())
	})
}

func TestEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_BACKEND=memory\nPORT=9090\n"), 0o644))
	t.Setenv("PORT", "7070")
	// godotenv sets these for the rest of the process; restore on cleanup
	t.Cleanup(func() { os.Unsetenv("STORE_BACKEND") })
	require.NoError(t, os.Unsetenv("STORE_BACKEND"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
	// variables already in the environment win over the file
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestMissingEnvFileIgnored(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
