// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaceholderKey is the key value shipped in example env files. It counts as
// no key at all.
const PlaceholderKey = "<prefer publishable key instead of anon key for mobile and desktop apps>"

type Config struct {
	Debug   bool
	Backend BackendConfig
	Store   StoreConfig
	Latency LatencyConfig
	Auth    AuthConfig
	Server  ServerConfig
}

// BackendConfig holds the real backend's credentials.
type BackendConfig struct {
	URL     string
	AnonKey string
}

// Configured reports whether the credentials are usable. When they are not,
// the local shim stands in for the real backend.
func (c BackendConfig) Configured() bool {
	key := strings.TrimSpace(c.AnonKey)
	return strings.TrimSpace(c.URL) != "" && key != "" && key != PlaceholderKey
}

type StoreConfig struct {
	Backend string
	DataDir string
}

// LatencyConfig simulates network delay in the local shim. Zero disables it.
type LatencyConfig struct {
	Data   time.Duration
	SignIn time.Duration
	SignUp time.Duration
}

type AuthConfig struct {
	DeriveUserIDs bool
}

type ServerConfig struct {
	Host           string
	Port           string
	AllowedOrigins []string
}

func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads envFile if it exists (a missing file is ignored), then builds a
// Config from defaults and the environment. Variables already set in the
// environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("config.godotenv(%s): %w", envFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config.os.Stat(%s): %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetDefault("debug", false)
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.anonKey", "")
	v.SetDefault("store.backend", "json")
	v.SetDefault("store.dataDir", "./data")
	v.SetDefault("latency.data", 200*time.Millisecond)
	v.SetDefault("latency.signIn", 500*time.Millisecond)
	v.SetDefault("latency.signUp", 800*time.Millisecond)
	v.SetDefault("auth.deriveUserIDs", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedOrigins", "*")

	// Each front-end toolchain names the credentials differently; the first
	// one set wins.
	bindings := map[string][]string{
		"debug":                 {"DEBUG"},
		"backend.url":           {"NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_URL"},
		"backend.anonKey":       {"NEXT_PUBLIC_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY", "EXPO_PUBLIC_SUPABASE_KEY"},
		"store.backend":         {"STORE_BACKEND"},
		"store.dataDir":         {"DATA_DIR"},
		"latency.data":          {"LATENCY_DATA"},
		"latency.signIn":        {"LATENCY_SIGN_IN"},
		"latency.signUp":        {"LATENCY_SIGN_UP"},
		"auth.deriveUserIDs":    {"DERIVE_USER_IDS"},
		"server.host":           {"HOST"},
		"server.port":           {"PORT"},
		"server.allowedOrigins": {"ALLOWED_ORIGINS"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("config.BindEnv(%s): %w", key, err)
		}
	}

	cfg := &Config{
		Debug: v.GetBool("debug"),
		Backend: BackendConfig{
			URL:     v.GetString("backend.url"),
			AnonKey: v.GetString("backend.anonKey"),
		},
		Store: StoreConfig{
			Backend: v.GetString("store.backend"),
			DataDir: v.GetString("store.dataDir"),
		},
		Latency: LatencyConfig{
			Data:   v.GetDuration("latency.data"),
			SignIn: v.GetDuration("latency.signIn"),
			SignUp: v.GetDuration("latency.signUp"),
		},
		Auth: AuthConfig{
			DeriveUserIDs: v.GetBool("auth.deriveUserIDs"),
		},
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetString("server.port"),
			AllowedOrigins: splitList(v.GetString("server.allowedOrigins")),
		},
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
