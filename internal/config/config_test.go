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

// TestLoad_FileAndEnv は設定ファイルの値と環境変数の上書きをテストします。
func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SUPABASE_JWT_SECRET", "from-env")
	t.Setenv("PORT", "9090")

	path := writeConfig(t, `
supabase:
  url: https://demo.supabase.co
  service_key: service
  jwt_secret: from-file
redis:
  address: localhost:6379
  profile_ttl: 90s
access:
  deny_without_profile: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://demo.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, "from-env", cfg.Supabase.JWTSecret)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 90*time.Second, cfg.Redis.ProfileTTL)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Access.DenyWithoutProfile)
	assert.Equal(t, "service", cfg.SupabaseKey())
}

// TestLoad_Defaults は既定値が適用されることをテストします。
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	path := writeConfig(t, `
app:
  env: production
supabase:
  url: https://demo.supabase.co
  anon_key: anon
  jwt_secret: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "sb-access-token", cfg.Auth.CookieName)
	assert.Equal(t, 3*time.Second, cfg.Auth.ProfileTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ProfileTTL)
	assert.Equal(t, "course-thumbnails", cfg.Supabase.ThumbnailBucket)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Access.DenyWithoutProfile)
	assert.Equal(t, "anon", cfg.SupabaseKey())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	path := writeConfig(t, "app:\n  env: development\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supabase.url")
	assert.Contains(t, err.Error(), "supabase.jwt_secret")
}

func TestValidate_BypassInProduction(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{Env: "production"},
		Supabase: SupabaseConfig{URL: "https://demo.supabase.co", ServiceKey: "k"},
		Auth:     AuthConfig{Bypass: true},
	}
	assert.Error(t, cfg.Validate())

	cfg.App.Env = "development"
	assert.NoError(t, cfg.Validate())
}
