// Package config はアプリケーション設定を viper で読み込みます。
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Access   AccessConfig   `mapstructure:"access"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	BaseURL  string `mapstructure:"base_url"`
	AdminKey string `mapstructure:"admin_key"`
}

// IsProduction は本番環境かどうかを返します。
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type SupabaseConfig struct {
	URL             string `mapstructure:"url"`
	ServiceKey      string `mapstructure:"service_key"`
	AnonKey         string `mapstructure:"anon_key"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	ThumbnailBucket string `mapstructure:"thumbnail_bucket"`
	LeadFunction    string `mapstructure:"lead_function"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	Migrate        bool   `mapstructure:"migrate"`
}

type RedisConfig struct {
	Address    string        `mapstructure:"address"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
}

// Enabled はRedisのアドレスが設定されているかどうかを返します。
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

type AuthConfig struct {
	CookieName     string        `mapstructure:"cookie_name"`
	ProfileTimeout time.Duration `mapstructure:"profile_timeout"`
	Bypass         bool          `mapstructure:"bypass"`
}

type AccessConfig struct {
	// DenyWithoutProfile は必要Tierがあるのにプロフィールが無い場合に拒否します。
	DenyWithoutProfile bool `mapstructure:"deny_without_profile"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SendGridConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.admin_key", "")

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.service_key", "")
	v.SetDefault("supabase.anon_key", "")
	v.SetDefault("supabase.jwt_secret", "")
	v.SetDefault("supabase.thumbnail_bucket", "course-thumbnails")
	v.SetDefault("supabase.lead_function", "")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.profile_ttl", 5*time.Minute)

	v.SetDefault("auth.cookie_name", "sb-access-token")
	v.SetDefault("auth.profile_timeout", 3*time.Second)
	v.SetDefault("auth.bypass", false)

	v.SetDefault("access.deny_without_profile", false)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.from_email", "academy@localhost")
	v.SetDefault("sendgrid.from_name", "Trading Academy")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
}

// Load は設定ファイル（任意）と環境変数から設定を読み込みます。
// path が空の場合は ./configs/config.yaml を探します。
func Load(path string) (*Config, error) {
	// 本番以外では .env を読み込む
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("warning: Error loading .env file (this is fine in production): %v", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// supabase.jwt_secret -> SUPABASE_JWT_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 既存のデプロイで使われている環境変数名も受け付ける
	_ = v.BindEnv("app.port", "APP_PORT", "PORT")
	_ = v.BindEnv("auth.bypass", "AUTH_BYPASS", "BYPASS_AUTH")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定のデコードに失敗しました: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate は必須項目を確認します。
func (c *Config) Validate() error {
	var missing []string
	if c.Supabase.URL == "" {
		missing = append(missing, "supabase.url")
	}
	if c.Supabase.ServiceKey == "" && c.Supabase.AnonKey == "" {
		missing = append(missing, "supabase.service_key")
	}
	if c.Supabase.JWTSecret == "" && !c.Auth.Bypass {
		missing = append(missing, "supabase.jwt_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Auth.Bypass && c.App.IsProduction() {
		return errors.New("auth.bypass must not be enabled in production")
	}
	return nil
}

// SupabaseKey はサーバー側で使うキーを返します。service_key を優先します。
func (c *Config) SupabaseKey() string {
	if c.Supabase.ServiceKey != "" {
		return c.Supabase.ServiceKey
	}
	return c.Supabase.AnonKey
}
