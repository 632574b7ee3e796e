package config

import (
	"log"
	"time"

	"github.com/spf13/viper"

	"golang-object-generation/pkg/postgres"
	"golang-object-generation/pkg/redis"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Sandbox    SandboxConfig    `mapstructure:"sandbox"`
	Generation GenerationConfig `mapstructure:"generation"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   postgres.Config  `mapstructure:"database"`
	Redis      redis.Config     `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string
	Env  string
}

type GeminiConfig struct {
	APIKey              string
	Model               string
	MaxRequestPerMinute int
	RequestTemperature  float64
	RequestTimeout      time.Duration
}

type SandboxConfig struct {
	Timeout      time.Duration
	HostGrace    time.Duration
	MaxLogLines  int
	MaxCodeBytes int
}

type GenerationConfig struct {
	MaxRetries int
}

type SnapshotConfig struct {
	RendererBaseURL string
	Size            int
	Background      string
	Format          string
	Timeout         time.Duration
	CacheTTL        time.Duration
}

type TelegramConfig struct {
	BotToken                  string
	ChatID                    string
	MaxGlobalRequestPerSecond int
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file .env config try read from environment variables")
	}

	viper.SetDefault("SANDBOX_TIMEOUT", "5s")
	viper.SetDefault("SANDBOX_HOST_GRACE", "2s")
	viper.SetDefault("SANDBOX_MAX_LOG_LINES", 2000)
	viper.SetDefault("SANDBOX_MAX_CODE_BYTES", 262144)
	viper.SetDefault("GENERATION_MAX_RETRIES", 2)
	viper.SetDefault("GEMINI_REQUEST_TIMEOUT", "60s")
	viper.SetDefault("GEMINI_MAX_REQUEST_PER_MINUTE", 15)
	viper.SetDefault("SNAPSHOT_SIZE", 512)
	viper.SetDefault("SNAPSHOT_BACKGROUND", "transparent")
	viper.SetDefault("SNAPSHOT_FORMAT", "png")
	viper.SetDefault("SNAPSHOT_TIMEOUT", "30s")
	viper.SetDefault("SNAPSHOT_CACHE_TTL", "1h")
	viper.SetDefault("TELEGRAM_MAX_GLOBAL_REQUEST_PER_SECOND", 30)

	config := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
			Env:  viper.GetString("ENV"),
		},
		Gemini: GeminiConfig{
			APIKey:              viper.GetString("GEMINI_API_KEY"),
			Model:               viper.GetString("GEMINI_MODEL"),
			MaxRequestPerMinute: viper.GetInt("GEMINI_MAX_REQUEST_PER_MINUTE"),
			RequestTemperature:  viper.GetFloat64("GEMINI_REQUEST_TEMPERATURE"),
			RequestTimeout:      viper.GetDuration("GEMINI_REQUEST_TIMEOUT"),
		},
		Sandbox: SandboxConfig{
			Timeout:      viper.GetDuration("SANDBOX_TIMEOUT"),
			HostGrace:    viper.GetDuration("SANDBOX_HOST_GRACE"),
			MaxLogLines:  viper.GetInt("SANDBOX_MAX_LOG_LINES"),
			MaxCodeBytes: viper.GetInt("SANDBOX_MAX_CODE_BYTES"),
		},
		Generation: GenerationConfig{
			MaxRetries: viper.GetInt("GENERATION_MAX_RETRIES"),
		},
		Snapshot: SnapshotConfig{
			RendererBaseURL: viper.GetString("SNAPSHOT_RENDERER_BASE_URL"),
			Size:            viper.GetInt("SNAPSHOT_SIZE"),
			Background:      viper.GetString("SNAPSHOT_BACKGROUND"),
			Format:          viper.GetString("SNAPSHOT_FORMAT"),
			Timeout:         viper.GetDuration("SNAPSHOT_TIMEOUT"),
			CacheTTL:        viper.GetDuration("SNAPSHOT_CACHE_TTL"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Telegram: TelegramConfig{
			BotToken:                  viper.GetString("TELEGRAM_BOT_TOKEN"),
			ChatID:                    viper.GetString("TELEGRAM_CHAT_ID"),
			MaxGlobalRequestPerSecond: viper.GetInt("TELEGRAM_MAX_GLOBAL_REQUEST_PER_SECOND"),
		},
		Database: postgres.Config{
			Host:            viper.GetString("DATABASE_HOST"),
			Port:            viper.GetInt("DATABASE_PORT"),
			User:            viper.GetString("DATABASE_USER"),
			Password:        viper.GetString("DATABASE_PASSWORD"),
			DBName:          viper.GetString("DATABASE_NAME"),
			SSLMode:         viper.GetString("DATABASE_SSL_MODE"),
			TimeZone:        viper.GetString("DATABASE_TIME_ZONE"),
			MaxIdleConns:    viper.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns:    viper.GetInt("DATABASE_MAX_OPEN_CONNS"),
			ConnMaxLifetime: viper.GetString("DATABASE_CONN_MAX_LIFETIME"),
			LogLevel:        viper.GetString("DATABASE_LOG_LEVEL"),
		},
		Redis: redis.Config{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
		},
	}

	return config, nil
}
