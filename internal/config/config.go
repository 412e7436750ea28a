package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string        `yaml:"env" env:"APP_ENV" env-default:"local" json:"-"`
	DatabaseDSN string        `yaml:"database_dsn" env:"DATABASE_URL" env-required:"true" json:"-"`
	Migrate     bool          `yaml:"migrate_on_start" env:"MIGRATE_ON_START" env-default:"false" json:"-"`
	HTTPServer  HTTPServer    `yaml:"http_server" json:"-"`
	CORS        CORSConfig    `yaml:"cors" json:"-"`
	Chat        ChatConfig    `yaml:"chat" json:"chat"`
	WS          WSConfig      `yaml:"ws" json:"-"`
	Uploads     UploadsConfig `yaml:"uploads" json:"-"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8082" json:"-"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s" json:"-"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s" json:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ORIGIN" env-separator:"," env-default:"http://localhost:3000"`
}

type ChatConfig struct {
	AdminID          int64   `yaml:"admin_id" env:"CHAT_ADMIN_ID" env-default:"1" json:"admin_id"`
	DefaultAvatar    string  `yaml:"default_avatar" env-default:"/uploads/default-avatar.png" json:"default_avatar"`
	MaxMessageLength int     `yaml:"max_message_length" env-default:"4000" json:"max_message_length"`
	SendRate         float64 `yaml:"send_rate" env-default:"5" json:"-"`
	SendBurst        int     `yaml:"send_burst" env-default:"10" json:"-"`
	EnforceSender    bool    `yaml:"enforce_sender" env:"CHAT_ENFORCE_SENDER" env-default:"true" json:"-"`
}

type WSConfig struct {
	ReadDeadline time.Duration `yaml:"read_deadline" env-default:"60s"`
	PingPeriod   time.Duration `yaml:"ping_period" env-default:"30s"`
	WriteWait    time.Duration `yaml:"write_wait" env-default:"10s"`
	SendBuffer   int           `yaml:"send_buffer" env-default:"128"`
}

type UploadsConfig struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	if cfg.Chat.AdminID <= 0 {
		return nil, fmt.Errorf("chat.admin_id must be positive, got %d", cfg.Chat.AdminID)
	}

	if cfg.Chat.MaxMessageLength <= 0 {
		return nil, fmt.Errorf("chat.max_message_length must be positive, got %d", cfg.Chat.MaxMessageLength)
	}

	return &cfg, nil
}
