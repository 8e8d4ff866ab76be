// Package config предоставляет структуры и функции для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	Panel                   Panel    `yaml:"panel"`
	Server                  Server   `yaml:"server"`
	Telegram                Telegram `yaml:"telegram"`
	Sweeper                 Sweeper  `yaml:"sweeper"`
	Referral                Referral `yaml:"referral"`
	Trial                   Trial    `yaml:"trial"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"localhost:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"`
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
	TTL          time.Duration `yaml:"ttl" env-default:"5m"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"720h"`
}

// RabbitMQ параметры подключения к брокеру уведомлений.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"10"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Panel параметры доступа к панели 3X-UI.
type Panel struct {
	BaseURL          string        `yaml:"base_url" env:"PANEL_URL"`
	Username         string        `yaml:"username" env:"PANEL_USERNAME"`
	Password         string        `yaml:"password" env:"PANEL_PASSWORD"`
	Timeout          time.Duration `yaml:"timeout" env-default:"10s"`
	DefaultInboundID int           `yaml:"default_inbound_id"`
}

// Server статические параметры сервера, которые попадают в ссылку подключения
// и в конфигурацию создаваемого по умолчанию inbound.
type Server struct {
	Address     string `yaml:"address" env:"SERVER_ADDRESS"`
	Port        int    `yaml:"port" env:"REALITY_PORT" env-default:"443"`
	SNI         string `yaml:"sni" env-default:"yahoo.com"`
	ShortID     string `yaml:"short_id" env:"REALITY_SHORT_ID"`
	PrivateKey  string `yaml:"private_key" env:"REALITY_PRIVATE_KEY"`
	Fingerprint string `yaml:"fingerprint" env-default:"chrome"`
	Flow        string `yaml:"flow" env-default:"xtls-rprx-vision"`
	Dest        string `yaml:"reality_dest" env-default:"yahoo.com:443"`
}

// Telegram параметры бота для доставки уведомлений.
type Telegram struct {
	Token    string  `yaml:"token" env:"BOT_TOKEN"`
	AdminIDs []int64 `yaml:"admin_ids" env:"ADMIN_IDS" env-separator:","`
}

// Sweeper настройки фонового процесса отзыва истёкших подписок.
type Sweeper struct {
	Interval time.Duration `yaml:"interval" env-default:"10s"`
}

// Referral настройки реферальной программы.
type Referral struct {
	CommissionRate float64 `yaml:"commission_rate" env-default:"0.5"`
}

// Trial настройки пробного периода.
type Trial struct {
	Duration time.Duration `yaml:"duration" env-default:"72h"`
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
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

// Load читает конфиг из файла, переменные окружения имеют приоритет.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// IsAdmin сообщает, входит ли пользователь в список администраторов.
func (t Telegram) IsAdmin(userID int64) bool {
	for _, id := range t.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  TTL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Panel:\n"+
			"  BaseURL: %s\n"+
			"  DefaultInboundID: %d\n"+
			"Server:\n"+
			"  Address: %s:%d\n"+
			"Sweeper:\n"+
			"  Interval: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.TTL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.Panel.BaseURL,
		c.Panel.DefaultInboundID,
		c.Server.Address,
		c.Server.Port,
		c.Sweeper.Interval,
	)
}
