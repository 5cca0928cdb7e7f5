// Package config предоставляет структуры и функцию для парсинга и загрузки конфига бота.
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
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	// AdminID идентификатор единственного администратора, который принимает решения по чекам.
	AdminID   string          `yaml:"admin_id" env:"ADMIN_CHAT_ID"`
	Telegram  Telegram        `yaml:"telegram"`
	Redis     RedisConnection `yaml:"redis_connection"`
	HTTP      HTTPServer      `yaml:"http_server"`
	JWT       JWTToken        `yaml:"jwttoken"`
	RabbitMQ  RabbitMQ        `yaml:"rabbitmq"`
	Purchase  Purchase        `yaml:"purchase"`
	FreeGrant FreeGrant       `yaml:"free_grant"`
	Reminder  Reminder        `yaml:"reminder"`
}

// Telegram структура для настройки клиента Bot API
type Telegram struct {
	Token       string `yaml:"token" env:"BOT_TOKEN"`
	PollTimeout int    `yaml:"poll_timeout" env-default:"60"`
	Workers     int    `yaml:"workers" env-default:"10"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес означает, что сессии покупки хранятся в памяти процесса.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном администратора
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ структура для подключения к очереди уведомлений.
// Пустой URL означает прямую отправку уведомлений без брокера.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Purchase настройки сценария покупки
type Purchase struct {
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"24h"`
	CardNumber string        `yaml:"card_number"`
	MobileBank string        `yaml:"mobile_bank"`
}

// FreeGrant настройки бесплатной подписки
type FreeGrant struct {
	Cooldown   time.Duration `yaml:"cooldown" env-default:"2h"`
	Duration   time.Duration `yaml:"duration" env-default:"24h"`
	Title      string        `yaml:"title"`
	Traffic    string        `yaml:"traffic"`
	ConfigLink string        `yaml:"config_link"`
}

// Reminder настройки напоминаний об окончании подписки.
// Нулевой интервал отключает напоминания.
type Reminder struct {
	Interval time.Duration `yaml:"interval" env-default:"24h"`
}

// MustLoad функция для загрузки конфига из файла, путь к которому задан в CONFIG_PATH
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

// Load читает конфиг по указанному пути и проверяет обязательные поля.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	if cfg.AdminID == "" {
		return nil, fmt.Errorf("admin_id is required")
	}
	if cfg.FreeGrant.Cooldown <= 0 {
		return nil, fmt.Errorf("free_grant.cooldown must be positive, got %s", cfg.FreeGrant.Cooldown)
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"AdminID: %s\n"+
			"MigrationsPath: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"RabbitMQ:\n"+
			"  Enabled: %t\n"+
			"Purchase:\n"+
			"  SessionTTL: %s\n"+
			"FreeGrant:\n"+
			"  Cooldown: %s\n",
		c.Env,
		c.AdminID,
		c.MigrationsPath,
		c.Redis.AddressRedis,
		c.Redis.DB,
		c.HTTP.AddressHTTP,
		c.HTTP.TimeoutHTTP,
		c.RabbitMQ.URL != "",
		c.Purchase.SessionTTL,
		c.FreeGrant.Cooldown,
	)
}
