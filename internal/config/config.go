// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
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
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	GRPCHealthAddress       string `yaml:"grpc_health_address" env:"GRPC_HEALTH_ADDRESS"`
	// TokenSealKey — 32-байтовый ключ (base64) для шифрования токенов провайдера.
	TokenSealKey    string          `yaml:"token_seal_key" env:"TOKEN_SEAL_KEY"`
	Log             Log             `yaml:"log"`
	HTTPServer      HTTPServer      `yaml:"http_server"`
	RedisConnection RedisConnection `yaml:"redis_connection"`
	JWTToken        JWTToken        `yaml:"jwttoken"`
	RabbitMQ        RabbitMQ        `yaml:"rabbitmq"`
	Plaid           Plaid           `yaml:"plaid"`
	Cancellation    Cancellation    `yaml:"cancellation"`
	Scheduler       Scheduler       `yaml:"scheduler"`
	SMTP            SMTP            `yaml:"smtp"`
	RateLimit       RateLimit       `yaml:"rate_limit"`
	CORS            CORS            `yaml:"cors"`
}

// Log структура для настройки логгера
type Log struct {
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env-default:"10"`
	MaxBackups int    `yaml:"max_backups" env-default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" env-default:"30"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес означает работу с кешем в памяти процесса.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
	TTL          time.Duration `yaml:"ttl" env-default:"5m"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET" env-default:"dev_secret"`
	Algorithm    string        `yaml:"algorithm" env:"JWT_ALG" env-default:"HS256"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ структура для подключения к брокеру уведомлений.
// Пустой URL отключает публикацию уведомлений.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Plaid структура для работы с провайдером банковских данных
type Plaid struct {
	Env          string        `yaml:"env" env:"PLAID_ENV" env-default:"sandbox"`
	BaseURL      string        `yaml:"base_url" env:"PLAID_BASE_URL"`
	ClientID     string        `yaml:"client_id" env:"PLAID_CLIENT_ID"`
	Secret       string        `yaml:"secret" env:"PLAID_SECRET"`
	ClientName   string        `yaml:"client_name" env-default:"Approval v2"`
	Products     []string      `yaml:"products" env:"PLAID_PRODUCTS" env-default:"transactions"`
	CountryCodes []string      `yaml:"country_codes" env:"PLAID_COUNTRY_CODES" env-default:"US"`
	Timeout      time.Duration `yaml:"timeout" env-default:"20s"`
	LookbackDays int           `yaml:"lookback_days" env-default:"90"`
}

// Cancellation структура для настройки процесса отмены подписок
type Cancellation struct {
	// Adapter: stub или email.
	Adapter          string            `yaml:"adapter" env:"CANCEL_ADAPTER" env-default:"stub"`
	CompletionDelay  time.Duration     `yaml:"completion_delay" env:"CANCEL_COMPLETION_DELAY" env-default:"30s"`
	ResendAPIKey     string            `yaml:"resend_api_key" env:"RESEND_API_KEY"`
	EmailFrom        string            `yaml:"email_from" env:"EMAIL_FROM"`
	MerchantContacts map[string]string `yaml:"merchant_contacts"`
}

// Scheduler структура для планировщика напоминаний о продлении
type Scheduler struct {
	ReminderSchedule string        `yaml:"reminder_schedule" env:"REMINDER_SCHEDULE" env-default:"@every 12h"`
	ReminderWindow   time.Duration `yaml:"reminder_window" env-default:"24h"`
}

// SMTP структура для отправки писем пользователям
type SMTP struct {
	Host string `yaml:"host" env:"SMTP_HOST"`
	Port int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User string `yaml:"user" env:"SMTP_USER"`
	Pass string `yaml:"pass" env:"SMTP_PASS"`
	From string `yaml:"from" env:"SMTP_FROM"`
}

// RateLimit структура для ограничения частоты запросов
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"10"`
	Burst int     `yaml:"burst" env-default:"20"`
}

// CORS структура для настройки CORS
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

// MustLoad функция для загрузки конфига. Если CONFIG_PATH не задан,
// конфиг собирается только из переменных окружения.
func MustLoad() *Config {
	cfg, err := Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла (если путь не пустой) и переменных окружения.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file: %s - does not exist", configPath)
	}
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Redis: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWT:\n"+
			"  Algorithm: %s\n"+
			"  TokenTTL: %s\n"+
			"Plaid: %s\n"+
			"Cancellation:\n"+
			"  Adapter: %s\n"+
			"  CompletionDelay: %s\n",
		c.Env,
		c.RedisConnection.AddressRedis,
		c.HTTPServer.AddressHTTP,
		c.HTTPServer.TimeoutHTTP,
		c.HTTPServer.IdleTimeout,
		c.JWTToken.Algorithm,
		c.JWTToken.TokenTTL,
		c.Plaid.Env,
		c.Cancellation.Adapter,
		c.Cancellation.CompletionDelay,
	)
}
