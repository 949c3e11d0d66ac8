// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
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
	Env                     string `yaml:"env"`
	StorageConnectionString string `yaml:"storage_connection_string"`
	RabbitConnection        string `yaml:"rabbit_connection"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Session                 `yaml:"session"`
	Entitlement             `yaml:"entitlement"`
	Billing                 `yaml:"billing"`
	SMTP                    `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// Session параметры жизненного цикла сессии: общий таймаут бездействия,
// окно предупреждения в конце таймаута, абсолютный потолок простоя
// и период фоновой перепроверки.
type Session struct {
	Timeout            time.Duration `yaml:"timeout" env-default:"4h"`
	WarningWindow      time.Duration `yaml:"warning_window" env-default:"10m"`
	IdleCeiling        time.Duration `yaml:"idle_ceiling" env-default:"30m"`
	RevalidateInterval time.Duration `yaml:"revalidate_interval" env-default:"5m"`
}

// Entitlement параметры сверки состояния доступа.
type Entitlement struct {
	RefreshCooldown time.Duration `yaml:"refresh_cooldown" env-default:"5s"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env-default:"30s"`
}

// Billing параметры клиента платёжного бэкенда.
type Billing struct {
	BaseURL        string        `yaml:"base_url"`
	Secret         string        `yaml:"secret"`
	RequestTimeout time.Duration `yaml:"request_timeout" env-default:"30s"`
}

// SMTP параметры сервера исходящей почты.
type SMTP struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort string `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"RabbitConnection: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Session:\n"+
			"  Timeout: %s\n"+
			"  WarningWindow: %s\n"+
			"  IdleCeiling: %s\n"+
			"Entitlement:\n"+
			"  RefreshCooldown: %s\n"+
			"  RefreshInterval: %s\n"+
			"Billing:\n"+
			"  BaseURL: %s\n",
		c.Env,
		c.StorageConnectionString,
		c.RabbitConnection,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.Session.Timeout,
		c.WarningWindow,
		c.IdleCeiling,
		c.RefreshCooldown,
		c.RefreshInterval,
		c.BaseURL,
	)
}
