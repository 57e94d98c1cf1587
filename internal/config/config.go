package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del cliente y del daemon de auth.
type Config struct {
	HTTPPort            string `env:"HTTP_PORT" envDefault:"8080"`
	StoreBackend        string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisAddr           string `env:"REDIS_ADDR"`
	RedisPassword       string `env:"REDIS_PASSWORD"`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`
	DatabaseURL         string `env:"DATABASE_URL"`
	AuthBaseURL         string `env:"AUTH_BASE_URL" envDefault:"http://localhost:8080"`
	AuthJWTSecret       string `env:"AUTH_JWT_SECRET"`
	AuthTokenTTLMinutes int    `env:"AUTH_TOKEN_TTL_MINUTES" envDefault:"1440"`
	NotifyEnabled       bool   `env:"NOTIFY_ENABLED" envDefault:"true"`
	LogFile             string `env:"LOG_FILE"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
