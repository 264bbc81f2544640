// Package config содержит логику чтения конфигурации сервиса отеля.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса отеля.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	GatewayAddress   string `env:"PAYMENT_GATEWAY_ADDRESS"`
	GatewayAccount   string `env:"PAYMENT_GATEWAY_ACCOUNT"`
	AuthSecret       string `env:"AUTH_SECRET"`
	RedisAddr        string `env:"REDIS_ADDR"`
	AMQPURL          string `env:"AMQP_URL"`
	Currency         string `env:"CURRENCY"`
	PhoneCountryCode string `env:"PHONE_COUNTRY_CODE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envGatewayAddress := cfg.GatewayAddress
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.GatewayAddress, "g", "", "payment gateway address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "token signing secret")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envGatewayAddress != "" {
		cfg.GatewayAddress = envGatewayAddress
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "hotelier-secret"
	}
	if cfg.Currency == "" {
		cfg.Currency = "UGX"
	}
	if cfg.PhoneCountryCode == "" {
		cfg.PhoneCountryCode = "+256"
	}

	return cfg, nil
}
