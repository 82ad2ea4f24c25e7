// Package config содержит логику чтения конфигурации сервиса dukapay.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса dukapay.
type Config struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	BackendAddress  string        `env:"BACKEND_ADDRESS"`
	RealtimeAddress string        `env:"REALTIME_ADDRESS"`
	SessionSecret   string        `env:"SESSION_SECRET"`
	PollDelay       time.Duration `env:"POLL_DELAY"`
	PollAttempts    int           `env:"POLL_ATTEMPTS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envBackendAddress := cfg.BackendAddress
	envRealtimeAddress := cfg.RealtimeAddress
	envSessionSecret := cfg.SessionSecret
	envPollDelay := cfg.PollDelay
	envPollAttempts := cfg.PollAttempts

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.BackendAddress, "b", "", "shop backend address (catalog, invoices, payment gateway)")
	flag.StringVar(&cfg.RealtimeAddress, "w", "", "realtime notification channel address")
	flag.StringVar(&cfg.SessionSecret, "s", "", "session token secret")
	flag.DurationVar(&cfg.PollDelay, "p", 10*time.Second, "delay before the deferred invoice status poll")
	flag.IntVar(&cfg.PollAttempts, "n", 1, "number of invoice status poll attempts")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envBackendAddress != "" {
		cfg.BackendAddress = envBackendAddress
	}
	if envRealtimeAddress != "" {
		cfg.RealtimeAddress = envRealtimeAddress
	}
	if envSessionSecret != "" {
		cfg.SessionSecret = envSessionSecret
	}
	if envPollDelay != 0 {
		cfg.PollDelay = envPollDelay
	}
	if envPollAttempts != 0 {
		cfg.PollAttempts = envPollAttempts
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = 10 * time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 1
	}

	return cfg, nil
}
