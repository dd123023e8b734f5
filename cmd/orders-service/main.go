package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/app"
)

const (
	envLogLevel       = "ORDERS_LOG_LEVEL"
	envMetricsAddr    = "ORDERS_METRICS_ADDR"
	envKafkaBrokers   = "KAFKA_BROKERS"
	envConsumerGroup  = "ORDERS_CONSUMER_GROUP"
	envMaxRetries     = "ORDERS_MAX_RETRIES"
	envPostgresDSN    = "ORDERS_POSTGRES_DSN"
	envRedisAddr      = "ORDERS_REDIS_ADDR"
	envCacheTTL       = "ORDERS_CACHE_TTL"
	envProductURL     = "PRODUCT_SERVICE_URL"
	envProductTimeout = "PRODUCT_SERVICE_TIMEOUT"
)

type lookupFunc func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup lookupFunc) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if v, ok := lookup(envLogLevel); ok && v != "" {
		if level, err := log.ParseLevel(v); err == nil {
			log.SetLevel(level)
		}
	}
}

// readConfigFromEnv формирует конфигурацию приложения из переменных
// окружения. Некорректные значения не прерывают запуск: возвращаются
// предупреждения, а поле остаётся со значением по умолчанию.
func readConfigFromEnv(lookup lookupFunc) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	if v, ok := lookup(envMetricsAddr); ok && v != "" {
		cfg.MetricsAddr = v
	}
	if v, ok := lookup(envKafkaBrokers); ok && v != "" {
		cfg.KafkaBrokers = v
	}
	if v, ok := lookup(envConsumerGroup); ok && v != "" {
		cfg.ConsumerGroup = v
	}
	if v, ok := lookup(envMaxRetries); ok && v != "" {
		if retries, err := strconv.Atoi(v); err == nil && retries >= 0 {
			cfg.MaxRetries = retries
		} else {
			warnings = append(warnings, fmt.Sprintf("%s=%q ignored, must be a non-negative integer", envMaxRetries, v))
		}
	}
	if v, ok := lookup(envPostgresDSN); ok && v != "" {
		cfg.PostgresDSN = v
	}
	if v, ok := lookup(envRedisAddr); ok && v != "" {
		cfg.RedisAddr = v
	}
	if v, ok := lookup(envCacheTTL); ok && v != "" {
		if ttl, err := time.ParseDuration(v); err == nil && ttl > 0 {
			cfg.CacheTTL = ttl
		} else {
			warnings = append(warnings, fmt.Sprintf("%s=%q ignored, must be a positive duration", envCacheTTL, v))
		}
	}
	if v, ok := lookup(envProductURL); ok && v != "" {
		cfg.ProductServiceURL = v
	}
	if v, ok := lookup(envProductTimeout); ok && v != "" {
		if timeout, err := time.ParseDuration(v); err == nil && timeout > 0 {
			cfg.ProductTimeout = timeout
		} else {
			warnings = append(warnings, fmt.Sprintf("%s=%q ignored, must be a positive duration", envProductTimeout, v))
		}
	}

	return cfg, warnings
}

func main() {
	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"metrics_addr":   cfg.MetricsAddr,
		"kafka_brokers":  cfg.KafkaBrokers,
		"consumer_group": cfg.ConsumerGroup,
	}).Info("запускаем сервис заказов")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("сервис заказов остановлен")
}
