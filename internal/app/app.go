package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/gateway"
	healthcheck "github.com/vladislavdragonenkov/orders/internal/health"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/version"
)

// Run собирает зависимости, запускает командный шлюз и HTTP-сервер
// метрик, после чего блокируется до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		return fmt.Errorf("init kafka producer: %w", err)
	}
	defer closeKafka(producer, logger)

	var service *orders.Service
	if producer != nil {
		service = orders.NewServiceWithEvents(deps.Repo, deps.Catalog, producer, logger.WithField("layer", "orders"))
	} else {
		service = orders.NewService(deps.Repo, deps.Catalog, logger.WithField("layer", "orders"))
	}

	healthHandler := buildHealthHandler(deps)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	if producer == nil {
		logger.Warn("kafka brokers are not configured, command gateway is disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	gw := gateway.NewGateway(service, producer, logger.WithField("layer", "gateway"))
	consumer, err := initCommandConsumer(cfg, gw.HandleMessage, producer, logger)
	if err != nil {
		return fmt.Errorf("init kafka consumer: %w", err)
	}

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("start kafka consumer: %w", err)
	}

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем consumer")

	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("consumer stopped with error")
	}

	return ctx.Err()
}

// buildHealthHandler регистрирует проверки реально включённых зависимостей.
func buildHealthHandler(deps *Dependencies) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.String())

	if deps.Store != nil {
		handler.Register("postgres", deps.Store.Ping)
	}
	if deps.Redis != nil {
		handler.RegisterOptional("redis", func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}

	return handler
}

// startMetricsServer запускает HTTP-обработчики /metrics и health-проб.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
