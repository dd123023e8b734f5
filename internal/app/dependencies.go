package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/product"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
	"github.com/vladislavdragonenkov/orders/internal/storage/postgres"
)

// Dependencies содержит собранные зависимости сервиса.
type Dependencies struct {
	Repo    domain.OrderRepository
	Catalog domain.ProductCatalog
	Store   *postgres.Store // nil при in-memory хранилище
	Redis   *redis.Client   // nil, если кеш отключён
	Logger  *log.Entry
}

// NewDependencies собирает хранилище и каталог по конфигурации.
// NOTE: без PostgresDSN и ProductServiceURL поднимается режим разработки
// с in-memory хранилищем и mock-каталогом.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		deps.Store = store
		deps.Repo = postgres.NewOrderRepository(store)
		logger.Info("postgres order repository initialized")
	} else {
		deps.Repo = memory.NewOrderRepository()
		logger.Warn("using in-memory order repository, data will not survive restart")
	}

	deps.Catalog = buildCatalog(cfg, deps, logger)

	return deps, nil
}

func buildCatalog(cfg Config, deps *Dependencies, logger *log.Entry) domain.ProductCatalog {
	if cfg.ProductServiceURL == "" {
		logger.Warn("product service url is not set, using mock catalog with demo products")
		return product.NewMockCatalog(
			domain.Product{ID: "demo-1", Name: "Demo Widget", PriceMinor: 1999},
			domain.Product{ID: "demo-2", Name: "Demo Gadget", PriceMinor: 4950},
		)
	}

	var catalog domain.ProductCatalog = product.NewHTTPClient(cfg.ProductServiceURL, cfg.ProductTimeout)
	logger.WithField("url", cfg.ProductServiceURL).Info("product catalog client initialized")

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		deps.Redis = client
		catalog = product.NewCachedCatalog(catalog, client, cfg.CacheTTL)
		logger.WithField("addr", cfg.RedisAddr).Info("product catalog cache enabled")
	}

	return catalog
}

// Close освобождает внешние ресурсы зависимостей.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}
