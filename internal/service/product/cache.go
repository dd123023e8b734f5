package product

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const defaultCacheTTL = 5 * time.Minute

// cachedCatalog — read-through кэш поверх каталога. Снимает нагрузку с каталога
// при read-time разрешении имён; ошибки Redis не фатальны и приводят
// к сквозному походу в каталог.
type cachedCatalog struct {
	next        domain.ProductCatalog
	redisClient *redis.Client
	ttl         time.Duration
	logger      *log.Entry
}

// NewCachedCatalog оборачивает каталог кэшем в Redis с потоварными ключами.
// ttl<=0 означает значение по умолчанию.
func NewCachedCatalog(next domain.ProductCatalog, redisClient *redis.Client, ttl time.Duration) domain.ProductCatalog {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &cachedCatalog{
		next:        next,
		redisClient: redisClient,
		ttl:         ttl,
		logger:      log.WithField("component", "product-cache"),
	}
}

func cacheKey(id string) string {
	return "product:" + id
}

// Validate отдаёт закэшированные записи и доходит до каталога только
// за промахами. Ответ собирается из обоих источников.
func (c *cachedCatalog) Validate(ctx context.Context, ids []string) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(ids))
	missed := make([]string, 0, len(ids))

	for _, id := range ids {
		val, err := c.redisClient.Get(ctx, cacheKey(id)).Result()
		if err != nil {
			if err != redis.Nil {
				c.logger.WithError(err).Debug("product cache read failed")
			}
			missed = append(missed, id)
			continue
		}
		var p domain.Product
		if err := json.Unmarshal([]byte(val), &p); err != nil {
			missed = append(missed, id)
			continue
		}
		products = append(products, p)
	}

	if len(missed) == 0 {
		return products, nil
	}

	fetched, err := c.next.Validate(ctx, missed)
	if err != nil {
		return nil, err
	}

	for _, p := range fetched {
		if data, err := json.Marshal(p); err == nil {
			if err := c.redisClient.Set(ctx, cacheKey(p.ID), data, c.ttl).Err(); err != nil {
				c.logger.WithError(err).Debug("product cache write failed")
			}
		}
	}

	return append(products, fetched...), nil
}

var _ domain.ProductCatalog = (*cachedCatalog)(nil)
