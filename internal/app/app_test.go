package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "orders-service", cfg.ConsumerGroup)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Empty(t, cfg.KafkaBrokers, "Kafka по умолчанию выключен")
	assert.Empty(t, cfg.PostgresDSN, "по умолчанию in-memory хранилище")
}

func TestNewDependenciesDevMode(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)
	defer deps.Close()

	require.NotNil(t, deps.Repo)
	require.NotNil(t, deps.Catalog)
	assert.Nil(t, deps.Store)
	assert.Nil(t, deps.Redis)

	// Mock-каталог отвечает демо-товарами.
	products, err := deps.Catalog.Validate(context.Background(), []string{"demo-1"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Demo Widget", products[0].Name)
}

func TestNewDependenciesHTTPCatalog(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProductServiceURL = "http://catalog.local"

	deps, err := NewDependencies(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer deps.Close()

	require.NotNil(t, deps.Catalog)
	assert.Nil(t, deps.Redis, "кеш не включается без RedisAddr")
}

func TestBuildHealthHandlerDevMode(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)
	defer deps.Close()

	handler := buildHealthHandler(deps)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDependenciesRepoRoundTrip(t *testing.T) {
	deps, err := NewDependencies(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)
	defer deps.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	order := domain.Order{
		ID:               "c0a80101-0000-4000-8000-000000000001",
		Status:           domain.OrderStatusPending,
		TotalAmountMinor: 100,
		TotalItems:       1,
		Items: []domain.OrderItem{{
			ID:         "c0a80101-0000-4000-8000-000000000002",
			ProductID:  "demo-1",
			Quantity:   1,
			PriceMinor: 100,
			CreatedAt:  now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, deps.Repo.Create(ctx, order))
	got, err := deps.Repo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}
