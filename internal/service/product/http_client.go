package product

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const (
	validatePath          = "/products/validate"
	defaultRequestTimeout = 3 * time.Second
)

// HTTPClient — клиент сервиса каталога поверх его batch-endpoint валидации.
// Ходит в чужой сервис: может таймаутить, отвечать частично или быть недоступен.
// Решение, что с этим делать, принимает оркестратор.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *log.Entry
}

// NewHTTPClient создаёт клиента каталога. timeout ограничивает каждый запрос
// сверх дедлайна контекста вызова; 0 означает значение по умолчанию.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log.WithField("component", "product-client"),
	}
}

type validateRequest struct {
	IDs []string `json:"ids"`
}

type productPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
}

// Validate запрашивает у каталога записи по списку идентификаторов.
// Отсутствующие товары просто не входят в ответ; ошибкой считается
// только провал вызова целиком.
func (c *HTTPClient) Validate(ctx context.Context, ids []string) ([]domain.Product, error) {
	body, err := json.Marshal(validateRequest{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("marshal validate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+validatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("ids", len(ids)).Warn("product catalog request failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Warn("product catalog returned unexpected status")
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrCatalogUnavailable, resp.StatusCode)
	}

	var payload []productPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrCatalogUnavailable, err)
	}

	products := make([]domain.Product, 0, len(payload))
	for _, p := range payload {
		products = append(products, domain.Product{
			ID:         p.ID,
			Name:       p.Name,
			PriceMinor: p.PriceMinor,
		})
	}

	return products, nil
}

var _ domain.ProductCatalog = (*HTTPClient)(nil)
