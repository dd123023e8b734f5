package product

import (
	"context"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// MockCatalog — конфигурируемая заглушка ProductCatalog для тестов
// и локальной разработки без внешнего каталога.
type MockCatalog struct {
	Products map[string]domain.Product
	Err      error

	ValidateCalls int
	LastIDs       []string
}

// NewMockCatalog возвращает mock с успешным сценарием по умолчанию.
func NewMockCatalog(products ...domain.Product) *MockCatalog {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &MockCatalog{Products: byID}
}

// Validate возвращает найденные записи, имитируя поведение каталога:
// неизвестные id молча отсутствуют в ответе.
func (m *MockCatalog) Validate(_ context.Context, ids []string) ([]domain.Product, error) {
	m.ValidateCalls++
	m.LastIDs = append([]string(nil), ids...)

	if m.Err != nil {
		return nil, m.Err
	}

	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.Products[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

var _ domain.ProductCatalog = (*MockCatalog)(nil)
