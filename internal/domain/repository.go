package domain

import (
	"context"
	"time"
)

// ListFilter описывает параметры постраничной выборки заказов.
type ListFilter struct {
	// Status опционально сужает выборку до одного статуса.
	Status *OrderStatus
	// Offset — количество пропускаемых строк, (page-1)*limit.
	Offset int
	// Limit — размер страницы, строго положительный.
	Limit int
}

// OrderRepository описывает требования к хранилищу заказов.
// Хранилище — единственный арбитр атомарности: Create обязан сделать
// заказ и все его позиции видимыми вместе или не видимыми вовсе.
type OrderRepository interface {
	// Create атомарно сохраняет заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает общее число подходящих заказов и страницу выборки,
	// отсортированную по убыванию created_at.
	List(ctx context.Context, filter ListFilter) (int, []Order, error)
	// UpdateStatus меняет статус заказа по идентификатору, обновляя updated_at,
	// и возвращает обновлённый заказ. Валидность перехода проверяет ядро.
	UpdateStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
	// SetPaid помечает заказ оплаченным, фиксируя paid_at.
	SetPaid(ctx context.Context, id string, paidAt time.Time) (Order, error)
}
