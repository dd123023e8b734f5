package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func seedOrder(t *testing.T, repo domain.OrderRepository, id string, status domain.OrderStatus, createdAt time.Time) domain.Order {
	t.Helper()

	order := domain.Order{
		ID:               id,
		Status:           status,
		TotalAmountMinor: 1000,
		TotalItems:       2,
		Items: []domain.OrderItem{
			{ID: id + "-item-1", ProductID: "p-1", Quantity: 2, PriceMinor: 500, CreatedAt: createdAt},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("create order %s: %v", id, err)
	}
	return order
}

func TestCreateAndGet(t *testing.T) {
	repo := NewOrderRepository()
	now := time.Now().UTC()
	created := seedOrder(t, repo, "order-1", domain.OrderStatusPending, now)

	got, err := repo.Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.ID != created.ID || got.TotalAmountMinor != 1000 || len(got.Items) != 1 {
		t.Fatalf("unexpected order: %+v", got)
	}

	// Мутация возвращённой копии не должна влиять на хранилище.
	got.Items[0].Quantity = 99
	again, err := repo.Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get order again: %v", err)
	}
	if again.Items[0].Quantity != 2 {
		t.Fatalf("repository copy was mutated from outside")
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	repo := NewOrderRepository()
	now := time.Now().UTC()
	seedOrder(t, repo, "order-1", domain.OrderStatusPending, now)

	err := repo.Create(context.Background(), domain.Order{ID: "order-1"})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := NewOrderRepository()
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestList_PaginationNoOverlap(t *testing.T) {
	repo := NewOrderRepository()
	base := time.Now().UTC()
	for i := 0; i < 15; i++ {
		seedOrder(t, repo, fmt.Sprintf("order-%02d", i), domain.OrderStatusPending, base.Add(time.Duration(i)*time.Second))
	}

	total, first, err := repo.List(context.Background(), domain.ListFilter{Offset: 0, Limit: 10})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if total != 15 || len(first) != 10 {
		t.Fatalf("page 1: total=%d len=%d", total, len(first))
	}

	total, second, err := repo.List(context.Background(), domain.ListFilter{Offset: 10, Limit: 10})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if total != 15 || len(second) != 5 {
		t.Fatalf("page 2: total=%d len=%d", total, len(second))
	}

	seen := make(map[string]bool)
	for _, order := range first {
		seen[order.ID] = true
	}
	for _, order := range second {
		if seen[order.ID] {
			t.Fatalf("order %s appears on both pages", order.ID)
		}
	}
}

func TestList_StatusFilter(t *testing.T) {
	repo := NewOrderRepository()
	now := time.Now().UTC()
	seedOrder(t, repo, "order-1", domain.OrderStatusPending, now)
	seedOrder(t, repo, "order-2", domain.OrderStatusConfirmed, now.Add(time.Second))
	seedOrder(t, repo, "order-3", domain.OrderStatusConfirmed, now.Add(2*time.Second))

	confirmed := domain.OrderStatusConfirmed
	total, page, err := repo.List(context.Background(), domain.ListFilter{Status: &confirmed, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(page) != 2 {
		t.Fatalf("filter: total=%d len=%d", total, len(page))
	}
	for _, order := range page {
		if order.Status != domain.OrderStatusConfirmed {
			t.Fatalf("unexpected status %s", order.Status)
		}
	}
	// Сортировка по убыванию created_at.
	if page[0].ID != "order-3" {
		t.Fatalf("expected newest first, got %s", page[0].ID)
	}
}

func TestList_OffsetBeyondTotal(t *testing.T) {
	repo := NewOrderRepository()
	seedOrder(t, repo, "order-1", domain.OrderStatusPending, time.Now().UTC())

	total, page, err := repo.List(context.Background(), domain.ListFilter{Offset: 10, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(page) != 0 {
		t.Fatalf("expected empty page with total=1, got total=%d len=%d", total, len(page))
	}
}

func TestUpdateStatus(t *testing.T) {
	repo := NewOrderRepository()
	created := seedOrder(t, repo, "order-1", domain.OrderStatusPending, time.Now().UTC().Add(-time.Minute))

	updated, err := repo.UpdateStatus(context.Background(), "order-1", domain.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at must be refreshed")
	}

	if _, err := repo.UpdateStatus(context.Background(), "missing", domain.OrderStatusConfirmed); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSetPaid(t *testing.T) {
	repo := NewOrderRepository()
	seedOrder(t, repo, "order-1", domain.OrderStatusConfirmed, time.Now().UTC())

	paidAt := time.Now().UTC()
	updated, err := repo.SetPaid(context.Background(), "order-1", paidAt)
	if err != nil {
		t.Fatalf("set paid: %v", err)
	}
	if !updated.Paid || updated.PaidAt == nil || !updated.PaidAt.Equal(paidAt) {
		t.Fatalf("paid fields not set: %+v", updated)
	}

	if _, err := repo.SetPaid(context.Background(), "missing", paidAt); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
