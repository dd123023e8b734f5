package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create атомарно вставляет заказ и все его позиции одной транзакцией:
// при сбое на любом шаге не остаётся ни одной строки этой операции.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(opCtx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrPersistence, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(opCtx, `
		INSERT INTO orders (
			id, status, total_amount_minor, total_items, paid, paid_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		order.ID, string(order.Status), order.TotalAmountMinor, order.TotalItems,
		order.Paid, order.PaidAt, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert order: %w", domain.ErrPersistence, err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(opCtx, `
			INSERT INTO order_items (
				id, order_id, product_id, quantity, price_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			item.ID, order.ID, item.ProductID, item.Quantity, item.PriceMinor, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("%w: insert order item: %w", domain.ErrPersistence, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit create order: %w", domain.ErrPersistence, err)
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := r.scanOrder(r.db.QueryRowContext(opCtx, `
		SELECT id, status, total_amount_minor, total_items, paid, paid_at, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(opCtx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.ListFilter) (int, []domain.Order, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		total int
		err   error
	)
	if filter.Status != nil {
		err = r.db.QueryRowContext(opCtx, `SELECT COUNT(*) FROM orders WHERE status = $1`, string(*filter.Status)).Scan(&total)
	} else {
		err = r.db.QueryRowContext(opCtx, `SELECT COUNT(*) FROM orders`).Scan(&total)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("count orders: %w", err)
	}

	query := `
		SELECT id, status, total_amount_minor, total_items, paid, paid_at, created_at, updated_at
		FROM orders
	`
	args := make([]any, 0, 3)
	if filter.Status != nil {
		query += ` WHERE status = $1 ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3`
		args = append(args, string(*filter.Status), filter.Offset, filter.Limit)
	} else {
		query += ` ORDER BY created_at DESC, id DESC OFFSET $1 LIMIT $2`
		args = append(args, filter.Offset, filter.Limit)
	}

	rows, err := r.db.QueryContext(opCtx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return 0, nil, fmt.Errorf("scan order row: %w", err)
		}
		items, err := r.loadItems(opCtx, order.ID)
		if err != nil {
			return 0, nil, err
		}
		order.Items = items
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return total, orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := r.scanOrder(r.db.QueryRowContext(opCtx, `
		UPDATE orders
		SET status = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, status, total_amount_minor, total_items, paid, paid_at, created_at, updated_at
	`, id, string(status)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	items, err := r.loadItems(opCtx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) SetPaid(ctx context.Context, id string, paidAt time.Time) (domain.Order, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := r.scanOrder(r.db.QueryRowContext(opCtx, `
		UPDATE orders
		SET paid = TRUE,
		    paid_at = $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, status, total_amount_minor, total_items, paid, paid_at, created_at, updated_at
	`, id, paidAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("mark order paid: %w", err)
	}

	items, err := r.loadItems(opCtx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *orderRepository) scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
		paidAt sql.NullTime
	)
	if err := row.Scan(
		&order.ID, &status, &order.TotalAmountMinor, &order.TotalItems,
		&order.Paid, &paidAt, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	if paidAt.Valid {
		t := paidAt.Time
		order.PaidAt = &t
	}
	return order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, price_minor, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.PriceMinor, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
