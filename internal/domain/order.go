package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, подтверждение ещё не получено.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed — заказ подтверждён и передан в исполнение.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusDelivered — заказ доставлен клиенту; терминальный статус.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён до доставки; терминальный статус.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// statusTransitions задаёт таблицу допустимых переходов. Политика closed-world:
// переход, которого нет в таблице, запрещён. Терминальные статусы не имеют преемников.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// ParseStatus проверяет строковое значение и возвращает типизированный статус.
func ParseStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if _, ok := statusTransitions[status]; !ok {
		return "", ErrUnknownStatus
	}
	return status, nil
}

// IsTerminal сообщает, является ли статус терминальным.
func (s OrderStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// CanTransitionTo проверяет переход по таблице. Переход в текущий статус
// таблицей не описывается: он обрабатывается выше как идемпотентный no-op.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации строки в хранилище.
	ID string
	// ProductID — слабая ссылка на товар во внешнем каталоге.
	// Существование проверяется только в момент создания заказа.
	ProductID string
	// Quantity — количество единиц товара, строго положительное.
	Quantity int32
	// PriceMinor — снапшот цены каталога на момент валидации,
	// в минимальных денежных единицах. После создания не пересчитывается.
	PriceMinor int64
	// Name не хранится в базе и разрешается из каталога при чтении.
	Name string
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
// TotalAmountMinor и TotalItems — производные write-once значения,
// вычисляемые строго из валидированного набора позиций, а не из входа клиента.
type Order struct {
	ID               string
	Status           OrderStatus
	TotalAmountMinor int64
	TotalItems       int32
	Paid             bool
	PaidAt           *time.Time
	Items            []OrderItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if _, ok := statusTransitions[o.Status]; !ok {
		errs = append(errs, ErrUnknownStatus)
	}

	// Сверяем производные значения с суммами по позициям.
	var amount int64
	var quantity int32
	for _, item := range o.Items {
		if item.ProductID == "" {
			errs = append(errs, ErrItemProductRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		amount += int64(item.Quantity) * item.PriceMinor
		quantity += item.Quantity
	}
	if amount != o.TotalAmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}
	if quantity != o.TotalItems {
		errs = append(errs, ErrTotalItemsMismatch)
	}

	return errs
}
