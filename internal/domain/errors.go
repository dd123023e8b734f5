package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total_amount_minor must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка несоответствия количества позиций и суммы quantity.
	ErrTotalItemsMismatch = errors.New("total_items does not match items quantity sum")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrItemProductRequired = errors.New("item product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// ErrUnknownStatus возвращается для статуса вне перечисления.
	ErrUnknownStatus = errors.New("unknown order status")

	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition сигнализирует о переходе, запрещённом таблицей статусов.
	ErrInvalidTransition = errors.New("status transition is not allowed")
	// ErrInvalidArgument — некорректные параметры запроса, дошедшие до ядра
	// мимо шлюза (страховка, обычно отсекается раньше).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPersistence — фатальная для текущей операции ошибка хранилища.
	// Частичных записей при этом не остаётся.
	ErrPersistence = errors.New("persistence failed")

	// ErrProductValidation — корневая ошибка валидации товаров по каталогу.
	ErrProductValidation = errors.New("product validation failed")
	// ErrCatalogUnavailable — каталог недоступен (timeout/unreachable).
	ErrCatalogUnavailable = errors.New("product catalog unavailable")
)

// ValidationError описывает провал валидации запрошенных товаров:
// либо каталог недоступен (Cause), либо часть идентификаторов
// отсутствует в ответе каталога (MissingIDs).
type ValidationError struct {
	MissingIDs []string
	Cause      error
}

func (e *ValidationError) Error() string {
	if len(e.MissingIDs) > 0 {
		return fmt.Sprintf("products not found in catalog: %s", strings.Join(e.MissingIDs, ", "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("product validation failed: %v", e.Cause)
	}
	return ErrProductValidation.Error()
}

// Unwrap позволяет errors.Is находить и ErrProductValidation, и причину.
func (e *ValidationError) Unwrap() []error {
	errs := []error{ErrProductValidation}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// IsValidationFailed проверяет, относится ли ошибка к провалу валидации товаров.
func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrProductValidation)
}
