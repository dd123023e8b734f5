package domain

import "context"

// Product — запись внешнего каталога, минимально необходимая ядру:
// идентификатор, отображаемое имя и текущая цена в минимальных единицах.
type Product struct {
	ID         string
	Name       string
	PriceMinor int64
}

// ProductCatalog описывает взаимодействие с сервисом каталога товаров.
// Каталог — независимый источник истины о существовании товара и его цене.
type ProductCatalog interface {
	// Validate возвращает подмножество найденных записей по списку идентификаторов.
	// Отсутствующие id просто не попадают в результат; ошибка означает провал
	// вызова целиком. Вызов обязан уважать дедлайн контекста.
	Validate(ctx context.Context, ids []string) ([]Product, error)
}
