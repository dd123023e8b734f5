package app

import "time"

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	// MetricsAddr — адрес HTTP-сервера метрик и health-проб.
	MetricsAddr string

	// KafkaBrokers — список брокеров через запятую. Пустое значение
	// отключает командный шлюз и события: остаются только метрики.
	KafkaBrokers  string
	ConsumerGroup string
	MaxRetries    int

	// PostgresDSN — DSN основного хранилища. Пустое значение включает
	// in-memory хранилище (режим разработки).
	PostgresDSN string

	// RedisAddr — адрес Redis для кеша каталога. Пустое значение
	// отключает кеширование.
	RedisAddr string
	CacheTTL  time.Duration

	// ProductServiceURL — базовый URL каталога товаров. Пустое значение
	// включает mock-каталог с демо-товарами (режим разработки).
	ProductServiceURL string
	ProductTimeout    time.Duration
}

// DefaultConfig возвращает конфигурацию режима разработки:
// in-memory хранилище, mock-каталог, без Kafka.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:    ":9090",
		ConsumerGroup:  "orders-service",
		MaxRetries:     3,
		CacheTTL:       5 * time.Minute,
		ProductTimeout: 5 * time.Second,
	}
}
