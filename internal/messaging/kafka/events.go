package kafka

import (
	"encoding/json"
	"time"
)

// EventType определяет тип события заказа, публикуемого наружу.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderPaid          EventType = "order.paid"
)

// Topics сервиса заказов.
const (
	// TopicOrderCommands — входящие команды от шлюза (createOrder и т.д.).
	TopicOrderCommands = "orders.commands"
	// TopicOrderReplies — топик ответов по умолчанию, если reply_to не задан.
	TopicOrderReplies = "orders.replies"
	// TopicOrderEvents — исходящие события жизненного цикла заказов.
	TopicOrderEvents = "orders.events"
	// TopicDeadLetterQueue — очередь для команд, которые не удалось обработать.
	TopicDeadLetterQueue = "orders.dlq"
)

// Имена команд соответствуют message-pattern'ам продуктового контракта.
const (
	CommandCreateOrder       = "createOrder"
	CommandFindAllOrders     = "findAllOrders"
	CommandFindOneOrder      = "findOneOrder"
	CommandUpdateOrderStatus = "updateOrderStatus"
	CommandMarkOrderPaid     = "markOrderPaid"
)

// Коды ошибок в ответах шлюза; стабильная часть контракта.
const (
	ErrCodeValidationFailed  = "validation_failed"
	ErrCodeNotFound          = "not_found"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeInvalidArgument   = "invalid_argument"
	ErrCodePersistenceFailed = "persistence_failed"
	ErrCodeInternal          = "internal"
)

// Kafka headers для retry логики consumer'а.
const (
	HeaderRetryCount = "x-retry-count"
)

// CommandEnvelope — входящий конверт команды.
type CommandEnvelope struct {
	Command       string          `json:"command"`
	CorrelationID string          `json:"correlation_id"`
	ReplyTo       string          `json:"reply_to,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// ReplyError — структурированная ошибка в ответе.
type ReplyError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	MissingIDs []string `json:"missing_ids,omitempty"`
}

// ReplyEnvelope — исходящий конверт ответа на команду.
type ReplyEnvelope struct {
	CorrelationID string          `json:"correlation_id"`
	OK            bool            `json:"ok"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         *ReplyError     `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// OrderEvent представляет событие жизненного цикла заказа.
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создаёт новое событие заказа.
func NewOrderEvent(eventType EventType, orderID string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}
