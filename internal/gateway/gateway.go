package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
)

// replyPublisher — минимальный контракт публикации ответов.
// Ему удовлетворяет kafka.Producer.
type replyPublisher interface {
	Publish(topic string, key string, value interface{}) error
}

// Gateway принимает конверты команд из Kafka, диспетчеризует их в оркестратор
// заказов и публикует конверт ответа в reply_to отправителя.
type Gateway struct {
	service   *orders.Service
	publisher replyPublisher
	logger    *log.Entry
}

// NewGateway создаёт шлюз команд поверх оркестратора.
func NewGateway(service *orders.Service, publisher replyPublisher, logger *log.Entry) *Gateway {
	if logger == nil {
		logger = log.New().WithField("component", "gateway")
	}
	return &Gateway{
		service:   service,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleMessage — kafka.MessageHandler для топика команд. Бизнес-ошибки
// превращаются в error-ответ и не считаются сбоем обработки; ошибка
// возвращается только если не удалось ни разобрать конверт, ни
// опубликовать ответ.
func (g *Gateway) HandleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseCommandEnvelope(message)
	if err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"topic":  message.Topic,
			"offset": message.Offset,
		}).Error("malformed command envelope")
		return err
	}

	logger := g.logger.WithFields(log.Fields{
		"command":        envelope.Command,
		"correlation_id": envelope.CorrelationID,
	})

	data, cmdErr := g.dispatch(ctx, envelope)
	if cmdErr != nil {
		logger.WithError(cmdErr).Warn("command failed")
		return g.replyError(envelope, cmdErr)
	}

	return g.replyOK(envelope, data)
}

func (g *Gateway) dispatch(ctx context.Context, envelope *kafka.CommandEnvelope) (interface{}, error) {
	switch envelope.Command {
	case kafka.CommandCreateOrder:
		return g.handleCreate(ctx, envelope.Payload)
	case kafka.CommandFindAllOrders:
		return g.handleFindAll(ctx, envelope.Payload)
	case kafka.CommandFindOneOrder:
		return g.handleFindOne(ctx, envelope.Payload)
	case kafka.CommandUpdateOrderStatus:
		return g.handleUpdateStatus(ctx, envelope.Payload)
	case kafka.CommandMarkOrderPaid:
		return g.handleMarkPaid(ctx, envelope.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", domain.ErrInvalidArgument, envelope.Command)
	}
}

func (g *Gateway) handleCreate(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req createOrderPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	items := make([]orders.CreateItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.CreateItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := g.service.Create(ctx, orders.CreateRequest{Items: items})
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

func (g *Gateway) handleFindAll(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req := findAllPayload{Page: 1, Limit: 10}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	var status *domain.OrderStatus
	if req.Status != "" {
		parsed, err := domain.ParseStatus(req.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
		status = &parsed
	}

	result, err := g.service.List(ctx, orders.ListRequest{
		Page:   req.Page,
		Limit:  req.Limit,
		Status: status,
	})
	if err != nil {
		return nil, err
	}
	return toListDTO(result), nil
}

func (g *Gateway) handleFindOne(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req orderIDPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if req.ID == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidArgument)
	}

	order, err := g.service.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

func (g *Gateway) handleUpdateStatus(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req updateStatusPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if req.ID == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidArgument)
	}
	if req.Status == "" {
		return nil, fmt.Errorf("%w: status is required", domain.ErrInvalidArgument)
	}

	order, err := g.service.UpdateStatus(ctx, req.ID, domain.OrderStatus(req.Status))
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

func (g *Gateway) handleMarkPaid(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var req markPaidPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if req.ID == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrInvalidArgument)
	}

	var paidAt time.Time
	if req.PaidAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("%w: paid_at must be RFC3339: %v", domain.ErrInvalidArgument, err)
		}
		paidAt = parsed
	}

	order, err := g.service.MarkPaid(ctx, req.ID, paidAt)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

func (g *Gateway) replyOK(envelope *kafka.CommandEnvelope, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal reply data: %w", err)
	}

	return g.publish(envelope, kafka.ReplyEnvelope{
		CorrelationID: envelope.CorrelationID,
		OK:            true,
		Data:          raw,
		Timestamp:     time.Now().UTC(),
	})
}

func (g *Gateway) replyError(envelope *kafka.CommandEnvelope, cmdErr error) error {
	replyErr := &kafka.ReplyError{
		Code:    errorCode(cmdErr),
		Message: cmdErr.Error(),
	}

	var vErr *domain.ValidationError
	if errors.As(cmdErr, &vErr) {
		replyErr.MissingIDs = vErr.MissingIDs
	}

	return g.publish(envelope, kafka.ReplyEnvelope{
		CorrelationID: envelope.CorrelationID,
		OK:            false,
		Error:         replyErr,
		Timestamp:     time.Now().UTC(),
	})
}

func (g *Gateway) publish(envelope *kafka.CommandEnvelope, reply kafka.ReplyEnvelope) error {
	topic := envelope.ReplyTo
	if topic == "" {
		topic = kafka.TopicOrderReplies
	}

	if err := g.publisher.Publish(topic, envelope.CorrelationID, reply); err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}
	return nil
}

// errorCode переводит доменную ошибку в стабильный код контракта ответов.
func errorCode(err error) string {
	switch {
	case domain.IsValidationFailed(err):
		return kafka.ErrCodeValidationFailed
	case errors.Is(err, domain.ErrOrderNotFound):
		return kafka.ErrCodeNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return kafka.ErrCodeInvalidTransition
	case errors.Is(err, domain.ErrInvalidArgument):
		return kafka.ErrCodeInvalidArgument
	case errors.Is(err, domain.ErrPersistence):
		return kafka.ErrCodePersistenceFailed
	default:
		return kafka.ErrCodeInternal
	}
}
