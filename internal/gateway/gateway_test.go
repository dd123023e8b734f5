package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/service/product"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

type publishedMessage struct {
	Topic string
	Key   string
	Reply kafka.ReplyEnvelope
}

// recordingPublisher захватывает опубликованные ответы.
type recordingPublisher struct {
	messages []publishedMessage
	err      error
}

func (p *recordingPublisher) Publish(topic string, key string, value interface{}) error {
	if p.err != nil {
		return p.err
	}

	reply, ok := value.(kafka.ReplyEnvelope)
	if !ok {
		return fmt.Errorf("unexpected value type %T", value)
	}
	p.messages = append(p.messages, publishedMessage{Topic: topic, Key: key, Reply: reply})
	return nil
}

func (p *recordingPublisher) last(t *testing.T) publishedMessage {
	t.Helper()
	require.NotEmpty(t, p.messages)
	return p.messages[len(p.messages)-1]
}

func newTestGateway(catalog domain.ProductCatalog) (*Gateway, *recordingPublisher, *orders.Service) {
	repo := memory.NewOrderRepository()
	svc := orders.NewServiceWithoutMetrics(repo, catalog, nil)
	publisher := &recordingPublisher{}
	return NewGateway(svc, publisher, nil), publisher, svc
}

func commandMessage(t *testing.T, command, correlationID, replyTo string, payload interface{}) *sarama.ConsumerMessage {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	value, err := json.Marshal(kafka.CommandEnvelope{
		Command:       command,
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Payload:       raw,
	})
	require.NoError(t, err)

	return &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderCommands,
		Value: value,
	}
}

func testCatalog() *product.MockCatalog {
	return product.NewMockCatalog(
		domain.Product{ID: "p1", Name: "Widget", PriceMinor: 500},
		domain.Product{ID: "p2", Name: "Gadget", PriceMinor: 1250},
	)
}

func TestHandleCreateOrder(t *testing.T) {
	gw, publisher, _ := newTestGateway(testCatalog())

	msg := commandMessage(t, kafka.CommandCreateOrder, "corr-1", "", map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "p1", "quantity": 2},
			{"product_id": "p2", "quantity": 1},
		},
	})

	require.NoError(t, gw.HandleMessage(context.Background(), msg))

	published := publisher.last(t)
	assert.Equal(t, kafka.TopicOrderReplies, published.Topic)
	assert.Equal(t, "corr-1", published.Key)
	assert.Equal(t, "corr-1", published.Reply.CorrelationID)
	require.True(t, published.Reply.OK)

	var dto orderDTO
	require.NoError(t, json.Unmarshal(published.Reply.Data, &dto))
	assert.Equal(t, "PENDING", dto.Status)
	assert.Equal(t, int64(2250), dto.TotalAmountMinor)
	assert.Equal(t, int32(3), dto.TotalItems)
	require.Len(t, dto.Items, 2)
	assert.Equal(t, "Widget", dto.Items[0].Name)
}

func TestHandleCreateOrderValidationFailure(t *testing.T) {
	gw, publisher, _ := newTestGateway(testCatalog())

	msg := commandMessage(t, kafka.CommandCreateOrder, "corr-2", "", map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "ghost", "quantity": 1},
		},
	})

	require.NoError(t, gw.HandleMessage(context.Background(), msg))

	published := publisher.last(t)
	assert.False(t, published.Reply.OK)
	require.NotNil(t, published.Reply.Error)
	assert.Equal(t, kafka.ErrCodeValidationFailed, published.Reply.Error.Code)
	assert.Equal(t, []string{"ghost"}, published.Reply.Error.MissingIDs)
}

func TestHandleFindOne(t *testing.T) {
	gw, publisher, svc := newTestGateway(testCatalog())
	ctx := context.Background()

	created, err := svc.Create(ctx, orders.CreateRequest{
		Items: []orders.CreateItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	msg := commandMessage(t, kafka.CommandFindOneOrder, "corr-3", "reply.custom", map[string]string{
		"id": created.ID,
	})
	require.NoError(t, gw.HandleMessage(ctx, msg))

	published := publisher.last(t)
	assert.Equal(t, "reply.custom", published.Topic, "reply_to имеет приоритет над топиком по умолчанию")
	require.True(t, published.Reply.OK)

	var dto orderDTO
	require.NoError(t, json.Unmarshal(published.Reply.Data, &dto))
	assert.Equal(t, created.ID, dto.ID)
}

func TestHandleFindOneNotFound(t *testing.T) {
	gw, publisher, _ := newTestGateway(testCatalog())

	msg := commandMessage(t, kafka.CommandFindOneOrder, "corr-4", "", map[string]string{
		"id": "11111111-1111-1111-1111-111111111111",
	})
	require.NoError(t, gw.HandleMessage(context.Background(), msg))

	published := publisher.last(t)
	assert.False(t, published.Reply.OK)
	assert.Equal(t, kafka.ErrCodeNotFound, published.Reply.Error.Code)
}

func TestHandleFindAllDefaults(t *testing.T) {
	gw, publisher, svc := newTestGateway(testCatalog())
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := svc.Create(ctx, orders.CreateRequest{
			Items: []orders.CreateItem{{ProductID: "p1", Quantity: 1}},
		})
		require.NoError(t, err)
	}

	// Пустой payload означает первую страницу с лимитом 10.
	msg := commandMessage(t, kafka.CommandFindAllOrders, "corr-5", "", map[string]interface{}{})
	require.NoError(t, gw.HandleMessage(ctx, msg))

	published := publisher.last(t)
	require.True(t, published.Reply.OK)

	var dto listDTO
	require.NoError(t, json.Unmarshal(published.Reply.Data, &dto))
	assert.Len(t, dto.Data, 10)
	assert.Equal(t, 12, dto.Meta.Total)
	assert.Equal(t, 1, dto.Meta.Page)
	assert.Equal(t, 2, dto.Meta.LastPage)
}

func TestHandleFindAllStatusFilter(t *testing.T) {
	gw, publisher, svc := newTestGateway(testCatalog())
	ctx := context.Background()

	first, err := svc.Create(ctx, orders.CreateRequest{
		Items: []orders.CreateItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, orders.CreateRequest{
		Items: []orders.CreateItem{{ProductID: "p2", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, first.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)

	msg := commandMessage(t, kafka.CommandFindAllOrders, "corr-6", "", map[string]interface{}{
		"status": "CONFIRMED",
	})
	require.NoError(t, gw.HandleMessage(ctx, msg))

	published := publisher.last(t)
	require.True(t, published.Reply.OK)

	var dto listDTO
	require.NoError(t, json.Unmarshal(published.Reply.Data, &dto))
	require.Len(t, dto.Data, 1)
	assert.Equal(t, first.ID, dto.Data[0].ID)
}

func TestHandleFindAllUnknownStatus(t *testing.T) {
	gw, publisher, _ := newTestGateway(testCatalog())

	msg := commandMessage(t, kafka.CommandFindAllOrders, "corr-7", "", map[string]interface{}{
		"status": "SHIPPED",
	})
	require.NoError(t, gw.HandleMessage(context.Background(), msg))

	published := publisher.last(t)
	assert.False(t, published.Reply.OK)
	assert.Equal(t, kafka.ErrCodeInvalidArgument, published.Reply.Error.Code)
}

func TestHandleUpdateStatus(t *testing.T) {
	gw, publisher, svc := newTestGateway(testCatalog())
	ctx := context.Background()

	created, err := svc.Create(ctx, orders.CreateRequest{
		Items: []orders.CreateItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	msg := commandMessage(t, kafka.CommandUpdateOrderStatus, "corr-8", "", map[string]string{
		"id":     created.ID,
		"status": "CONFIRMED",
	})
	require.NoError(t, gw.HandleMessage(ctx, msg))

	published := publisher.last(t)
	require.True(t, published.Reply.OK)

	var dto orderDTO
	require.NoError(t, json.Unmarshal(published.Reply.Data, &dto))
	assert.Equal(t, "CONFIRMED", dto.Status)
}

func TestHandleUpdateStatusInvalidTransition(t *testing.T) {
	gw, publisher, svc := newTestGateway(testCatalog())
	ctx := context.Background()

	created, err := svc.Create(ctx, orders.CreateRequest{
		Items: []orders.CreateItem{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	msg := commandMessage(t, kafka.CommandUpdateOrderStatus, "corr-9", "", map[string]string{
		"id":     created.ID,
		"status": "DELIVERED",
	})
	require.NoError(t, gw.HandleMessage(ctx, msg))

	published := publisher.last(t)
	assert.False(t, published.Reply.OK)
	assert.Equal(t, kafka.ErrCodeInvalidTransition, published.Reply.Error.Code)
}

func TestHandleMarkPaid(t *testing.T) {
	gw, publisher, svc := newTestGateway(testCatalog())
	ctx := context.Background()

	created, err := svc.Create(ctx, orders.CreateRequest{
		Items: []orders.CreateItem{{ProductID: "p2", Quantity: 1}},
	})
	require.NoError(t, err)

	msg := commandMessage(t, kafka.CommandMarkOrderPaid, "corr-10", "", map[string]string{
		"id":      created.ID,
		"paid_at": "2025-05-12T10:30:00Z",
	})
	require.NoError(t, gw.HandleMessage(ctx, msg))

	published := publisher.last(t)
	require.True(t, published.Reply.OK)

	var dto orderDTO
	require.NoError(t, json.Unmarshal(published.Reply.Data, &dto))
	assert.True(t, dto.Paid)
	require.NotNil(t, dto.PaidAt)
}

func TestHandleUnknownCommand(t *testing.T) {
	gw, publisher, _ := newTestGateway(testCatalog())

	msg := commandMessage(t, "dropOrder", "corr-11", "", map[string]string{})
	require.NoError(t, gw.HandleMessage(context.Background(), msg))

	published := publisher.last(t)
	assert.False(t, published.Reply.OK)
	assert.Equal(t, kafka.ErrCodeInvalidArgument, published.Reply.Error.Code)
}

func TestHandleMalformedEnvelope(t *testing.T) {
	gw, publisher, _ := newTestGateway(testCatalog())

	msg := &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderCommands,
		Value: []byte("not-json"),
	}
	err := gw.HandleMessage(context.Background(), msg)
	assert.Error(t, err, "нечитаемый конверт должен уйти в retry/DLQ")
	assert.Empty(t, publisher.messages)
}

func TestHandlePublishFailurePropagates(t *testing.T) {
	gw, publisher, _ := newTestGateway(testCatalog())
	publisher.err = fmt.Errorf("broker down")

	msg := commandMessage(t, kafka.CommandFindAllOrders, "corr-12", "", map[string]interface{}{})
	err := gw.HandleMessage(context.Background(), msg)
	assert.Error(t, err)
}
