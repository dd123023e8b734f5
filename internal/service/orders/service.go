package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

// CreateItem — одна запрошенная позиция. Цена от клиента не принимается:
// она разрешается исключительно из каталога.
type CreateItem struct {
	ProductID string
	Quantity  int32
}

// CreateRequest — запрос на создание заказа.
type CreateRequest struct {
	Items []CreateItem
}

// ListRequest — параметры постраничного запроса заказов.
type ListRequest struct {
	Page   int
	Limit  int
	Status *domain.OrderStatus
}

// ListMeta — метаданные страницы выборки.
type ListMeta struct {
	Total    int
	Page     int
	LastPage int
}

// ListResult — страница заказов с метаданными.
type ListResult struct {
	Data []domain.Order
	Meta ListMeta
}

// Service — оркестратор заказов: валидирует запросы по внешнему каталогу,
// считает производные суммы, персистит агрегат атомарно через хранилище
// и применяет таблицу переходов статусов.
type Service struct {
	repo     domain.OrderRepository
	catalog  domain.ProductCatalog
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
	producer *kafka.Producer // опциональный producer для событий жизненного цикла
}

// NewService создаёт рабочий экземпляр оркестратора.
func NewService(repo domain.OrderRepository, catalog domain.ProductCatalog, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		logger:  logger,
		metrics: metrics.NewOrderMetrics(),
	}
}

// NewServiceWithEvents создаёт оркестратор, публикующий события заказов в Kafka.
func NewServiceWithEvents(repo domain.OrderRepository, catalog domain.ProductCatalog, producer *kafka.Producer, logger *log.Entry) *Service {
	s := NewService(repo, catalog, logger)
	s.producer = producer
	return s
}

// NewServiceWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewServiceWithoutMetrics(repo domain.OrderRepository, catalog domain.ProductCatalog, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		logger:  logger,
		metrics: nil,
	}
}

// Create валидирует запрошенные позиции по каталогу, снимает снапшот цен,
// считает суммы и атомарно сохраняет заказ с позициями. Ответ обогащается
// именами из того же снапшота каталога, без второго похода.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Order, error) {
	start := time.Now()
	defer s.recordDuration("create", start)

	if len(req.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: order must contain at least one item", domain.ErrInvalidArgument)
	}
	for idx, item := range req.Items {
		if item.ProductID == "" {
			return domain.Order{}, fmt.Errorf("%w: item[%d] product_id is required", domain.ErrInvalidArgument, idx)
		}
		if item.Quantity <= 0 {
			return domain.Order{}, fmt.Errorf("%w: item[%d] quantity must be > 0", domain.ErrInvalidArgument, idx)
		}
	}

	ids := distinctProductIDs(req.Items)

	catalogStart := time.Now()
	products, err := s.catalog.Validate(ctx, ids)
	if s.metrics != nil {
		s.metrics.RecordCatalogLookup(time.Since(catalogStart))
	}
	if err != nil {
		s.logger.WithError(err).Warn("product validation call failed")
		s.recordCreateFailed(kafka.ErrCodeValidationFailed)
		return domain.Order{}, &domain.ValidationError{Cause: err}
	}

	byID := indexProducts(products)
	if missing := missingIDs(ids, byID); len(missing) > 0 {
		s.logger.WithField("missing_ids", strings.Join(missing, ",")).Warn("requested products unknown to catalog")
		s.recordCreateFailed(kafka.ErrCodeValidationFailed)
		return domain.Order{}, &domain.ValidationError{MissingIDs: missing}
	}

	now := time.Now().UTC()
	items := make([]domain.OrderItem, 0, len(req.Items))
	var totalAmount int64
	var totalItems int32
	for _, reqItem := range req.Items {
		p := byID[reqItem.ProductID]
		// Имя в хранилище не попадает: персистится только ценовой снапшот.
		items = append(items, domain.OrderItem{
			ID:         uuid.NewString(),
			ProductID:  reqItem.ProductID,
			Quantity:   reqItem.Quantity,
			PriceMinor: p.PriceMinor,
			CreatedAt:  now,
		})
		totalAmount += int64(reqItem.Quantity) * p.PriceMinor
		totalItems += reqItem.Quantity
	}

	order := domain.Order{
		ID:               uuid.NewString(),
		Status:           domain.OrderStatusPending,
		TotalAmountMinor: totalAmount,
		TotalItems:       totalItems,
		Items:            items,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, joinErrors(errs))
	}

	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		s.recordCreateFailed(kafka.ErrCodePersistenceFailed)
		if errors.Is(err, domain.ErrPersistence) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	// Ответ обогащается именами из уже полученного снапшота каталога.
	for i := range order.Items {
		order.Items[i].Name = byID[order.Items[i].ProductID].Name
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.publishEvent(kafka.EventTypeOrderCreated, order.ID, map[string]interface{}{
		"total_amount_minor": order.TotalAmountMinor,
		"total_items":        order.TotalItems,
	})

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"total_items": order.TotalItems,
	}).Info("order created")

	return order, nil
}

// Get возвращает заказ с позициями, обогащёнными актуальными именами
// из каталога. Цена не перечитывается: хранимый снапшот авторитетен.
// Провал похода в каталог проваливает чтение целиком.
func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	start := time.Now()
	defer s.recordDuration("get", start)
	return s.load(ctx, id)
}

// load — путь точечного чтения без собственной метрики операции: им
// пользуются и Get, и UpdateStatus под своими именами операций.
func (s *Service) load(ctx context.Context, id string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", domain.ErrInvalidArgument)
	}

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, err
		}
		s.logger.WithError(err).WithField("order_id", id).Error("failed to load order")
		if errors.Is(err, domain.ErrPersistence) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	ids := make([]string, 0, len(order.Items))
	seen := make(map[string]bool, len(order.Items))
	for _, item := range order.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	catalogStart := time.Now()
	products, err := s.catalog.Validate(ctx, ids)
	if s.metrics != nil {
		s.metrics.RecordCatalogLookup(time.Since(catalogStart))
	}
	if err != nil {
		s.logger.WithError(err).WithField("order_id", id).Warn("name resolution against catalog failed")
		return domain.Order{}, &domain.ValidationError{Cause: err}
	}

	byID := indexProducts(products)
	if missing := missingIDs(ids, byID); len(missing) > 0 {
		return domain.Order{}, &domain.ValidationError{MissingIDs: missing}
	}

	for i := range order.Items {
		order.Items[i].Name = byID[order.Items[i].ProductID].Name
	}

	return order, nil
}

// List возвращает страницу заказов с метаданными. Позиции не обогащаются
// именами: листинг намеренно легковеснее точечного чтения.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	start := time.Now()
	defer s.recordDuration("list", start)

	if req.Page < 1 {
		return ListResult{}, fmt.Errorf("%w: page must be >= 1", domain.ErrInvalidArgument)
	}
	if req.Limit < 1 {
		return ListResult{}, fmt.Errorf("%w: limit must be >= 1", domain.ErrInvalidArgument)
	}

	filter := domain.ListFilter{
		Status: req.Status,
		Offset: (req.Page - 1) * req.Limit,
		Limit:  req.Limit,
	}

	total, data, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.WithError(err).Error("failed to list orders")
		return ListResult{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	return ListResult{
		Data: data,
		Meta: ListMeta{
			Total:    total,
			Page:     req.Page,
			LastPage: (total + req.Limit - 1) / req.Limit,
		},
	}, nil
}

// UpdateStatus применяет таблицу переходов. Переход в текущий статус —
// идемпотентный no-op, updated_at при этом не трогается.
func (s *Service) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	start := time.Now()
	defer s.recordDuration("update_status", start)

	if _, err := domain.ParseStatus(string(status)); err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}

	// Загрузка по пути точечного чтения, включая его NotFound-поведение.
	order, err := s.load(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	if order.Status == status {
		return order, nil
	}

	if !order.Status.CanTransitionTo(status) {
		if s.metrics != nil {
			s.metrics.RecordTransitionRejected()
		}
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, status)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", id).Error("failed to persist status")
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	if s.metrics != nil {
		s.metrics.RecordStatusTransition(string(order.Status), string(status))
	}
	s.publishEvent(kafka.EventTypeOrderStatusChanged, updated.ID, map[string]interface{}{
		"from": string(order.Status),
		"to":   string(status),
	})

	return updated, nil
}

// MarkPaid помечает заказ оплаченным. Повторный вызов — идемпотентный no-op.
func (s *Service) MarkPaid(ctx context.Context, id string, paidAt time.Time) (domain.Order, error) {
	start := time.Now()
	defer s.recordDuration("mark_paid", start)

	order, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrPersistence) {
			return domain.Order{}, err
		}
		s.logger.WithError(err).WithField("order_id", id).Error("failed to load order")
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if order.Paid {
		return order, nil
	}

	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	updated, err := s.repo.SetPaid(ctx, id, paidAt)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", id).Error("failed to mark order paid")
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderPaid()
	}
	s.publishEvent(kafka.EventTypeOrderPaid, updated.ID, map[string]interface{}{
		"paid_at": paidAt.Format(time.RFC3339Nano),
	})

	return updated, nil
}

func (s *Service) recordDuration(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordOperationDuration(operation, time.Since(start))
	}
}

func (s *Service) recordCreateFailed(reason string) {
	if s.metrics != nil {
		s.metrics.RecordCreateFailed(reason)
	}
}

// publishEvent публикует событие жизненного цикла (если producer настроен).
func (s *Service) publishEvent(eventType kafka.EventType, orderID string, metadata map[string]interface{}) {
	if s.producer == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, orderID, metadata)
	if err := s.producer.PublishEvent(event); err != nil {
		// Событие информационное: ошибку логируем, операцию не прерываем.
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   orderID,
		}).Warn("failed to publish order event to kafka")
	}
}

func distinctProductIDs(items []CreateItem) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

func indexProducts(products []domain.Product) map[string]domain.Product {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID
}

func missingIDs(ids []string, byID map[string]domain.Product) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func joinErrors(errs []error) string {
	builder := strings.Builder{}
	for i, err := range errs {
		builder.WriteString(err.Error())
		if i < len(errs)-1 {
			builder.WriteString("; ")
		}
	}
	return builder.String()
}
