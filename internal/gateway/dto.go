package gateway

import (
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
)

// Входящие payload'ы команд.

type createOrderItemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type createOrderPayload struct {
	Items []createOrderItemPayload `json:"items"`
}

type findAllPayload struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Status string `json:"status,omitempty"`
}

type orderIDPayload struct {
	ID string `json:"id"`
}

type updateStatusPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type markPaidPayload struct {
	ID     string `json:"id"`
	PaidAt string `json:"paid_at,omitempty"`
}

// Исходящие представления.

type orderItemDTO struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Quantity   int32     `json:"quantity"`
	PriceMinor int64     `json:"price_minor"`
	Name       string    `json:"name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type orderDTO struct {
	ID               string         `json:"id"`
	Status           string         `json:"status"`
	TotalAmountMinor int64          `json:"total_amount_minor"`
	TotalItems       int32          `json:"total_items"`
	Paid             bool           `json:"paid"`
	PaidAt           *time.Time     `json:"paid_at,omitempty"`
	Items            []orderItemDTO `json:"items"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type listMetaDTO struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	LastPage int `json:"last_page"`
}

type listDTO struct {
	Data []orderDTO  `json:"data"`
	Meta listMetaDTO `json:"meta"`
}

func toOrderDTO(order domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDTO{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			PriceMinor: item.PriceMinor,
			Name:       item.Name,
			CreatedAt:  item.CreatedAt,
		})
	}

	return orderDTO{
		ID:               order.ID,
		Status:           string(order.Status),
		TotalAmountMinor: order.TotalAmountMinor,
		TotalItems:       order.TotalItems,
		Paid:             order.Paid,
		PaidAt:           order.PaidAt,
		Items:            items,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func toListDTO(result orders.ListResult) listDTO {
	data := make([]orderDTO, 0, len(result.Data))
	for _, order := range result.Data {
		data = append(data, toOrderDTO(order))
	}
	return listDTO{
		Data: data,
		Meta: listMetaDTO{
			Total:    result.Meta.Total,
			Page:     result.Meta.Page,
			LastPage: result.Meta.LastPage,
		},
	}
}
