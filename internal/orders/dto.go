package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
)

// LineInput is one requested product line.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
	Discount  decimal.Decimal
}

// CreateOrderInput carries everything required to build an order.
type CreateOrderInput struct {
	CustomerID uuid.UUID
	Lines      []LineInput
	Notes      *string
	Actor      *outbox.ActorRef
}

// ListFilters describe the inputs supported by the orders list.
type ListFilters struct {
	Status     *enums.OrderStatus
	CustomerID *uuid.UUID
}

// OrderLineDTO is the API shape of an order line.
type OrderLineDTO struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	Discount  string    `json:"discount"`
	Subtotal  string    `json:"subtotal"`
}

// OrderDTO is the API shape of an order with its lines.
type OrderDTO struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	Status      enums.OrderStatus `json:"status"`
	Total       string            `json:"total"`
	Notes       *string           `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	Lines       []OrderLineDTO    `json:"lines"`
}

// OrderSummary is the list row returned by ListOrders.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	OrderNumber string            `json:"order_number"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	Status      enums.OrderStatus `json:"status"`
	Total       string            `json:"total"`
	CreatedAt   time.Time         `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// moneyScale matches the two-decimal money columns.
const moneyScale = 2

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyScale)
}

func toOrderDTO(order *models.Order, lines []models.OrderLine) *OrderDTO {
	dto := &OrderDTO{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		Total:       formatMoney(order.Total),
		Notes:       order.Notes,
		CreatedAt:   order.CreatedAt,
		CancelledAt: order.CancelledAt,
		Lines:       make([]OrderLineDTO, 0, len(lines)),
	}
	for _, line := range lines {
		dto.Lines = append(dto.Lines, OrderLineDTO{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: formatMoney(line.UnitPrice),
			Discount:  formatMoney(line.Discount),
			Subtotal:  formatMoney(line.Subtotal),
		})
	}
	return dto
}

func toOrderSummary(order models.Order) OrderSummary {
	return OrderSummary{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Status:      order.Status,
		Total:       formatMoney(order.Total),
		CreatedAt:   order.CreatedAt,
	}
}
