package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderstock-backend/pkg/enums"
)

// OrderLine is the line snapshot carried by order events.
type OrderLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderCreatedEvent is emitted once an order and its reservations commit.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Total       decimal.Decimal `json:"total"`
	Lines       []OrderLine     `json:"lines"`
}

// OrderStatusChangedEvent records a forward lifecycle step.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
}

// ReleasedLine names stock given back by a cancellation or return.
type ReleasedLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// OrderCanceledEvent is emitted for both cancellations and returns.
type OrderCanceledEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	CanceledAt     time.Time         `json:"canceled_at"`
	Released       []ReleasedLine    `json:"released"`
}

// StockAdjustedEvent summarises a batch correction across a category.
type StockAdjustedEvent struct {
	CategoryID uuid.UUID         `json:"category_id"`
	Levels     map[uuid.UUID]int `json:"levels"`
	Previous   map[uuid.UUID]int `json:"previous"`
}
