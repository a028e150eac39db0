package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
	"github.com/angelmondragon/orderstock-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderLines(ctx context.Context, lines []models.OrderLine) error
	OrderNumberExists(ctx context.Context, orderNumber string) (bool, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindOrderLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, cancelledAt *time.Time) error
	ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	FindCancelledBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	DeleteOrders(ctx context.Context, orderIDs []uuid.UUID) (int64, error)
}

// StockLedger is the subset of the stock ledger the order flows depend on.
type StockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int, ref uuid.UUID) (decimal.Decimal, error)
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int, ref uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CustomerLookup resolves the buyer of a new order.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}
