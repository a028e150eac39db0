package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
	"github.com/angelmondragon/orderstock-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) OrderNumberExists(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, false, "id = ?", orderID)
}

func (r *repository) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, false, "order_number = ?", orderNumber)
}

// LockOrder loads the order row with FOR UPDATE. Lines are not loaded.
func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, true, "id = ?", orderID)
}

func (r *repository) LockOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, true, "order_number = ?", orderNumber)
}

func (r *repository) findOne(ctx context.Context, lock bool, query string, arg any) (*models.Order, error) {
	var order models.Order
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where(query, arg).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(arg)
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("position ASC").
		Find(&lines).Error
	return lines, err
}

func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus, cancelledAt *time.Time) error {
	updates := map[string]any{"status": status}
	if cancelledAt != nil {
		updates["cancelled_at"] = *cancelledAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return orderNotFound(orderID)
	}
	return nil
}

// ListOrders pages through orders newest first.
func (r *repository) ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.CustomerID != nil {
		q = q.Where("customer_id = ?", *filters.CustomerID)
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := q.Order("created_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}

	rows, next := pagination.Page(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	list := &OrderList{Orders: make([]OrderSummary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, toOrderSummary(row))
	}
	return list, nil
}

func (r *repository) FindCancelledBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND cancelled_at IS NOT NULL AND cancelled_at < ?", enums.OrderStatusCancelled, cutoff).
		Order("cancelled_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteOrders removes the orders and their lines. Callers pass only cancelled orders.
func (r *repository) DeleteOrders(ctx context.Context, orderIDs []uuid.UUID) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	db := r.db.WithContext(ctx)
	cancelled := db.Model(&models.Order{}).
		Select("id").
		Where("id IN ? AND status = ?", orderIDs, enums.OrderStatusCancelled)
	if err := db.Where("order_id IN (?)", cancelled).Delete(&models.OrderLine{}).Error; err != nil {
		return 0, err
	}
	res := db.Where("id IN ? AND status = ?", orderIDs, enums.OrderStatusCancelled).Delete(&models.Order{})
	return res.RowsAffected, res.Error
}

func orderNotFound(ref any) *pkgerrors.Error {
	key := "order_id"
	if _, ok := ref.(string); ok {
		key = "order_number"
	}
	value := ref
	if id, ok := ref.(uuid.UUID); ok {
		value = id.String()
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{key: value})
}
