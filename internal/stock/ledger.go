package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
)

// Ledger owns the available quantity of every product. Each operation runs
// inside the caller's transaction and leaves the product row locked until it
// commits or rolls back.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve takes quantity units of productID and returns the unit price read
// while the row was locked. ref is recorded on the audit movement.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int, ref uuid.UUID) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, errors.New("transaction required")
	}
	if quantity <= 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"product_id": productID.String(), "requested": quantity})
	}

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if !product.IsActive || quantity > product.Stock {
		return decimal.Zero, insufficientStock(product, quantity)
	}

	res := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, insufficientStock(product, quantity)
	}

	if err := recordMovement(ctx, tx, productID, -quantity, product.Stock-quantity, enums.StockMovementReservation, ref); err != nil {
		return decimal.Zero, err
	}
	return product.Price, nil
}

// Release gives quantity units back to productID.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int, ref uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"product_id": productID.String(), "requested": quantity})
	}

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return err
	}

	res := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return productNotFound(productID)
	}

	return recordMovement(ctx, tx, productID, quantity, product.Stock+quantity, enums.StockMovementRelease, ref)
}

// AdjustAbsolute overwrites the stock of productID and returns the previous level.
func (l *Ledger) AdjustAbsolute(ctx context.Context, tx *gorm.DB, productID uuid.UUID, newQuantity int, ref uuid.UUID) (int, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	if newQuantity < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "stock cannot be negative").
			WithDetails(map[string]any{"product_id": productID.String(), "requested": newQuantity})
	}

	product, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return 0, err
	}
	previous := product.Stock

	res := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", newQuantity)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, productNotFound(productID)
	}

	if err := recordMovement(ctx, tx, productID, newQuantity-previous, newQuantity, enums.StockMovementAdjustment, ref); err != nil {
		return 0, err
	}
	return previous, nil
}

func lockProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, productNotFound(productID)
		}
		return nil, err
	}
	return &product, nil
}

func recordMovement(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta, resulting int, reason enums.StockMovementReason, ref uuid.UUID) error {
	movement := models.StockMovement{
		ProductID:      productID,
		Delta:          delta,
		ResultingStock: resulting,
		Reason:         reason,
	}
	if ref != uuid.Nil {
		movement.ReferenceID = &ref
	}
	return tx.WithContext(ctx).Create(&movement).Error
}

func productNotFound(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
		WithDetails(map[string]any{"product_id": productID.String()})
}

func insufficientStock(product *models.Product, requested int) error {
	available := product.Stock
	reason := "insufficient stock"
	if !product.IsActive {
		available = 0
		reason = "product inactive"
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, reason).
		WithDetails(map[string]any{
			"product_id":   product.ID.String(),
			"product_name": product.Name,
			"requested":    requested,
			"available":    available,
		})
}
