package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/pkg/enums"
)

// StockMovement is the append-only audit trail of stock mutations.
type StockMovement struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	Delta          int                       `gorm:"column:delta;not null"`
	ResultingStock int                       `gorm:"column:resulting_stock;not null"`
	Reason         enums.StockMovementReason `gorm:"column:reason;type:stock_movement_reason;not null"`
	ReferenceID    *uuid.UUID                `gorm:"column:reference_id;type:uuid"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
