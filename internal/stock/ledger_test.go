package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/pkg/db"
	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
)

func TestReserveDecrementsStockAndReturnsPrice(t *testing.T) {
	conn := newTestDB(t)
	category := seedCategory(t, conn, "Eletrônicos")
	product := seedProduct(t, conn, category.ID, "199.90", 5, true)
	ledger := NewLedger()
	ref := uuid.New()

	var price decimal.Decimal
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		price, err = ledger.Reserve(context.Background(), tx, product.ID, 3, ref)
		return err
	})
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("199.90")))
	assert.Equal(t, 2, stockOf(t, conn, product.ID))

	var movement models.StockMovement
	require.NoError(t, conn.First(&movement, "product_id = ?", product.ID).Error)
	assert.Equal(t, -3, movement.Delta)
	assert.Equal(t, 2, movement.ResultingStock)
	assert.Equal(t, enums.StockMovementReservation, movement.Reason)
	require.NotNil(t, movement.ReferenceID)
	assert.Equal(t, ref, *movement.ReferenceID)
}

func TestReserveRejectsMoreThanAvailable(t *testing.T) {
	conn := newTestDB(t)
	category := seedCategory(t, conn, "Livros")
	product := seedProduct(t, conn, category.ID, "10.00", 2, true)

	_, err := NewLedger().Reserve(context.Background(), conn, product.ID, 3, uuid.Nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details := typed.Details().(map[string]any)
	assert.Equal(t, product.ID.String(), details["product_id"])
	assert.Equal(t, 3, details["requested"])
	assert.Equal(t, 2, details["available"])
	assert.Equal(t, 2, stockOf(t, conn, product.ID))
}

func TestReserveRejectsInactiveProduct(t *testing.T) {
	conn := newTestDB(t)
	category := seedCategory(t, conn, "Roupas")
	product := seedProduct(t, conn, category.ID, "10.00", 50, false)

	_, err := NewLedger().Reserve(context.Background(), conn, product.ID, 1, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 50, stockOf(t, conn, product.ID))
}

func TestReserveValidation(t *testing.T) {
	conn := newTestDB(t)
	ledger := NewLedger()

	_, err := ledger.Reserve(context.Background(), conn, uuid.New(), 0, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ledger.Reserve(context.Background(), conn, uuid.New(), 1, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = ledger.Reserve(context.Background(), nil, uuid.New(), 1, uuid.Nil)
	assert.Error(t, err)
}

func TestReserveThenReleaseRestoresStock(t *testing.T) {
	conn := newTestDB(t)
	category := seedCategory(t, conn, "Livros")
	product := seedProduct(t, conn, category.ID, "35.00", 7, true)
	ledger := NewLedger()
	ctx := context.Background()

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if _, err := ledger.Reserve(ctx, tx, product.ID, 4, uuid.Nil); err != nil {
			return err
		}
		return ledger.Release(ctx, tx, product.ID, 4, uuid.Nil)
	}))
	assert.Equal(t, 7, stockOf(t, conn, product.ID))

	var release models.StockMovement
	require.NoError(t, conn.First(&release, "product_id = ? AND reason = ?", product.ID, enums.StockMovementRelease).Error)
	assert.Equal(t, 4, release.Delta)
	assert.Equal(t, 7, release.ResultingStock)
}

func TestReleaseMissingProduct(t *testing.T) {
	conn := newTestDB(t)
	err := NewLedger().Release(context.Background(), conn, uuid.New(), 2, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAdjustAbsolute(t *testing.T) {
	conn := newTestDB(t)
	category := seedCategory(t, conn, "Eletrônicos")
	product := seedProduct(t, conn, category.ID, "99.00", 4, true)
	ledger := NewLedger()
	ctx := context.Background()

	previous, err := ledger.AdjustAbsolute(ctx, conn, product.ID, 12, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 4, previous)
	assert.Equal(t, 12, stockOf(t, conn, product.ID))

	_, err = ledger.AdjustAbsolute(ctx, conn, product.ID, -1, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidQuantity))
	assert.Equal(t, 12, stockOf(t, conn, product.ID))

	previous, err = ledger.AdjustAbsolute(ctx, conn, product.ID, 0, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 12, previous)
	assert.Equal(t, 0, stockOf(t, conn, product.ID))

	_, err = ledger.AdjustAbsolute(ctx, conn, uuid.New(), 3, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	conn := newTestDB(t)
	category := seedCategory(t, conn, "Livros")
	product := seedProduct(t, conn, category.ID, "20.00", 10, true)
	client := db.NewFromConn(conn, 0)
	ledger := NewLedger()

	const workers = 20
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
		other        []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
				_, err := ledger.Reserve(context.Background(), tx, product.ID, 1, uuid.Nil)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
				insufficient++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 10, successes)
	assert.Equal(t, 10, insufficient)
	assert.Equal(t, 0, stockOf(t, conn, product.ID))
}
