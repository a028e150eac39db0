package orders

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/internal/catalog"
	"github.com/angelmondragon/orderstock-backend/internal/stock"
	"github.com/angelmondragon/orderstock-backend/pkg/db"
	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	repo     Repository
	customer models.Customer
	category models.Category
}

func newFixture(t *testing.T, numbers NumberGenerator) *fixture {
	t.Helper()
	conn := newTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(ServiceParams{
		DB:        db.NewFromConn(conn, 0),
		Repo:      repo,
		Customers: catalog.NewRepository(conn),
		Ledger:    stock.NewLedger(),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Numbers:   numbers,
	})
	require.NoError(t, err)

	customer := models.Customer{Name: "Maria Silva", Email: uuid.NewString() + "@example.com", IsActive: true}
	require.NoError(t, conn.Create(&customer).Error)
	category := models.Category{Name: "Eletrônicos"}
	require.NoError(t, conn.Create(&category).Error)

	return &fixture{conn: conn, svc: svc, repo: repo, customer: customer, category: category}
}

func (f *fixture) product(t *testing.T, price string, stockLevel int) models.Product {
	t.Helper()
	product := models.Product{
		CategoryID: f.category.ID,
		Name:       "product-" + uuid.NewString()[:8],
		Price:      decimal.RequireFromString(price),
		Stock:      stockLevel,
		IsActive:   true,
	}
	require.NoError(t, f.conn.Create(&product).Error)
	return product
}

func (f *fixture) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	require.NoError(t, f.conn.First(&product, "id = ?", productID).Error)
	return product.Stock
}

func (f *fixture) eventTypes(t *testing.T, aggregateID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("aggregate_id = ?", aggregateID).Find(&events).Error)
	types := make([]enums.OutboxEventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.EventType)
	}
	return types
}

func fixedNumbers(numbers ...string) NumberGenerator {
	i := 0
	return NumberGeneratorFunc(func(time.Time) string {
		n := numbers[i%len(numbers)]
		i++
		return n
	})
}
