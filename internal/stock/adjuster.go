package stock

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/internal/catalog"
	"github.com/angelmondragon/orderstock-backend/pkg/db"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/metrics"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderstock-backend/pkg/tracing"
)

const operationAdjustCategoryStock = "adjust_category_stock"

// AdjusterParams wires the dependencies of the batch adjuster.
type AdjusterParams struct {
	DB      db.TxRunner
	Catalog catalog.Repository
	Ledger  *Ledger
	Outbox  outbox.Emitter
	Logger  *logger.Logger
	Metrics *metrics.OrderMetrics
}

// Adjuster applies administrator stock corrections across a category.
type Adjuster struct {
	db      db.TxRunner
	catalog catalog.Repository
	ledger  *Ledger
	outbox  outbox.Emitter
	logg    *logger.Logger
	metrics *metrics.OrderMetrics
}

func NewAdjuster(params AdjusterParams) (*Adjuster, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("catalog repository is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter is required")
	}
	ledger := params.Ledger
	if ledger == nil {
		ledger = NewLedger()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Adjuster{
		db:      params.DB,
		catalog: params.Catalog,
		ledger:  ledger,
		outbox:  params.Outbox,
		logg:    logg,
		metrics: params.Metrics,
	}, nil
}

// AdjustCategoryStock sets absolute stock levels for products in categoryID.
// Every entry is applied or none is. The returned map holds the new levels.
func (a *Adjuster) AdjustCategoryStock(ctx context.Context, categoryID uuid.UUID, quantities map[uuid.UUID]int, actor *outbox.ActorRef) (levels map[uuid.UUID]int, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "stock.adjust_category",
		attribute.String("category.id", categoryID.String()),
		attribute.Int("stock.entries", len(quantities)),
	)
	defer func() {
		a.metrics.Observe(operationAdjustCategoryStock, started, err)
		tracing.End(span, err)
	}()

	if categoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}
	if len(quantities) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one stock entry is required").
			WithDetails(map[string]any{"category_id": categoryID.String()})
	}

	// Rows are locked in id order so concurrent batches cannot deadlock.
	productIDs := make([]uuid.UUID, 0, len(quantities))
	for id := range quantities {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i].String() < productIDs[j].String() })

	levels = make(map[uuid.UUID]int, len(quantities))
	previous := make(map[uuid.UUID]int, len(quantities))

	err = a.db.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := a.catalog.WithTx(tx)
		products, err := catalogRepo.GetCategoryProducts(ctx, categoryID)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return pkgerrors.New(pkgerrors.CodeCategoryNotFound, "category has no products").
				WithDetails(map[string]any{"category_id": categoryID.String()})
		}
		inCategory := make(map[uuid.UUID]struct{}, len(products))
		for _, p := range products {
			inCategory[p.ID] = struct{}{}
		}

		for _, productID := range productIDs {
			if _, ok := inCategory[productID]; !ok {
				return a.outsideCategory(ctx, catalogRepo, categoryID, productID)
			}
			prev, err := a.ledger.AdjustAbsolute(ctx, tx, productID, quantities[productID], categoryID)
			if err != nil {
				return err
			}
			previous[productID] = prev
			levels[productID] = quantities[productID]
		}

		return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateProductCategory,
			AggregateID:   categoryID,
			Actor:         actor,
			Data: payloads.StockAdjustedEvent{
				CategoryID: categoryID,
				Levels:     levels,
				Previous:   previous,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := a.logg.WithFields(ctx, map[string]any{
		"category_id": categoryID.String(),
		"entries":     len(levels),
	})
	a.logg.Info(logCtx, "stock adjusted")
	return levels, nil
}

func (a *Adjuster) outsideCategory(ctx context.Context, repo catalog.Repository, categoryID, productID uuid.UUID) error {
	if _, err := repo.GetProduct(ctx, productID); err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "product does not belong to category").
		WithDetails(map[string]any{
			"product_id":  productID.String(),
			"category_id": categoryID.String(),
		})
}
