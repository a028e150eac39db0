package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderstock-backend/internal/catalog"
	"github.com/angelmondragon/orderstock-backend/pkg/db"
	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/metrics"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderstock-backend/pkg/pagination"
	"github.com/angelmondragon/orderstock-backend/pkg/tracing"
)

const (
	operationCreateOrder   = "create_order"
	operationAdvanceStatus = "advance_status"
	operationCancelOrder   = "cancel_order"
	operationReturnOrder   = "return_order"
)

// Service exposes order creation and lifecycle operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor *outbox.ActorRef) (*OrderDTO, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (*OrderDTO, error)
	Return(ctx context.Context, orderRef string, actor *outbox.ActorRef) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderDTO, error)
	ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	DB        txRunner
	Repo      Repository
	Customers CustomerLookup
	Ledger    StockLedger
	Outbox    outboxPublisher
	Numbers   NumberGenerator
	Logger    *logger.Logger
	Metrics   *metrics.OrderMetrics
	Now       func() time.Time
}

type service struct {
	db        txRunner
	repo      Repository
	customers CustomerLookup
	ledger    StockLedger
	outbox    outboxPublisher
	numbers   NumberGenerator
	logg      *logger.Logger
	metrics   *metrics.OrderMetrics
	now       func() time.Time
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, errors.New("db is required")
	}
	if params.Repo == nil {
		return nil, errors.New("orders repository is required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer lookup is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("stock ledger is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher is required")
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = TimestampNumberGenerator{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		customers: params.Customers,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		numbers:   numbers,
		logg:      logg,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (dto *OrderDTO, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "orders.create",
		attribute.String("customer.id", input.CustomerID.String()),
		attribute.Int("order.lines", len(input.Lines)),
	)
	defer func() {
		s.metrics.Observe(operationCreateOrder, started, err)
		tracing.End(span, err)
	}()

	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	var (
		order models.Order
		lines []models.OrderLine
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		customer, err := s.customerLookup(tx).GetCustomer(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if !customer.IsActive {
			return pkgerrors.New(pkgerrors.CodeCustomerNotFound, "customer is inactive").
				WithDetails(map[string]any{"customer_id": input.CustomerID.String()})
		}

		repo := s.repo.WithTx(tx)
		now := s.now().UTC()
		orderNumber := s.numbers.Next(now)
		exists, err := repo.OrderNumberExists(ctx, orderNumber)
		if err != nil {
			return err
		}
		if exists {
			return duplicateOrderNumber(orderNumber, nil)
		}

		order = models.Order{
			ID:          uuid.New(),
			OrderNumber: orderNumber,
			CustomerID:  input.CustomerID,
			Status:      enums.OrderStatusPending,
			Notes:       input.Notes,
			CreatedAt:   now,
		}

		total := decimal.Zero
		lines = make([]models.OrderLine, 0, len(input.Lines))
		for i, in := range input.Lines {
			unitPrice, err := s.ledger.Reserve(ctx, tx, in.ProductID, in.Quantity, order.ID)
			if err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
					s.metrics.IncReservationFailure("insufficient_stock")
				}
				return err
			}
			gross := unitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
			if in.Discount.GreaterThan(gross) {
				return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds line amount").
					WithDetails(map[string]any{
						"line":       i,
						"product_id": in.ProductID.String(),
						"discount":   formatMoney(in.Discount),
						"gross":      formatMoney(gross),
					})
			}
			subtotal := gross.Sub(in.Discount)
			total = total.Add(subtotal)
			lines = append(lines, models.OrderLine{
				OrderID:   order.ID,
				ProductID: in.ProductID,
				Position:  i + 1,
				Quantity:  in.Quantity,
				UnitPrice: unitPrice,
				Discount:  in.Discount,
				Subtotal:  subtotal,
			})
		}
		order.Total = total

		if err := repo.CreateOrder(ctx, &order); err != nil {
			if db.IsUniqueViolation(err, "order_number") {
				return duplicateOrderNumber(orderNumber, err)
			}
			return err
		}
		if err := repo.CreateOrderLines(ctx, lines); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			OccurredAt:    now,
			Data:          orderCreatedPayload(order, lines),
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID.String(),
		"total":        formatMoney(order.Total),
		"lines":        len(lines),
	})
	s.logg.Info(logCtx, "order created")

	return toOrderDTO(&order, lines), nil
}

func (s *service) AdvanceStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor *outbox.ActorRef) (dto *OrderDTO, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "orders.advance_status",
		attribute.String("order.id", orderID.String()),
		attribute.String("order.target_status", target.String()),
	)
	defer func() {
		s.metrics.Observe(operationAdvanceStatus, started, err)
		tracing.End(span, err)
	}()

	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": target})
	}

	var (
		order *models.Order
		lines []models.OrderLine
		from  enums.OrderStatus
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		if err := checkAdvance(order.ID, from, target); err != nil {
			return err
		}
		if err := repo.UpdateStatus(ctx, order.ID, target, nil); err != nil {
			return err
		}
		order.Status = target
		if lines, err = repo.FindOrderLines(ctx, order.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				From:        from,
				To:          target,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from, "to": target})
	s.logg.Info(logCtx, "order status changed")
	return toOrderDTO(order, lines), nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor *outbox.ActorRef) (dto *OrderDTO, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "orders.cancel", attribute.String("order.id", orderID.String()))
	defer func() {
		s.metrics.Observe(operationCancelOrder, started, err)
		tracing.End(span, err)
	}()

	return s.terminate(ctx, terminationCancel, actor, func(repo Repository) (*models.Order, error) {
		return repo.LockOrder(ctx, orderID)
	})
}

// Return accepts either an order id or an order number.
func (s *service) Return(ctx context.Context, orderRef string, actor *outbox.ActorRef) (dto *OrderDTO, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "orders.return", attribute.String("order.ref", orderRef))
	defer func() {
		s.metrics.Observe(operationReturnOrder, started, err)
		tracing.End(span, err)
	}()

	if orderRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	return s.terminate(ctx, terminationReturn, actor, func(repo Repository) (*models.Order, error) {
		if id, parseErr := uuid.Parse(orderRef); parseErr == nil {
			return repo.LockOrder(ctx, id)
		}
		return repo.LockOrderByNumber(ctx, orderRef)
	})
}

// terminate releases every line back to stock and marks the order cancelled.
func (s *service) terminate(ctx context.Context, kind terminationKind, actor *outbox.ActorRef, load func(Repository) (*models.Order, error)) (*OrderDTO, error) {
	var (
		order    *models.Order
		lines    []models.OrderLine
		previous enums.OrderStatus
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = load(repo)
		if err != nil {
			return err
		}
		previous = order.Status
		if err := checkTermination(order.ID, previous, kind); err != nil {
			return err
		}

		if lines, err = repo.FindOrderLines(ctx, order.ID); err != nil {
			return err
		}
		released := make([]payloads.ReleasedLine, 0, len(lines))
		for _, line := range lines {
			if err := s.ledger.Release(ctx, tx, line.ProductID, line.Quantity, order.ID); err != nil {
				return err
			}
			released = append(released, payloads.ReleasedLine{ProductID: line.ProductID, Quantity: line.Quantity})
		}

		cancelledAt := s.now().UTC()
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, &cancelledAt); err != nil {
			return err
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &cancelledAt

		eventType := enums.EventOrderCanceled
		if kind == terminationReturn {
			eventType = enums.EventOrderReturned
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			OccurredAt:    cancelledAt,
			Data: payloads.OrderCanceledEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				PreviousStatus: previous,
				CanceledAt:     cancelledAt,
				Released:       released,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"order_number":    order.OrderNumber,
		"previous_status": previous,
		"released_lines":  len(lines),
	})
	if kind == terminationReturn {
		s.logg.Info(logCtx, "order returned")
	} else {
		s.logg.Info(logCtx, "order canceled")
	}
	return toOrderDTO(order, lines), nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.withLines(ctx, order)
}

func (s *service) GetOrderByNumber(ctx context.Context, orderNumber string) (*OrderDTO, error) {
	order, err := s.repo.FindOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return s.withLines(ctx, order)
}

func (s *service) withLines(ctx context.Context, order *models.Order) (*OrderDTO, error) {
	lines, err := s.repo.FindOrderLines(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order, lines), nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": *filters.Status})
	}
	return s.repo.ListOrders(ctx, params, filters)
}

func (s *service) customerLookup(tx *gorm.DB) CustomerLookup {
	if scoped, ok := s.customers.(interface {
		WithTx(*gorm.DB) catalog.Repository
	}); ok {
		return scoped.WithTx(tx)
	}
	return s.customers
}

func validateCreateInput(input CreateOrderInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	for i, line := range input.Lines {
		details := map[string]any{"line": i, "product_id": line.ProductID.String()}
		switch {
		case line.ProductID == uuid.Nil:
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required").WithDetails(details)
		case line.Quantity <= 0:
			details["quantity"] = line.Quantity
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(details)
		case line.Discount.IsNegative():
			details["discount"] = formatMoney(line.Discount)
			return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative").WithDetails(details)
		case !line.Discount.Equal(line.Discount.Round(moneyScale)):
			details["discount"] = line.Discount.String()
			return pkgerrors.New(pkgerrors.CodeValidation, "discount has more than two decimal places").WithDetails(details)
		}
	}
	return nil
}

func duplicateOrderNumber(orderNumber string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDuplicateOrderNum, cause, "order number already in use").
		WithDetails(map[string]any{"order_number": orderNumber})
}

func orderCreatedPayload(order models.Order, lines []models.OrderLine) payloads.OrderCreatedEvent {
	out := payloads.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		Total:       order.Total,
		Lines:       make([]payloads.OrderLine, 0, len(lines)),
	}
	for _, line := range lines {
		out.Lines = append(out.Lines, payloads.OrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
			Subtotal:  line.Subtotal,
		})
	}
	return out
}
