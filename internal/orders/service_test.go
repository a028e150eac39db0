package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderstock-backend/pkg/db/models"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
	"github.com/angelmondragon/orderstock-backend/pkg/pagination"
)

func requireCode(t *testing.T, err error, code pkgerrors.Code) *pkgerrors.Error {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
	return typed
}

func TestCreateOrderReservesStockAndTotalsLines(t *testing.T) {
	f := newFixture(t, nil)
	notebook := f.product(t, "3500.00", 10)
	mouse := f.product(t, "89.90", 5)
	notes := "entregar pela manhã"

	order, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines: []LineInput{
			{ProductID: notebook.ID, Quantity: 2, Discount: decimal.RequireFromString("100.00")},
			{ProductID: mouse.ID, Quantity: 3},
		},
		Notes: &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Regexp(t, `^PED\d{14}\d{4}$`, order.OrderNumber)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "6900.00", order.Lines[0].Subtotal)
	assert.Equal(t, "269.70", order.Lines[1].Subtotal)
	assert.Equal(t, "0.00", order.Lines[1].Discount)
	assert.Equal(t, "7169.70", order.Total)
	require.NotNil(t, order.Notes)
	assert.Equal(t, notes, *order.Notes)

	assert.Equal(t, 8, f.stockOf(t, notebook.ID))
	assert.Equal(t, 2, f.stockOf(t, mouse.ID))

	stored, err := f.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Total, stored.Total)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated}, f.eventTypes(t, order.ID))
}

func TestCreateOrderAllowsEmptyOrder(t *testing.T) {
	f := newFixture(t, nil)

	order, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{CustomerID: f.customer.ID})
	require.NoError(t, err)
	assert.Equal(t, "0.00", order.Total)
	assert.Empty(t, order.Lines)
}

func TestCreateOrderRollsBackEarlierLinesWhenStockRunsOut(t *testing.T) {
	f := newFixture(t, nil)
	product := f.product(t, "50.00", 5)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines: []LineInput{
			{ProductID: product.ID, Quantity: 3},
			{ProductID: product.ID, Quantity: 3},
		},
	})
	typed := requireCode(t, err, pkgerrors.CodeInsufficientStock)
	details := typed.Details().(map[string]any)
	assert.Equal(t, product.ID.String(), details["product_id"])
	assert.Equal(t, 3, details["requested"])
	assert.Equal(t, 2, details["available"])

	assert.Equal(t, 5, f.stockOf(t, product.ID))
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderRejectsUnknownProduct(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines:      []LineInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestCreateOrderRejectsDiscountAboveGross(t *testing.T) {
	f := newFixture(t, nil)
	product := f.product(t, "10.00", 4)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 2, Discount: decimal.RequireFromString("20.01")}},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, 4, f.stockOf(t, product.ID))
}

func TestCreateOrderRejectsSubCentDiscount(t *testing.T) {
	f := newFixture(t, nil)
	first := f.product(t, "10.00", 4)
	second := f.product(t, "10.00", 4)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines: []LineInput{
			{ProductID: first.ID, Quantity: 1, Discount: decimal.RequireFromString("0.005")},
			{ProductID: second.ID, Quantity: 1, Discount: decimal.RequireFromString("0.005")},
		},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, 4, f.stockOf(t, first.ID))
	assert.Equal(t, 4, f.stockOf(t, second.ID))

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderTotalsReconcileWithCentDiscounts(t *testing.T) {
	f := newFixture(t, nil)
	first := f.product(t, "10.00", 4)
	second := f.product(t, "7.35", 4)

	order, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines: []LineInput{
			{ProductID: first.ID, Quantity: 1, Discount: decimal.RequireFromString("0.01")},
			{ProductID: second.ID, Quantity: 3, Discount: decimal.RequireFromString("1.50")},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "9.99", order.Lines[0].Subtotal)
	assert.Equal(t, "20.55", order.Lines[1].Subtotal)
	assert.Equal(t, "30.54", order.Total)

	var lines []models.OrderLine
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).Order("position").Find(&lines).Error)
	sum := decimal.Zero
	for _, line := range lines {
		gross := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		assert.True(t, line.Subtotal.Equal(gross.Sub(line.Discount)))
		sum = sum.Add(line.Subtotal)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("30.54")))
}

func TestCreateOrderValidatesInput(t *testing.T) {
	f := newFixture(t, nil)
	product := f.product(t, "10.00", 4)

	cases := map[string]CreateOrderInput{
		"missing customer": {Lines: []LineInput{{ProductID: product.ID, Quantity: 1}}},
		"zero quantity":    {CustomerID: f.customer.ID, Lines: []LineInput{{ProductID: product.ID}}},
		"negative discount": {CustomerID: f.customer.ID, Lines: []LineInput{
			{ProductID: product.ID, Quantity: 1, Discount: decimal.NewFromInt(-1)},
		}},
		"missing product": {CustomerID: f.customer.ID, Lines: []LineInput{{Quantity: 1}}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), input)
			requireCode(t, err, pkgerrors.CodeValidation)
		})
	}
	assert.Equal(t, 4, f.stockOf(t, product.ID))
}

func TestCreateOrderRejectsMissingOrInactiveCustomer(t *testing.T) {
	f := newFixture(t, nil)
	product := f.product(t, "10.00", 4)

	_, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: uuid.New(),
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 1}},
	})
	requireCode(t, err, pkgerrors.CodeCustomerNotFound)

	inactive := models.Customer{Name: "João", Email: "joao@example.com", IsActive: false}
	require.NoError(t, f.conn.Create(&inactive).Error)
	_, err = f.svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: inactive.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 1}},
	})
	requireCode(t, err, pkgerrors.CodeCustomerNotFound)
	assert.Equal(t, 4, f.stockOf(t, product.ID))
}

func TestCreateOrderReportsDuplicateNumber(t *testing.T) {
	f := newFixture(t, fixedNumbers("PED202601010000000001"))
	product := f.product(t, "10.00", 4)
	input := CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 1}},
	}

	_, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	_, err = f.svc.CreateOrder(context.Background(), input)
	typed := requireCode(t, err, pkgerrors.CodeDuplicateOrderNum)
	assert.True(t, pkgerrors.MetadataFor(typed.Code()).Retryable)
	assert.Equal(t, 3, f.stockOf(t, product.ID))
}

func TestAdvanceStatusWalksForward(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{CustomerID: f.customer.ID})
	require.NoError(t, err)

	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusInProgress, enums.OrderStatusDelivered} {
		updated, err := f.svc.AdvanceStatus(ctx, order.ID, next, nil)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	types := f.eventTypes(t, order.ID)
	assert.Len(t, types, 4)
	assert.Contains(t, types, enums.EventOrderStatusChanged)
}

func TestAdvanceStatusRejectsSkippedStep(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{CustomerID: f.customer.ID})
	require.NoError(t, err)

	_, err = f.svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusDelivered, nil)
	typed := requireCode(t, err, pkgerrors.CodeIllegalTransition)
	details := typed.Details().(map[string]any)
	assert.Equal(t, enums.OrderStatusPending, details["from"])
	assert.Equal(t, enums.OrderStatusDelivered, details["to"])

	stored, err := f.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
}

func TestAdvanceStatusUnknownOrder(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.AdvanceStatus(context.Background(), uuid.New(), enums.OrderStatusConfirmed, nil)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestCancelRestoresStockOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	product := f.product(t, "25.00", 10)
	actor := &outbox.ActorRef{UserID: uuid.New(), Role: "operator"}

	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, 6, f.stockOf(t, product.ID))

	cancelled, err := f.svc.Cancel(ctx, order.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 10, f.stockOf(t, product.ID))

	_, err = f.svc.Cancel(ctx, order.ID, actor)
	requireCode(t, err, pkgerrors.CodeAlreadyCancelled)
	assert.Equal(t, 10, f.stockOf(t, product.ID))

	assert.ElementsMatch(t,
		[]enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderCanceled},
		f.eventTypes(t, order.ID),
	)
}

func TestCancelRejectsDeliveredOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{CustomerID: f.customer.ID})
	require.NoError(t, err)
	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusInProgress, enums.OrderStatusDelivered} {
		_, err := f.svc.AdvanceStatus(ctx, order.ID, next, nil)
		require.NoError(t, err)
	}

	_, err = f.svc.Cancel(ctx, order.ID, nil)
	typed := requireCode(t, err, pkgerrors.CodeIllegalTransition)
	assert.Equal(t, "cancel", typed.Details().(map[string]any)["operation"])
}

func TestReturnDeliveredOrderByNumber(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	product := f.product(t, "120.00", 3)

	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: f.customer.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusInProgress, enums.OrderStatusDelivered} {
		_, err := f.svc.AdvanceStatus(ctx, order.ID, next, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.stockOf(t, product.ID))

	returned, err := f.svc.Return(ctx, order.OrderNumber, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, returned.Status)
	assert.Equal(t, 3, f.stockOf(t, product.ID))
	assert.Contains(t, f.eventTypes(t, order.ID), enums.EventOrderReturned)

	_, err = f.svc.Return(ctx, order.ID.String(), nil)
	requireCode(t, err, pkgerrors.CodeAlreadyCancelled)
	assert.Equal(t, 3, f.stockOf(t, product.ID))
}

func TestReturnRejectsPendingOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{CustomerID: f.customer.ID})
	require.NoError(t, err)

	_, err = f.svc.Return(ctx, order.ID.String(), nil)
	requireCode(t, err, pkgerrors.CodeIllegalTransition)

	_, err = f.svc.Return(ctx, "PED-missing", nil)
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.Return(ctx, "", nil)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first, err := f.svc.CreateOrder(ctx, CreateOrderInput{CustomerID: f.customer.ID})
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{CustomerID: f.customer.ID})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, first.ID, nil)
	require.NoError(t, err)

	cancelled := enums.OrderStatusCancelled
	list, err := f.svc.ListOrders(ctx, pagination.Params{}, ListFilters{Status: &cancelled})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, first.ID, list.Orders[0].ID)

	bogus := enums.OrderStatus("shipped")
	_, err = f.svc.ListOrders(ctx, pagination.Params{}, ListFilters{Status: &bogus})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestGetOrderByNumber(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, CreateOrderInput{CustomerID: f.customer.ID})
	require.NoError(t, err)

	found, err := f.svc.GetOrderByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = f.svc.GetOrderByNumber(ctx, "PED000")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
