package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderstock-backend/api/middleware"
	"github.com/angelmondragon/orderstock-backend/api/responses"
	"github.com/angelmondragon/orderstock-backend/api/validators"
	internalorders "github.com/angelmondragon/orderstock-backend/internal/orders"
	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/pagination"
	"github.com/angelmondragon/orderstock-backend/pkg/retry"
)

const maxNotesLength = 2000

type createOrderLineRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

type createOrderRequest struct {
	CustomerID string                   `json:"customer_id" validate:"required,uuid"`
	Lines      []createOrderLineRequest `json:"lines" validate:"dive"`
	Notes      *string                  `json:"notes"`
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create builds an order from the requested lines. Number collisions and
// lock contention are retried with backoff before surfacing to the caller.
func Create(svc internalorders.Service, policy retry.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Actor = middleware.ActorFromContext(r.Context())

		var order *internalorders.OrderDTO
		err = retry.OnRetryable(r.Context(), policy, func(ctx context.Context) error {
			var createErr error
			order, createErr = svc.CreateOrder(ctx, input)
			return createErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// List returns a page of orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		filters, err := buildListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOrders(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order with its lines.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// DetailByNumber looks an order up by its human readable number.
func DetailByNumber(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		number := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		order, err := svc.GetOrderByNumber(r.Context(), number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdvanceStatus moves an order one step forward in its lifecycle.
func AdvanceStatus(svc internalorders.Service, policy retry.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload advanceStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		var order *internalorders.OrderDTO
		err = retry.OnRetryable(r.Context(), policy, func(ctx context.Context) error {
			var advanceErr error
			order, advanceErr = svc.AdvanceStatus(ctx, orderID, target, actor)
			return advanceErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Cancel cancels an order and restores its reserved stock.
func Cancel(svc internalorders.Service, policy retry.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		var order *internalorders.OrderDTO
		err = retry.OnRetryable(r.Context(), policy, func(ctx context.Context) error {
			var cancelErr error
			order, cancelErr = svc.Cancel(ctx, orderID, actor)
			return cancelErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Return processes a customer return for an order number.
func Return(svc internalorders.Service, policy retry.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		number := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if number == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		var order *internalorders.OrderDTO
		err := retry.OnRetryable(r.Context(), policy, func(ctx context.Context) error {
			var returnErr error
			order, returnErr = svc.Return(ctx, number, actor)
			return returnErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func (p createOrderRequest) toInput() (internalorders.CreateOrderInput, error) {
	customerID, err := uuid.Parse(p.CustomerID)
	if err != nil {
		return internalorders.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer_id")
	}

	lines := make([]internalorders.LineInput, 0, len(p.Lines))
	for _, line := range p.Lines {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return internalorders.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id")
		}
		lines = append(lines, internalorders.LineInput{
			ProductID: productID,
			Quantity:  line.Quantity,
			Discount:  line.Discount,
		})
	}

	var notes *string
	if p.Notes != nil {
		if trimmed := validators.SanitizeString(*p.Notes, maxNotesLength); trimmed != "" {
			notes = &trimmed
		}
	}

	return internalorders.CreateOrderInput{
		CustomerID: customerID,
		Lines:      lines,
		Notes:      notes,
	}, nil
}

func buildListFilters(r *http.Request) (internalorders.ListFilters, error) {
	status, err := validators.ParseQueryOrderStatus(r, "status")
	if err != nil {
		return internalorders.ListFilters{}, err
	}
	customerID, err := validators.ParseQueryUUID(r, "customer_id")
	if err != nil {
		return internalorders.ListFilters{}, err
	}
	return internalorders.ListFilters{Status: status, CustomerID: customerID}, nil
}
