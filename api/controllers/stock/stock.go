package stock

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderstock-backend/api/middleware"
	"github.com/angelmondragon/orderstock-backend/api/responses"
	"github.com/angelmondragon/orderstock-backend/api/validators"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
	"github.com/angelmondragon/orderstock-backend/pkg/retry"
)

// CategoryAdjuster applies batch stock corrections.
type CategoryAdjuster interface {
	AdjustCategoryStock(ctx context.Context, categoryID uuid.UUID, quantities map[uuid.UUID]int, actor *outbox.ActorRef) (map[uuid.UUID]int, error)
}

type adjustCategoryRequest struct {
	Quantities map[string]int `json:"quantities" validate:"required,min=1"`
}

type adjustCategoryResponse struct {
	CategoryID uuid.UUID         `json:"category_id"`
	Levels     map[uuid.UUID]int `json:"levels"`
}

// AdjustCategory sets absolute stock levels for products of one category.
func AdjustCategory(adjuster CategoryAdjuster, policy retry.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if adjuster == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stock adjuster unavailable"))
			return
		}

		categoryID, err := validators.ParseUUIDParam(r, "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quantities := make(map[uuid.UUID]int, len(payload.Quantities))
		for raw, qty := range payload.Quantities {
			productID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id").WithDetails(map[string]any{"product_id": raw}))
				return
			}
			if _, dup := quantities[productID]; dup {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product id").WithDetails(map[string]any{"product_id": productID.String()}))
				return
			}
			quantities[productID] = qty
		}

		actor := middleware.ActorFromContext(r.Context())
		var levels map[uuid.UUID]int
		err = retry.OnRetryable(r.Context(), policy, func(ctx context.Context) error {
			var adjustErr error
			levels, adjustErr = adjuster.AdjustCategoryStock(ctx, categoryID, quantities, actor)
			return adjustErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, adjustCategoryResponse{CategoryID: categoryID, Levels: levels})
	}
}
