package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
)

type lineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSONBodyValidatesFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"nope","quantity":0}`))
	var dest lineRequest
	err := DecodeJSONBody(req, &dest)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid uuid", details["product_id"])
	require.Equal(t, "must be greater than 0", details["quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"product_id":"`+uuid.NewString()+`","quantity":1,"extra":true}`))
	var dest lineRequest
	require.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &dest), pkgerrors.CodeValidation))
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	got, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 25, got)
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id.String())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "orderId")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "missing")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "abcdef", SanitizeString("abcdef", 0))
	require.Equal(t, "ação", SanitizeString("ação rápida", 4))
}

func TestParseQueryOrderFilters(t *testing.T) {
	customerID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?status=IN_PROGRESS&customer_id="+customerID.String(), nil)

	status, err := ParseQueryOrderStatus(req, "status")
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusInProgress, *status)

	id, err := ParseQueryUUID(req, "customer_id")
	require.NoError(t, err)
	require.Equal(t, customerID, *id)

	empty := httptest.NewRequest(http.MethodGet, "/", nil)
	status, err = ParseQueryOrderStatus(empty, "status")
	require.NoError(t, err)
	require.Nil(t, status)
	id, err = ParseQueryUUID(empty, "customer_id")
	require.NoError(t, err)
	require.Nil(t, id)
}

func TestParseQueryOrderFiltersRejectGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?status=shipped&customer_id=42", nil)

	_, err := ParseQueryOrderStatus(req, "status")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryUUID(req, "customer_id")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
