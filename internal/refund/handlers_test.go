package refund_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pointbarre/quoteapi/internal/refund"
)

type fakeIssuer struct {
	got    refund.Request
	issued refund.Issued
	err    error
}

func (f *fakeIssuer) Issue(_ context.Context, orderID int64, req refund.Request) (refund.Issued, error) {
	f.got = req
	if f.err != nil {
		return refund.Issued{}, f.err
	}
	issued := f.issued
	issued.OrderID = orderID
	return issued, nil
}

func newRouter(issuer *fakeIssuer) *chi.Mux {
	h := &refund.Handler{Svc: issuer, Validate: validator.New()}
	r := chi.NewRouter()
	r.Post("/v1/admin/orders/{id}/credit-notes", h.Issue)
	return r
}

func TestIssueCreditNote(t *testing.T) {
	issuer := &fakeIssuer{issued: refund.Issued{
		ID: 9,
		CreditNote: refund.CreditNote{
			Kind:         refund.KindPartial,
			TotalTaxExcl: decimal.RequireFromString("29.99"),
			TotalTaxIncl: decimal.RequireFromString("35.99"),
		},
	}}
	router := newRouter(issuer)

	body := `{"lines":[{"id_order_line":1,"quantity":2},{"id_order_line":1,"quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/orders/41/credit-notes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	// Duplicate line entries merge into one quantity.
	require.Equal(t, map[int64]int{1: 3}, issuer.got.Quantities)

	var resp struct {
		Data struct {
			ID      int64  `json:"id"`
			OrderID int64  `json:"id_order"`
			Kind    string `json:"kind"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(9), resp.Data.ID)
	require.Equal(t, int64(41), resp.Data.OrderID)
	require.Equal(t, "partial", resp.Data.Kind)
}

func TestIssueShippingAndAmount(t *testing.T) {
	issuer := &fakeIssuer{issued: refund.Issued{ID: 10}}
	router := newRouter(issuer)

	body := `{
		"lines": [{"id_order_line": 1, "quantity": 1}],
		"refund_shipping": true,
		"shipping_amount": "3.5",
		"amount": "12",
		"amount_chosen": true,
		"direction": "charge"
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/orders/41/credit-notes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, issuer.got.Shipping)
	require.NotNil(t, issuer.got.ShippingAmount)
	require.True(t, issuer.got.ShippingAmount.Equal(decimal.RequireFromString("3.5")))
	require.True(t, issuer.got.Amount.Equal(decimal.RequireFromString("12")))
	require.True(t, issuer.got.AmountChosen)
	require.Equal(t, refund.DirectionCharge, issuer.got.Direction)
}

func TestIssueShippingAmountImpliesShipping(t *testing.T) {
	issuer := &fakeIssuer{issued: refund.Issued{ID: 11}}
	router := newRouter(issuer)

	body := `{"shipping_amount": "2"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/orders/41/credit-notes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, issuer.got.Shipping)
	require.Empty(t, issuer.got.Quantities)
}

func TestIssueValidation(t *testing.T) {
	router := newRouter(&fakeIssuer{})

	for _, body := range []string{
		`{}`,
		`{"lines":[]}`,
		`{"lines":[{"id_order_line":0,"quantity":1}]}`,
		`{"lines":[{"id_order_line":1,"quantity":0}]}`,
		`{"lines":[{"id_order_line":1,"quantity":1}],"direction":"sideways"}`,
		`{"lines":[{"id_order_line":1,"quantity":1}],"amount":"-4"}`,
		`{"lines":[{"id_order_line":1,"quantity":1}],"amount_chosen":true}`,
		`{"refund_shipping":true,"shipping_amount":"-1"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/orders/41/credit-notes", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestIssueErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{refund.ErrOrderNotFound, http.StatusNotFound},
		{refund.ErrUnknownOrderLine, http.StatusBadRequest},
		{refund.ErrNothingToRefund, http.StatusConflict},
	}
	for _, tc := range cases {
		router := newRouter(&fakeIssuer{err: tc.err})
		body := `{"lines":[{"id_order_line":1,"quantity":1}]}`
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/orders/41/credit-notes", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, tc.code, rec.Code, "error %v", tc.err)
	}
}
