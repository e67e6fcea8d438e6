package refund

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pointbarre/quoteapi/internal/common"
)

// Issuer is what the handler needs from the refund service.
type Issuer interface {
	Issue(ctx context.Context, orderID int64, req Request) (Issued, error)
}

// Lister pages through an order's persisted credit notes.
type Lister interface {
	ListByOrder(ctx context.Context, orderID int64, limit, offset int) ([]Summary, int, error)
}

// Handler exposes the admin credit-note endpoints.
type Handler struct {
	Svc      Issuer
	Notes    Lister
	Validate *validator.Validate
}

type issueRequest struct {
	Lines          []issueLine      `json:"lines" validate:"omitempty,dive"`
	RefundShipping bool             `json:"refund_shipping"`
	ShippingAmount *decimal.Decimal `json:"shipping_amount"`
	Amount         decimal.Decimal  `json:"amount"`
	AmountChosen   bool             `json:"amount_chosen"`
	Direction      string           `json:"direction" validate:"omitempty,oneof=refund charge"`
}

type issueLine struct {
	OrderLineID int64 `json:"id_order_line" validate:"required,gt=0"`
	Quantity    int   `json:"quantity" validate:"required,gt=0"`
}

// check covers what struct tags cannot express on decimal fields.
func (b issueRequest) check() string {
	switch {
	case len(b.Lines) == 0 && !b.RefundShipping && b.ShippingAmount == nil:
		return "no lines or shipping to refund"
	case b.Amount.IsNegative():
		return "amount must not be negative"
	case b.AmountChosen && !b.Amount.IsPositive():
		return "amount_chosen requires a positive amount"
	case b.ShippingAmount != nil && b.ShippingAmount.IsNegative():
		return "shipping_amount must not be negative"
	}
	return ""
}

// Issue handles POST /v1/admin/orders/{id}/credit-notes.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid order id", nil)
		return
	}
	var body issueRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(body); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid refund payload", err.Error())
		return
	}
	if msg := body.check(); msg != "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid refund payload", msg)
		return
	}

	req := Request{
		Quantities:     make(map[int64]int, len(body.Lines)),
		Shipping:       body.RefundShipping || body.ShippingAmount != nil,
		ShippingAmount: body.ShippingAmount,
		Amount:         body.Amount,
		AmountChosen:   body.AmountChosen,
		Direction:      Direction(body.Direction),
	}
	for _, line := range body.Lines {
		req.Quantities[line.OrderLineID] += line.Quantity
	}

	issued, err := h.Svc.Issue(r.Context(), orderID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	common.OK(w, http.StatusCreated, issued)
}

// List handles GET /v1/admin/orders/{id}/credit-notes.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid order id", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	notes, total, err := h.Notes.ListByOrder(r.Context(), orderID, perPage, (page-1)*perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	if notes == nil {
		notes = []Summary{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       notes,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "order not found", nil)
	case errors.Is(err, ErrUnknownOrderLine):
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, ErrNothingToRefund):
		common.JSONError(w, http.StatusConflict, common.CodeConflict, "nothing left to refund", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
	}
}
