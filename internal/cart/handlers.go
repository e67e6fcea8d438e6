package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pointbarre/quoteapi/internal/common"
	"github.com/pointbarre/quoteapi/internal/obs"
	"github.com/pointbarre/quoteapi/internal/pricing"
	"github.com/pointbarre/quoteapi/internal/repo"
)

// Defaults fills cart context fields the client did not provide.
type Defaults struct {
	ShopID     int64
	CurrencyID int64
	GroupID    int64
}

// GiftSource grants additional gift quantities for a set of lines, on
// top of the ones stored with the cart.
type GiftSource interface {
	GiftsFor(ctx context.Context, lines []Line) ([]Gift, error)
}

// Handler exposes the cart endpoints.
type Handler struct {
	Svc      *Service
	Pricer   *Adapter
	Promos   GiftSource
	Defaults Defaults
	Validate *validator.Validate
}

type createCartRequest struct {
	ShopID           int64 `json:"id_shop"`
	CurrencyID       int64 `json:"id_currency"`
	CustomerID       int64 `json:"id_customer"`
	GroupID          int64 `json:"id_group"`
	InvoiceAddressID int64 `json:"id_address_invoice"`
}

type addLineRequest struct {
	ProductID       int64 `json:"id_product" validate:"required,gt=0"`
	VariantID       int64 `json:"id_product_attribute"`
	Quantity        int   `json:"quantity" validate:"required,gt=0"`
	AddressID       int64 `json:"id_address_delivery"`
	CustomizationID int64 `json:"id_customization"`
}

type updateLineRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// Create handles POST /v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body createCartRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
			return
		}
	}
	if body.ShopID == 0 {
		body.ShopID = h.Defaults.ShopID
	}
	if body.CurrencyID == 0 {
		body.CurrencyID = h.Defaults.CurrencyID
	}
	if body.GroupID == 0 {
		body.GroupID = h.Defaults.GroupID
	}
	cart, err := h.Svc.Create(r.Context(), CreateParams{
		ShopID:           body.ShopID,
		CurrencyID:       body.CurrencyID,
		CustomerID:       body.CustomerID,
		GroupID:          body.GroupID,
		InvoiceAddressID: body.InvoiceAddressID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.OK(w, http.StatusCreated, cart)
}

// Get handles GET /v1/carts/{token}. It returns the cart with every
// line priced and the aggregate totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	view, err := h.quote(r, cart)
	if err != nil {
		writeError(w, err)
		return
	}
	common.OK(w, http.StatusOK, view)
}

// AddLine handles POST /v1/carts/{token}/lines.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	var body addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(body); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid line payload", err.Error())
		return
	}
	if _, err := h.Svc.AddLine(r.Context(), cart.ID, LineParams{
		ProductID:       body.ProductID,
		VariantID:       body.VariantID,
		Quantity:        body.Quantity,
		AddressID:       body.AddressID,
		CustomizationID: body.CustomizationID,
	}); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.quote(r, cart)
	if err != nil {
		writeError(w, err)
		return
	}
	common.OK(w, http.StatusCreated, view)
}

// UpdateLine handles PUT /v1/carts/{token}/lines/{lineID}.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil || lineID <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid line id", nil)
		return
	}
	var body updateLineRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(body); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid line payload", err.Error())
		return
	}
	if _, err := h.Svc.UpdateLineQuantity(r.Context(), cart.ID, lineID, body.Quantity); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.quote(r, cart)
	if err != nil {
		writeError(w, err)
		return
	}
	common.OK(w, http.StatusOK, view)
}

// RemoveLine handles DELETE /v1/carts/{token}/lines/{lineID}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	lineID, err := strconv.ParseInt(chi.URLParam(r, "lineID"), 10, 64)
	if err != nil || lineID <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid line id", nil)
		return
	}
	if err := h.Svc.RemoveLine(r.Context(), cart.ID, lineID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// View is the priced cart returned by the read endpoints.
type View struct {
	Cart   Cart         `json:"cart"`
	Lines  []PricedLine `json:"lines"`
	Totals Totals       `json:"totals"`
}

func (h *Handler) quote(r *http.Request, cart Cart) (View, error) {
	ctx := r.Context()
	lines, err := h.Svc.Lines(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	gifts, err := h.Svc.Gifts(ctx, cart.ID)
	if err != nil {
		return View{}, err
	}
	if h.Promos != nil {
		granted, err := h.Promos.GiftsFor(ctx, lines)
		if err != nil {
			return View{}, err
		}
		gifts = append(gifts, granted...)
	}
	invoice, err := h.Svc.InvoiceAddress(ctx, cart.InvoiceAddressID)
	if err != nil {
		return View{}, err
	}
	pc := PriceContext{
		CartID:           cart.ID,
		ShopID:           cart.ShopID,
		CurrencyID:       cart.CurrencyID,
		CustomerID:       cart.CustomerID,
		GroupID:          cart.GroupID,
		Invoice:          invoice,
		InvoiceAddressID: cart.InvoiceAddressID,
	}
	priced, totals, err := h.Pricer.PriceLines(ctx, pc, lines, gifts)
	if err != nil {
		obs.ObserveCartQuote("error")
		return View{}, err
	}
	obs.ObserveCartQuote("ok")
	if priced == nil {
		priced = []PricedLine{}
	}
	return View{Cart: cart, Lines: priced, Totals: totals}, nil
}

func (h *Handler) loadCart(w http.ResponseWriter, r *http.Request) (Cart, bool) {
	token := chi.URLParam(r, "token")
	if token == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "missing cart token", nil)
		return Cart{}, false
	}
	cart, err := h.Svc.Get(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return Cart{}, false
	}
	return cart, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "cart not found", nil)
	case errors.Is(err, repo.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", nil)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, pricing.ErrInvalidArgument):
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, err.Error(), nil)
	default:
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
	}
}
