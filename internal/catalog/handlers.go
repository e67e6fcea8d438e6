package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pointbarre/quoteapi/internal/common"
	"github.com/pointbarre/quoteapi/internal/pricing"
	"github.com/pointbarre/quoteapi/internal/repo"
	"github.com/pointbarre/quoteapi/internal/variant"
)

// Handler exposes public product endpoints.
type Handler struct {
	Service *Service
}

// Variants handles GET /v1/products/{id}/variants.
func (h *Handler) Variants(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.Service.Variants(r.Context(), productID)
	if err != nil {
		writeError(w, err)
		return
	}
	common.OK(w, http.StatusOK, list)
}

// Price handles GET /v1/products/{id}/price.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	variantID := common.Int64Default(q.Get("variant"), 0)
	quantity := common.AtoiDefault(q.Get("quantity"), 1)
	countryID := common.Int64Default(q.Get("country"), 0)
	useTax := q.Get("tax") != "0"

	props, err := h.Service.Properties(r.Context(), productID, variantID, quantity, countryID, useTax)
	if err != nil {
		writeError(w, err)
		return
	}
	common.OK(w, http.StatusOK, props)
}

// ResolveSelection handles POST /v1/variants/resolve. It maps a set of
// selected attribute ids onto the sum-based id space used by interactive
// attribute selection, which is intentionally distinct from the encoded
// grid ids.
func (h *Handler) ResolveSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AttributeIDs []int64 `json:"attribute_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid JSON body", nil)
		return
	}
	common.OK(w, http.StatusOK, map[string]int64{"variant_id": variant.ResolveBySelection(body.AttributeIDs)})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", nil)
	case errors.Is(err, variant.ErrUnknownVariant):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "unknown variant", nil)
	case errors.Is(err, pricing.ErrInvalidArgument):
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, err.Error(), nil)
	default:
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
			common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
	}
}
