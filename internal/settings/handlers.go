package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pointbarre/quoteapi/internal/common"
	"github.com/pointbarre/quoteapi/internal/dimension"
	"github.com/pointbarre/quoteapi/internal/variant"
)

// RoundTypeKey stores the shop's rounding strategy alongside the
// dimension keys.
const RoundTypeKey = "ROUND_TYPE"

// Refresher is notified after a settings write so memoised readers can
// drop their state.
type Refresher interface {
	Invalidate()
}

// Handler exposes the admin settings endpoints.
type Handler struct {
	Store     *Store
	Refresher Refresher
}

// List handles GET /v1/admin/settings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.All(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
		return
	}
	if rows == nil {
		rows = []Row{}
	}
	common.OK(w, http.StatusOK, rows)
}

// Get handles GET /v1/admin/settings/{key}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key := strings.ToUpper(chi.URLParam(r, "key"))
	value, err := h.Store.Get(r.Context(), key)
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "setting not found", nil)
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
		return
	}
	common.OK(w, http.StatusOK, Row{Key: key, Value: value})
}

// Put handles PUT /v1/admin/settings/{key}. Values for the known keys
// are validated before they are stored; a value that would break the
// variant grid or the rounding mode is rejected with 422.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	key := strings.ToUpper(chi.URLParam(r, "key"))
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
		return
	}
	if err := validateSetting(key, body.Value); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidation, err.Error(), nil)
		return
	}
	if err := h.Store.Put(r.Context(), key, body.Value); err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "internal error", nil)
		return
	}
	if h.Refresher != nil {
		h.Refresher.Invalidate()
	}
	common.OK(w, http.StatusOK, Row{Key: key, Value: body.Value})
}

func validateSetting(key, value string) error {
	switch key {
	case dimension.RoomsKey:
		_, err := dimension.ParseRooms(value)
		return err
	case dimension.VATKey:
		entries, err := dimension.ParseVATs(value)
		if err != nil {
			return err
		}
		if len(entries) > variant.MaxVATEntries {
			return fmt.Errorf("at most %d VAT entries are supported, got %d", variant.MaxVATEntries, len(entries))
		}
		return nil
	case RoundTypeKey:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "item", "line", "total":
			return nil
		default:
			return fmt.Errorf("round type %q is not one of item, line, total", value)
		}
	default:
		return nil
	}
}
