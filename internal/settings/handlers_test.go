package settings

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct{ calls int }

func (c *countingRefresher) Invalidate() { c.calls++ }

func newSettingsRouter(t *testing.T) (*chi.Mux, *fakeQuerier, *countingRefresher) {
	t.Helper()
	store, q := testStore(t)
	refresher := &countingRefresher{}
	h := &Handler{Store: store, Refresher: refresher}

	r := chi.NewRouter()
	r.Get("/v1/admin/settings", h.List)
	r.Get("/v1/admin/settings/{key}", h.Get)
	r.Put("/v1/admin/settings/{key}", h.Put)
	return r, q, refresher
}

func TestGetSetting(t *testing.T) {
	router, _, _ := newSettingsRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/settings/ROOMS", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Cuisine,Salon")
}

func TestGetSettingNotFound(t *testing.T) {
	router, _, _ := newSettingsRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/settings/MISSING", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutSettingValidatesAndRefreshes(t *testing.T) {
	router, q, refresher := newSettingsRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/admin/settings/VAT", strings.NewReader(`{"value":"1:20, 2:10"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1:20, 2:10", q.values["VAT"])
	require.Equal(t, 1, refresher.calls)
}

func TestPutSettingRejectsInvalidValues(t *testing.T) {
	router, _, refresher := newSettingsRouter(t)

	cases := []struct {
		key  string
		body string
	}{
		{"ROOMS", `{"value":"  , "}`},
		{"VAT", `{"value":"abc"}`},
		{"VAT", `{"value":"1:1,2:2,3:3,4:4,5:5,6:6,7:7,8:8,9:9,10:10"}`},
		{"ROUND_TYPE", `{"value":"banker"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPut, "/v1/admin/settings/"+tc.key, strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "key %s body %s", tc.key, tc.body)
	}
	require.Zero(t, refresher.calls)
}

func TestPutRoundType(t *testing.T) {
	router, q, _ := newSettingsRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/v1/admin/settings/ROUND_TYPE", strings.NewReader(`{"value":"total"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "total", q.values["ROUND_TYPE"])
}
