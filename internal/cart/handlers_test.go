package cart_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/analysis"
	"github.com/noah-isme/toko-checkout/internal/cart"
	"github.com/noah-isme/toko-checkout/internal/identity"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

type server struct {
	router http.Handler
	sched  *analysis.Scheduler
}

func newServer(t *testing.T, who pricing.Identity) server {
	t.Helper()
	svc, _, _, _ := newService(t)
	sched := analysis.NewScheduler(&analysis.Analyzer{Source: svc.Catalog, Timeout: time.Second}, svc.Load, time.Hour, zerolog.Nop())
	t.Cleanup(sched.Close)
	svc.Notifier = sched

	h := &cart.Handler{Svc: svc, Scheduler: sched, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithIdentity(req.Context(), who)))
		})
	})
	r.Route("/carts", h.Routes)
	return server{router: r, sched: sched}
}

func (s server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func createCart(t *testing.T, s server) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/carts/", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp struct {
		Data cart.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Data.ID
}

func TestCartHandlersLifecycle(t *testing.T) {
	s := newServer(t, pricing.Identity{})
	id := createCart(t, s)

	rr := s.do(t, http.MethodPost, "/carts/"+id+"/items", `{"product_id":"`+sugarID+`","quantity":2}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, s.sched.Pending(id))

	rr = s.do(t, http.MethodPatch, "/carts/"+id+"/items/"+sugarID, `{"quantity":4}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/carts/"+id+"/analysis", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp analysis.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, analysis.Resolved, resp.State)
	require.Equal(t, int64(3), resp.CartVersion)
	require.Equal(t, 4, resp.CartAnalysis.TotalQuantity)
	require.Equal(t, "60000.00", resp.CartAnalysis.Subtotal.String())
	require.Len(t, resp.AvailableMethods, 1)

	rr = s.do(t, http.MethodDelete, "/carts/"+id+"/items/"+sugarID, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodGet, "/carts/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"version":4`)

	rr = s.do(t, http.MethodDelete, "/carts/"+id, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do(t, http.MethodGet, "/carts/"+id, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandlerBelowMinimum(t *testing.T) {
	s := newServer(t, wholesaler)
	id := createCart(t, s)

	rr := s.do(t, http.MethodPost, "/carts/"+id+"/items", `{"product_id":"`+riceID+`","quantity":3}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "BELOW_MINIMUM_PURCHASE")
	require.Contains(t, rr.Body.String(), `"shortage":7`)
}

func TestCartHandlerValidation(t *testing.T) {
	s := newServer(t, pricing.Identity{})

	rr := s.do(t, http.MethodGet, "/carts/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	id := createCart(t, s)
	rr = s.do(t, http.MethodPost, "/carts/"+id+"/items", `{"product_id":"abc","quantity":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), `"product_id":"uuid"`)

	rr = s.do(t, http.MethodPut, "/carts/"+id+"/coupon", `{"code":"unknown"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "COUPON_NOT_FOUND")

	rr = s.do(t, http.MethodPut, "/carts/"+id+"/coupon", `{"code":"hemat"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"coupon_code":"HEMAT"`)
}
