package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCSRFMiddlewareBlocksMissingToken(t *testing.T) {
	csrf := CSRF{Header: "X-CSRF-Token"}
	handler := csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCSRFMiddlewareAllowsValidToken(t *testing.T) {
	csrf := CSRF{Header: "X-CSRF-Token"}
	handler := csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	token := "secure-token"
	req.Header.Set("X-CSRF-Token", token)
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCSRFMiddlewareSkipsBearer(t *testing.T) {
	csrf := CSRF{Header: "X-CSRF-Token"}
	handler := csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for bearer request, got %d", rr.Code)
	}
}

func TestCSRFMiddlewareSkipsRequestsWithoutSession(t *testing.T) {
	csrf := CSRF{Header: "X-CSRF-Token", SessionCookie: "access_token"}
	handler := csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	anon := httptest.NewRequest(http.MethodPost, "/api/v1/cart", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, anon)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to pass, got %d", rr.Code)
	}

	withSession := httptest.NewRequest(http.MethodPost, "/api/v1/cart", nil)
	withSession.AddCookie(&http.Cookie{Name: "access_token", Value: "jwt"})
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, withSession)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cookie session without token, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "CSRF_FAILED") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}
