package common_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/common"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded first hop", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, remote: "10.0.0.1:443", want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, remote: "10.0.0.1:443", want: "198.51.100.2"},
		{name: "garbage header ignored", headers: map[string]string{"X-Forwarded-For": "unknown"}, remote: "192.0.2.9:5555", want: "192.0.2.9"},
		{name: "ipv6 remote", remote: "[2001:db8::1]:8080", want: "2001:db8::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tc.want, common.ClientIP(req))
		})
	}
}

func TestFingerprintSeparatesParts(t *testing.T) {
	require.Len(t, common.Fingerprint("a"), 64)
	require.Equal(t, common.Fingerprint("POST", "/carts"), common.Fingerprint("POST", "/carts"))
	require.NotEqual(t, common.Fingerprint("ab", "c"), common.Fingerprint("a", "bc"))
}

func TestWriteErrorKeepsAppErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	wrapped := fmt.Errorf("load cart: %w", common.Invalid("bad quantity", nil, map[string]string{"quantity": "min"}))
	common.WriteError(rr, wrapped)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, common.CodeValidation, body.Error.Code)
	require.Equal(t, "bad quantity", body.Error.Message)
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, errors.New("dial tcp: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
}

func TestJSONUnencodableValue(t *testing.T) {
	rr := httptest.NewRecorder()
	common.JSON(rr, http.StatusOK, map[string]any{"bad": make(chan int)})

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Contains(t, rr.Body.String(), common.CodeInternal)
}

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := common.WithPrincipal(httptest.NewRequest(http.MethodGet, "/", nil).Context(), common.Principal{UserID: "u-1", BuyerKind: "customer"})
	id, ok := common.UserID(ctx)
	require.True(t, ok)
	require.Equal(t, "u-1", id)

	p, ok := common.PrincipalFrom(ctx)
	require.True(t, ok)
	require.Equal(t, "customer", p.BuyerKind)
}
