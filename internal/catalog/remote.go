package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-checkout/internal/resilience"
)

// RemoteSource reads catalog snapshots from the storefront catalog API.
type RemoteSource struct {
	BaseURL string
	HTTP    resilience.HTTPClient
}

// remoteEnvelope is the payload shape served by the catalog API. When the
// upstream is unreachable the fallback response carries the same shape with
// empty collections and Error set.
type remoteEnvelope struct {
	Success  bool               `json:"success"`
	Products []Product          `json:"products,omitempty"`
	Methods  []ShippingMethod   `json:"methods,omitempty"`
	Rules    []FreeShippingRule `json:"rules,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// NewRemoteSource wires an instrumented HTTP client with retries, a breaker
// and the empty-result fallback.
func NewRemoteSource(baseURL string, client resilience.HTTPClient) *RemoteSource {
	if client.Client == nil {
		client.Client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if client.Target == "" {
		client.Target = "catalog"
	}
	if client.Fallback == nil {
		client.Fallback = FallbackResponse
	}
	return &RemoteSource{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: client}
}

// FallbackResponse answers with an empty envelope describing err so that
// callers degrade instead of failing.
func FallbackResponse(_ context.Context, req *http.Request, err error) (*http.Response, error) {
	msg := "catalog unavailable"
	if err != nil {
		msg = err.Error()
	}
	body, _ := json.Marshal(remoteEnvelope{Success: true, Error: msg})
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(strings.NewReader(string(body))),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// Products implements Source.
func (s *RemoteSource) Products(ctx context.Context, ids []string) (map[string]Product, error) {
	out := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	env, err := s.get(ctx, "/products?"+q.Encode())
	if err != nil {
		return out, err
	}
	for _, p := range env.Products {
		out[p.ID] = p
	}
	return out, nil
}

// ShippingMethods implements Source.
func (s *RemoteSource) ShippingMethods(ctx context.Context) ([]ShippingMethod, error) {
	env, err := s.get(ctx, "/shipping-methods")
	if err != nil {
		return []ShippingMethod{}, err
	}
	methods := make([]ShippingMethod, 0, len(env.Methods))
	for _, m := range env.Methods {
		if m.Active {
			methods = append(methods, m)
		}
	}
	return methods, nil
}

// FreeShippingRules implements Source.
func (s *RemoteSource) FreeShippingRules(ctx context.Context) ([]FreeShippingRule, error) {
	env, err := s.get(ctx, "/free-shipping-rules")
	if err != nil {
		return []FreeShippingRule{}, err
	}
	rules := make([]FreeShippingRule, 0, len(env.Rules))
	for _, r := range env.Rules {
		if r.Active {
			rules = append(rules, r)
		}
	}
	SortRules(rules)
	return rules, nil
}

func (s *RemoteSource) get(ctx context.Context, path string) (remoteEnvelope, error) {
	var env remoteEnvelope
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+path, nil)
	if err != nil {
		return env, err
	}
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return env, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return env, fmt.Errorf("%w: %s %s", ErrUnavailable, path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return remoteEnvelope{}, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	if env.Error != "" {
		if s.HTTP.Logger != nil {
			s.HTTP.Logger.Warn().Str("path", path).Str("reason", env.Error).Dur("elapsed", time.Since(start)).Msg("catalog_fallback")
		}
		return env, fmt.Errorf("%w: %s", ErrUnavailable, env.Error)
	}
	return env, nil
}
