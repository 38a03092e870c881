package obs

import (
	"context"
	"sort"
	"sync"
)

type routePatternKey struct{}

type fieldsKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePattern returns the pattern stored by WithRoutePattern, or "".
func RoutePattern(ctx context.Context) string {
	pattern, _ := ctx.Value(routePatternKey{}).(string)
	return pattern
}

// Fields is a per-request bag of log fields. Handlers fill it through
// Annotate and RequestLogger writes it out once the response is done.
type Fields struct {
	mu     sync.Mutex
	values map[string]string
}

// WithFields attaches an empty field bag to ctx.
func WithFields(ctx context.Context) (context.Context, *Fields) {
	f := &Fields{values: map[string]string{}}
	return context.WithValue(ctx, fieldsKey{}, f), f
}

// Annotate records key=value for the request log line. Without a bag on the
// context it does nothing, so handlers can call it unconditionally.
func Annotate(ctx context.Context, key, value string) {
	f, ok := ctx.Value(fieldsKey{}).(*Fields)
	if !ok || key == "" {
		return
	}
	f.mu.Lock()
	f.values[key] = value
	f.mu.Unlock()
}

// Each visits fields in key order.
func (f *Fields) Each(fn func(key, value string)) {
	if f == nil {
		return
	}
	f.mu.Lock()
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snapshot := make([][2]string, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, [2]string{k, f.values[k]})
	}
	f.mu.Unlock()
	for _, kv := range snapshot {
		fn(kv[0], kv[1])
	}
}
