// Package tasks defines background jobs executed by the asynq worker.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/obs"
)

// TypeCatalogWarm reloads shipping configuration into the Redis cache.
const TypeCatalogWarm = "catalog:warm"

// Warm reasons.
const (
	ReasonCacheMiss = "cache_miss"
	ReasonSchedule  = "schedule"
	ReasonManual    = "manual"
)

// DefaultUniqueFor collapses bursts of cache-miss enqueues into one job.
const DefaultUniqueFor = time.Minute

type warmPayload struct {
	Reason string `json:"reason"`
}

// NewCatalogWarmTask builds a catalog warm task tagged with reason.
func NewCatalogWarmTask(reason string) (*asynq.Task, error) {
	payload, err := json.Marshal(warmPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCatalogWarm, payload, asynq.MaxRetry(3), asynq.Timeout(30*time.Second)), nil
}

// Warmer refreshes cached shipping configuration.
type Warmer interface {
	Warm(ctx context.Context) (methods, rules int, err error)
}

// CatalogWarmHandler processes TypeCatalogWarm tasks.
type CatalogWarmHandler struct {
	Warmer Warmer
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h CatalogWarmHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p warmPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			obs.CountCatalogWarm("invalid")
			return fmt.Errorf("decode %s payload: %v: %w", TypeCatalogWarm, err, asynq.SkipRetry)
		}
	}
	if h.Warmer == nil {
		return errors.New("catalog warmer not configured")
	}
	started := time.Now()
	methods, rules, err := h.Warmer.Warm(ctx)
	if err != nil {
		obs.CountCatalogWarm("error")
		h.Logger.Error().Err(err).Str("reason", p.Reason).Msg("catalog_warm_failed")
		return err
	}
	obs.CountCatalogWarm("ok")
	h.Logger.Info().
		Str("reason", p.Reason).
		Int("shipping_methods", methods).
		Int("free_shipping_rules", rules).
		Dur("took", time.Since(started)).
		Msg("catalog_warmed")
	return nil
}

// NewServeMux routes all known task types.
func NewServeMux(warm CatalogWarmHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeCatalogWarm, warm)
	return mux
}

// Enqueuer submits catalog warm jobs.
type Enqueuer struct {
	Client    *asynq.Client
	UniqueFor time.Duration
	Logger    zerolog.Logger
}

// Enqueue submits a warm task. Duplicates inside the uniqueness window are dropped.
func (e Enqueuer) Enqueue(ctx context.Context, reason string) error {
	if e.Client == nil {
		return nil
	}
	task, err := NewCatalogWarmTask(reason)
	if err != nil {
		return err
	}
	unique := e.UniqueFor
	if unique <= 0 {
		unique = DefaultUniqueFor
	}
	_, err = e.Client.EnqueueContext(ctx, task, asynq.Unique(unique))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// OnCacheMiss adapts Enqueue to the catalog cache miss hook.
func (e Enqueuer) OnCacheMiss(ctx context.Context) {
	if err := e.Enqueue(context.WithoutCancel(ctx), ReasonCacheMiss); err != nil {
		e.Logger.Warn().Err(err).Msg("catalog_warm_enqueue_failed")
	}
}

// RegisterPeriodic schedules a recurring warm on the asynq scheduler.
func RegisterPeriodic(s *asynq.Scheduler, every time.Duration) (string, error) {
	if every <= 0 {
		return "", errors.New("warm interval must be positive")
	}
	task, err := NewCatalogWarmTask(ReasonSchedule)
	if err != nil {
		return "", err
	}
	return s.Register("@every "+every.String(), task, asynq.Unique(every))
}
