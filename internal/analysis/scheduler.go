package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// DefaultDebounce is the quiet period after the last cart change before re-analysis.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned once the scheduler has been shut down.
var ErrClosed = errors.New("analysis scheduler closed")

// Loader reads one consistent cart snapshot plus the buyer it belongs to.
type Loader func(ctx context.Context, cartID string) (Cart, pricing.Identity, error)

// Stored is the latest committed analysis for a cart.
type Stored struct {
	Token       uint64
	Result      Result
	CompletedAt time.Time
}

// Scheduler debounces cart changes into analyses and keeps only the result
// of the newest request per cart. Bookkeeping for a cart is released once it
// has no pending timer, no running analysis and no stored result.
type Scheduler struct {
	Analyzer *Analyzer
	Load     Loader
	Debounce time.Duration
	Seq      *Sequencer
	Logger   zerolog.Logger
	// Expired reports whether a Load error means the cart no longer exists.
	// Its stored result is dropped then.
	Expired func(error) bool
	// Retention bounds how long a result outlives its analysis when the
	// cart is never touched again. Zero keeps results until Forget.
	Retention time.Duration
	Now       func() time.Time

	mu       sync.Mutex
	timers   map[string]*time.Timer
	inflight map[string]int
	results  map[string]Stored
	closed   bool
	wg       sync.WaitGroup
}

// NewScheduler wires a scheduler with its own sequencer.
func NewScheduler(analyzer *Analyzer, load Loader, debounce time.Duration, logger zerolog.Logger) *Scheduler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Scheduler{
		Analyzer: analyzer,
		Load:     load,
		Debounce: debounce,
		Seq:      NewSequencer(),
		Logger:   logger,
		timers:   make(map[string]*time.Timer),
		inflight: make(map[string]int),
		results:  make(map[string]Stored),
	}
}

// Schedule (re)starts the debounce window for cartID.
func (s *Scheduler) Schedule(cartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[cartID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.Debounce, func() { s.fire(cartID, t) })
	s.timers[cartID] = t
}

// fire runs the analysis for t unless a newer Schedule replaced it while the
// callback was waiting for the lock.
func (s *Scheduler) fire(cartID string, t *time.Timer) {
	s.mu.Lock()
	if s.closed || s.timers[cartID] != t {
		s.mu.Unlock()
		return
	}
	delete(s.timers, cartID)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if _, err := s.Run(context.Background(), cartID); err != nil && !errors.Is(err, ErrClosed) && !s.expired(err) {
		s.Logger.Error().Err(err).Str("cart_id", cartID).Msg("analysis_load_failed")
	}
}

// Run analyses cartID now. The result is returned to the caller either way
// but is stored only if no newer request started meanwhile.
func (s *Scheduler) Run(ctx context.Context, cartID string) (Result, error) {
	token, err := s.begin(cartID)
	if err != nil {
		return Result{}, err
	}
	cart, who, err := s.Load(ctx, cartID)
	if err != nil {
		s.finish(cartID, token, nil, s.expired(err))
		return Result{}, err
	}
	res := s.Analyzer.Analyze(ctx, cart, who)
	if !s.finish(cartID, token, &res, false) {
		obs.CountStaleAnalysis()
		s.Logger.Debug().
			Str("cart_id", cartID).
			Uint64("token", token).
			Int64("cart_version", cart.Version).
			Msg("analysis_stale_discarded")
	}
	return res, nil
}

func (s *Scheduler) begin(cartID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.inflight[cartID]++
	return s.Seq.Next(cartID), nil
}

// finish commits res when token is still current, drops the stored result of
// an expired cart and releases the cart if nothing else refers to it.
func (s *Scheduler) finish(cartID string, token uint64, res *Result, gone bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	committed := false
	if res != nil {
		committed = s.Seq.Commit(cartID, token, func() {
			s.results[cartID] = Stored{Token: token, Result: *res, CompletedAt: s.now()}
		})
	}
	if gone {
		delete(s.results, cartID)
	}
	if n := s.inflight[cartID] - 1; n > 0 {
		s.inflight[cartID] = n
	} else {
		delete(s.inflight, cartID)
	}
	s.release(cartID)
	return committed
}

// release forgets the token counter of an idle cart. Callers hold s.mu.
func (s *Scheduler) release(cartID string) {
	if _, ok := s.inflight[cartID]; ok {
		return
	}
	if _, ok := s.timers[cartID]; ok {
		return
	}
	if _, ok := s.results[cartID]; ok {
		return
	}
	s.Seq.Forget(cartID)
}

// Latest returns the newest committed analysis for cartID.
func (s *Scheduler) Latest(cartID string) (Stored, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.results[cartID]
	return st, ok
}

// Pending reports whether a debounced analysis is waiting to fire for cartID.
func (s *Scheduler) Pending(cartID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[cartID]
	return ok
}

// Tracked is the number of carts holding a stored result.
func (s *Scheduler) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Forget cancels pending work and drops the stored result for cartID.
func (s *Scheduler) Forget(cartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[cartID]; ok {
		t.Stop()
		delete(s.timers, cartID)
	}
	delete(s.results, cartID)
	if _, running := s.inflight[cartID]; running {
		// A new token makes the running analysis stale.
		s.Seq.Next(cartID)
		return
	}
	s.release(cartID)
}

// Sweep drops results older than Retention for carts with no pending or
// running analysis and reports how many were removed.
func (s *Scheduler) Sweep() int {
	if s.Retention <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.Retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, st := range s.results {
		if !st.CompletedAt.Before(cutoff) {
			continue
		}
		if _, ok := s.timers[id]; ok {
			continue
		}
		if _, ok := s.inflight[id]; ok {
			continue
		}
		delete(s.results, id)
		s.release(id)
		removed++
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Scheduler) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 || s.Retention <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.Logger.Debug().Int("removed", n).Msg("analysis_results_swept")
			}
		}
	}
}

// Close stops pending timers and waits for running analyses to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) expired(err error) bool {
	return s.Expired != nil && s.Expired(err)
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
