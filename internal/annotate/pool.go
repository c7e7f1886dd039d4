package annotate

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Outcome is the result of one task. Exactly one of Text or Err is
// meaningful. Err carrying a context error means the task was never
// given a fair chance; anything else is a classified service failure.
type Outcome struct {
	Index   int
	Text    string
	Err     error
	Elapsed time.Duration
}

// PoolOptions bound how hard the pool leans on the service.
type PoolOptions struct {
	// Concurrency is the number of requests in flight at once.
	Concurrency int
	// Limiter, when set, spaces requests out pool-wide.
	Limiter *rate.Limiter
	// MaxPauses bounds how many quota pauses one run will sit through
	// before further quota failures become final.
	MaxPauses int
	// QuotaPause is the pause used when the service reports quota
	// exhaustion without saying for how long.
	QuotaPause time.Duration
}

// Pool fans tasks out to a Describer under a concurrency bound. One
// task failing never stops the rest; a quota rejection pauses the whole
// pool, then the rejected task goes back in line.
type Pool struct {
	describer Describer
	limiter   *rate.Limiter
	workers   int
	gate      *quotaGate
}

func NewPool(d Describer, opts PoolOptions) *Pool {
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	pause := opts.QuotaPause
	if pause <= 0 {
		pause = 30 * time.Second
	}
	return &Pool{
		describer: d,
		limiter:   opts.Limiter,
		workers:   workers,
		gate:      newQuotaGate(opts.MaxPauses, pause),
	}
}

// Run describes every task and returns one outcome per task, index
// aligned with the input. It only stops early when ctx does.
func (p *Pool) Run(ctx context.Context, tasks []string) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, code := range tasks {
		g.Go(func() error {
			outcomes[i] = p.describeOne(ctx, i, code)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (p *Pool) describeOne(ctx context.Context, idx int, code string) Outcome {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{Index: idx, Err: err, Elapsed: time.Since(start)}
		}
		if err := p.gate.wait(ctx); err != nil {
			return Outcome{Index: idx, Err: err, Elapsed: time.Since(start)}
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return Outcome{Index: idx, Err: err, Elapsed: time.Since(start)}
			}
		}

		text, err := p.describer.Describe(ctx, code)
		if err == nil {
			return Outcome{Index: idx, Text: text, Elapsed: time.Since(start)}
		}
		var de *DescribeError
		if errors.As(err, &de) && de.Kind == FailQuota && p.gate.pause(de.RetryAfter) {
			continue
		}
		return Outcome{Index: idx, Err: err, Elapsed: time.Since(start)}
	}
}

// quotaGate holds every worker back while a quota pause is active. The
// number of pauses per run is bounded so a dead quota cannot stall a
// run forever.
type quotaGate struct {
	mu        sync.Mutex
	until     time.Time
	remaining int
	fallback  time.Duration
}

func newQuotaGate(maxPauses int, fallback time.Duration) *quotaGate {
	return &quotaGate{remaining: maxPauses, fallback: fallback}
}

// wait blocks until no pause is active or ctx is done.
func (g *quotaGate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		d := time.Until(g.until)
		g.mu.Unlock()
		if d <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}

// pause starts a pool-wide pause of the hinted length, or the fallback
// when the service gave no hint. It reports whether the caller should
// put its task back in line; false means the pause budget is spent and
// the quota failure stands.
func (g *quotaGate) pause(hint time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if time.Now().Before(g.until) {
		// another worker already started a pause, ride it out
		return true
	}
	if g.remaining <= 0 {
		return false
	}
	g.remaining--
	d := hint
	if d <= 0 {
		d = g.fallback
	}
	if until := time.Now().Add(d); until.After(g.until) {
		g.until = until
	}
	return true
}
