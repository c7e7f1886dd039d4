package annotate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeStep scripts one Describe call of a Fake: either Text comes back
// or Err does.
type FakeStep struct {
	Text string
	Err  error
}

// Fake is a scripted Describer for tests. Calls consume the script in
// order; once it runs out the last step repeats. With no script at all
// every call succeeds with a canned description. Fn, when set, replaces
// the script entirely.
type Fake struct {
	Fn    func(code string) (string, error)
	Delay time.Duration

	mu        sync.Mutex
	script    []FakeStep
	calls     int
	active    int
	maxActive int
}

func NewFake(steps ...FakeStep) *Fake {
	return &Fake{script: steps}
}

func (f *Fake) Describe(ctx context.Context, code string) (string, error) {
	f.mu.Lock()
	i := f.calls
	f.calls++
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	delay := f.Delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if f.Fn != nil {
		return f.Fn(code)
	}
	if len(f.script) == 0 {
		return fmt.Sprintf("Scripted description of a %d byte function.", len(code)), nil
	}
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	step := f.script[i]
	if step.Err != nil {
		return "", step.Err
	}
	return step.Text, nil
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Close() error { return nil }

// Calls reports how many Describe calls arrived.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// MaxActive reports the highest number of Describe calls in flight at
// once, for checking concurrency bounds.
func (f *Fake) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}
