package core

// run_limiter.go caps how many validation and append runs hold a whole file
// in memory at once. Each slot records the stage that holds it so /healthz
// and shutdown logging can tell a long validation from an open transaction.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when no run slot frees up within the wait limit.
var ErrTooManyRuns = errors.New("too many concurrent runs, please try again later")

const (
	DefaultMaxConcurrentRuns = 4
	DefaultMaxWaitTime       = 30 * time.Second
)

// RunLimiter hands out a fixed number of run slots, each tagged with the
// stage (validate or append) that holds it.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	byStage map[Stage]int
	held    int
	idle    chan struct{} // closed whenever held == 0
}

// NewRunLimiter allows maxConcurrent runs; callers give up on a slot after
// maxWait. Non-positive values select the defaults.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	idle := make(chan struct{})
	close(idle)
	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		byStage: make(map[Stage]int),
		idle:    idle,
	}
}

// Acquire takes a slot for stage and returns the function that gives it
// back. release is safe to call more than once; only the first call counts.
func (l *RunLimiter) Acquire(ctx context.Context, stage Stage) (release func(), err error) {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
	case <-timer.C:
		return nil, ErrTooManyRuns
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	l.mu.Lock()
	if l.held == 0 {
		l.idle = make(chan struct{})
	}
	l.held++
	l.byStage[stage]++
	l.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { l.release(stage) }) }, nil
}

func (l *RunLimiter) release(stage Stage) {
	l.mu.Lock()
	l.byStage[stage]--
	l.held--
	if l.held == 0 {
		close(l.idle)
	}
	l.mu.Unlock()
	<-l.slots
}

// WaitForDrain returns once no run holds a slot, or with ctx's error.
// Shutdown uses it so an append is not cut off mid-transaction.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunLimiterStatus is a snapshot of slot usage, served on /healthz.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Validating    int `json:"validating"`
	Appending     int `json:"appending"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports how many slots each stage holds.
func (l *RunLimiter) Status() RunLimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return RunLimiterStatus{
		Active:        l.held,
		Validating:    l.byStage[StageValidate],
		Appending:     l.byStage[StageAppend],
		Available:     cap(l.slots) - l.held,
		MaxConcurrent: cap(l.slots),
	}
}
