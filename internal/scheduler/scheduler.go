// Package scheduler drives periodic captures: it tracks each target's
// own check interval, dispatches due targets onto a bounded worker
// pool, skips any target whose previous capture is still in flight,
// and backs off exponentially on a target whose renders keep failing.
// It generalizes the single global-interval ticker loop of the
// original scheduling job runner to per-target cadences.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/internal/detector"
	"github.com/RamfiAogusto/competitor-tracker/internal/domain"
)

// errAlreadyInFlight reports that a capture for a target is already
// running, per domain.TargetLocked: manual callers see it immediately,
// the scheduler's own dispatch loop skips it silently.
var errAlreadyInFlight = domain.NewError(domain.TargetLocked, "target capture already in flight", nil)

// TargetLister supplies the set of targets eligible for scheduling.
type TargetLister interface {
	ActiveTargets(ctx context.Context) ([]domain.Target, error)
}

// Renderer fetches the rendered HTML for a target's URL.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// DefaultWorkers is used when no worker count is configured.
const DefaultWorkers = 8

const (
	minBackoff = 30 * time.Second
	maxBackoff = 30 * time.Minute
)

// Scheduler runs the capture loop.
type Scheduler struct {
	lister   TargetLister
	renderer Renderer
	detector *detector.Detector
	workers  int
	tick     time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
	backoffs map[uuid.UUID]backoffState
}

type backoffState struct {
	failures   int
	retryAfter time.Time
}

// New constructs a Scheduler. tick controls how often the driving loop
// re-checks which targets are due; it should be fine-grained (around a
// second) since each target's own interval governs when it actually runs.
func New(lister TargetLister, renderer Renderer, det *detector.Detector, workers int, tick time.Duration) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{
		lister:   lister,
		renderer: renderer,
		detector: det,
		workers:  workers,
		tick:     tick,
		logger:   slog.Default(),
		inFlight: make(map[uuid.UUID]bool),
		backoffs: make(map[uuid.UUID]backoffState),
	}
}

// Run blocks until ctx is cancelled, dispatching due targets onto a
// bounded worker pool each tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	sem := make(chan struct{}, s.workers)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx, sem)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context, sem chan struct{}) {
	targets, err := s.lister.ActiveTargets(ctx)
	if err != nil {
		s.logger.Error("list active targets", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, target := range targets {
		if !s.isDue(target, now) {
			continue
		}
		if !s.tryClaim(target.ID) {
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			s.release(target.ID)
			return
		}

		go func(t domain.Target) {
			defer func() { <-sem }()
			defer s.release(t.ID)
			s.captureOne(ctx, t)
		}(target)
	}
}

func (s *Scheduler) isDue(target domain.Target, now time.Time) bool {
	if !target.MonitoringEnabled || target.Deleted {
		return false
	}
	if s.inBackoff(target.ID, now) {
		return false
	}
	if target.LastCheckedAt == nil {
		return true
	}
	interval := time.Duration(target.CheckIntervalSecs) * time.Second
	return now.Sub(*target.LastCheckedAt) >= interval
}

// TriggerNow forces an immediate capture of target, bypassing its
// interval but still respecting the in-flight skip-set, for
// manually-requested captures. It runs on the caller's goroutine and
// does not take a slot in Run's worker pool.
func (s *Scheduler) TriggerNow(ctx context.Context, target domain.Target) (detector.Result, error) {
	if !s.tryClaim(target.ID) {
		return detector.Result{}, errAlreadyInFlight
	}
	defer s.release(target.ID)
	return s.capture(ctx, target, domain.SourceManual)
}

// CaptureWithHTML runs the classify/persist/publish pipeline directly
// against caller-supplied HTML, bypassing the Renderer entirely. It is
// used by manual captures that already have the page content in hand
// (simulated captures, QA fixtures) and shares TriggerNow's in-flight
// claim so it never races a concurrent scheduled or manual capture of
// the same target.
func (s *Scheduler) CaptureWithHTML(ctx context.Context, target domain.Target, html string) (detector.Result, error) {
	if !s.tryClaim(target.ID) {
		return detector.Result{}, errAlreadyInFlight
	}
	defer s.release(target.ID)

	result, err := s.detector.Capture(ctx, target, html, domain.SourceManual)
	if err != nil {
		return detector.Result{}, err
	}
	if result.Changed {
		s.logger.Info("change detected", "target", target.ID, "version", result.Snapshot.VersionNumber, "severity", result.Event.Severity)
	}
	return result, nil
}

func (s *Scheduler) captureOne(ctx context.Context, target domain.Target) {
	if _, err := s.capture(ctx, target, domain.SourceScheduled); err != nil {
		s.logger.Error("capture failed", "target", target.ID, "url", target.URL, "error", err)
	}
}

func (s *Scheduler) capture(ctx context.Context, target domain.Target, source domain.CaptureSource) (detector.Result, error) {
	html, err := s.renderer.Render(ctx, target.URL)
	if err != nil {
		s.recordFailure(target.ID)
		return detector.Result{}, domain.NewError(domain.RenderUnavailable, "render target", err)
	}
	s.recordSuccess(target.ID)

	result, err := s.detector.Capture(ctx, target, html, source)
	if err != nil {
		return detector.Result{}, err
	}
	if result.Changed {
		s.logger.Info("change detected", "target", target.ID, "version", result.Snapshot.VersionNumber, "severity", result.Event.Severity)
	}
	return result, nil
}

func (s *Scheduler) tryClaim(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Scheduler) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *Scheduler) inBackoff(id uuid.UUID, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.backoffs[id]
	return ok && now.Before(state.retryAfter)
}

func (s *Scheduler) recordFailure(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.backoffs[id]
	state.failures++
	delay := minBackoff << uint(state.failures-1)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	state.retryAfter = time.Now().UTC().Add(delay)
	s.backoffs[id] = state
}

func (s *Scheduler) recordSuccess(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.backoffs, id)
}
