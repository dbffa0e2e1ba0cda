// Package session coordinates live translation state, debounced triggering, and streamed output.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/polyglot/internal/fsm"
	"github.com/rbright/polyglot/internal/languages"
)

const (
	// DefaultQuietPeriod is the keystroke quiet period before a live translation fires.
	DefaultQuietPeriod = 800 * time.Millisecond
	// DefaultDetectMinRunes is the shortest input sent for language detection.
	DefaultDetectMinRunes = 5
)

// Snapshot is one published view of the translation session state.
type Snapshot struct {
	SourceText     string    `json:"source_text"`
	TranslatedText string    `json:"translated_text"`
	SourceLang     string    `json:"source_lang"`
	TargetLang     string    `json:"target_lang"`
	DetectedLang   string    `json:"detected_lang,omitempty"`
	Status         fsm.State `json:"status"`
	Live           bool      `json:"live"`
	Version        uint64    `json:"version"`
}

// Options controls pipeline timing, language defaults, and scheduling.
type Options struct {
	QuietPeriod    time.Duration
	DetectMinRunes int
	Fallback       string
	Pair           languages.Pair
	SourceLang     string
	TargetLang     string
	Live           bool
	Scheduler      Scheduler
}

// DefaultOptions mirrors the stock workspace: auto-detect into Hindi, live mode on.
func DefaultOptions() Options {
	return Options{
		QuietPeriod:    DefaultQuietPeriod,
		DetectMinRunes: DefaultDetectMinRunes,
		Fallback:       languages.DefaultPair.Primary,
		Pair:           languages.DefaultPair,
		SourceLang:     languages.AutoDetect,
		TargetLang:     languages.DefaultPair.Secondary,
		Live:           true,
	}
}

// Controller owns one translation session and its pipeline.
type Controller struct {
	logger     *slog.Logger
	translator Translator
	detector   Detector
	scheduler  Scheduler
	opts       Options

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       Snapshot
	token       uint64
	pending     Timer
	debounceSeq uint64
	closed      bool
	subscribers []func(Snapshot)

	notifyMu  sync.Mutex
	delivered uint64

	inflight sync.WaitGroup
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(logger *slog.Logger, translator Translator, detector Detector, opts Options) *Controller {
	defaults := DefaultOptions()
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = defaults.QuietPeriod
	}
	if opts.DetectMinRunes <= 0 {
		opts.DetectMinRunes = defaults.DetectMinRunes
	}
	if opts.Fallback == "" {
		opts.Fallback = defaults.Fallback
	}
	if opts.Pair == (languages.Pair{}) {
		opts.Pair = defaults.Pair
	}
	if opts.SourceLang == "" {
		opts.SourceLang = defaults.SourceLang
	}
	if opts.TargetLang == "" {
		opts.TargetLang = defaults.TargetLang
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clockScheduler{}
	}
	if translator == nil {
		translator = unavailableTranslator{}
	}
	if detector == nil {
		detector = noopDetector{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		logger:     logger,
		translator: translator,
		detector:   detector,
		scheduler:  opts.Scheduler,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		state: Snapshot{
			SourceLang: opts.SourceLang,
			TargetLang: opts.TargetLang,
			Status:     fsm.StateIdle,
			Live:       opts.Live,
		},
	}
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to receive every published snapshot in version order.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Wait blocks until background work (debounced requests, detection, swaps) finishes.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close cancels pending timers and background requests, then waits for them.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.cancelPendingLocked()
	c.token++
	c.mu.Unlock()

	c.cancel()
	c.inflight.Wait()
}

// transitionLocked applies one FSM event; callers hold c.mu.
func (c *Controller) transitionLocked(event fsm.Event) {
	next, err := fsm.Transition(c.state.Status, event)
	if err != nil {
		c.logDebug("status transition rejected", "error", err.Error())
		return
	}
	c.state.Status = next
}

// commitLocked stamps a new version and returns the snapshot to publish.
func (c *Controller) commitLocked() (Snapshot, []func(Snapshot)) {
	c.state.Version++
	return c.state, c.subscribers
}

// publish delivers snap to subscribers, dropping versions older than one already delivered.
func (c *Controller) publish(snap Snapshot, subscribers []func(Snapshot)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if snap.Version <= c.delivered {
		return
	}
	c.delivered = snap.Version
	for _, fn := range subscribers {
		fn(snap)
	}
}

// spawn runs fn on a tracked goroutine bound to the controller lifetime.
func (c *Controller) spawn(fn func(context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		fn(c.ctx)
	}()
}

func (c *Controller) logDebug(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(message, args...)
}

func (c *Controller) logInfo(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(message, args...)
}

func (c *Controller) logWarn(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(message, args...)
}
