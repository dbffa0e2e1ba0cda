package session

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"
)

type step struct {
	fragment string
	err      error
}

type translateCall struct {
	text   string
	source string
	target string
	at     time.Duration
}

// fakeTranslator replays scripted steps; streams queued in next take priority.
type fakeTranslator struct {
	mu     sync.Mutex
	clock  *manualClock
	script []step
	next   []iter.Seq2[string, error]
	calls  []translateCall
}

func (f *fakeTranslator) TranslateStream(_ context.Context, text, source, target string) iter.Seq2[string, error] {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := translateCall{text: text, source: source, target: target}
	if f.clock != nil {
		call.at = f.clock.Now()
	}
	f.calls = append(f.calls, call)

	if len(f.next) > 0 {
		seq := f.next[0]
		f.next = f.next[1:]
		return seq
	}

	script := append([]step(nil), f.script...)
	return func(yield func(string, error) bool) {
		for _, s := range script {
			if s.err != nil {
				yield("", s.err)
				return
			}
			if !yield(s.fragment, nil) {
				return
			}
		}
	}
}

func (f *fakeTranslator) Calls() []translateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]translateCall(nil), f.calls...)
}

// gatedStream yields each fragment only after a value arrives on release.
func gatedStream(release <-chan struct{}, fragments ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, fragment := range fragments {
			<-release
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

type fakeDetector struct {
	mu     sync.Mutex
	result string
	err    error
	calls  []string
}

func (f *fakeDetector) DetectLanguage(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	return f.result, f.err
}

func (f *fakeDetector) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// manualClock fires timers synchronously from Advance.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		due := make([]*manualTimer, 0)
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// recorder captures every published snapshot.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}
