package session

import "time"

// Timer is a cancelable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler arms delayed callbacks; tests substitute a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// DebouncedTrigger (re)arms the single pending live translation for text.
//
// A call before the quiet period expires cancels the previous timer, so only
// the last keystroke of a burst reaches the provider. No-op when live mode is off.
func (c *Controller) DebouncedTrigger(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Live || c.closed {
		return
	}

	c.cancelPendingLocked()
	seq := c.debounceSeq
	c.pending = c.scheduler.AfterFunc(c.opts.QuietPeriod, func() {
		c.mu.Lock()
		// Stop can lose the race against an already-fired timer.
		if seq != c.debounceSeq || c.closed {
			c.mu.Unlock()
			return
		}
		c.pending = nil
		c.inflight.Add(1)
		c.mu.Unlock()

		defer c.inflight.Done()
		c.RequestTranslation(c.ctx, text, "", "")
	})
}

// cancelPendingLocked stops the pending debounce timer; callers hold c.mu.
func (c *Controller) cancelPendingLocked() {
	c.debounceSeq++
	if c.pending == nil {
		return
	}
	c.pending.Stop()
	c.pending = nil
}
