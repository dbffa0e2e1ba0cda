package session

import (
	"context"
	"strings"
	"time"

	"github.com/rbright/polyglot/internal/fsm"
	"github.com/rbright/polyglot/internal/languages"
)

// RequestTranslation runs one streamed translation of text and publishes every fragment.
//
// Empty source or target arguments fall back to the session languages. Only the
// most recently issued request may touch session state; a superseded request
// stops consuming its stream at the next fragment.
func (c *Controller) RequestTranslation(ctx context.Context, text, source, target string) {
	if strings.TrimSpace(text) == "" {
		c.mu.Lock()
		c.token++
		c.state.TranslatedText = ""
		c.transitionLocked(fsm.EventClear)
		snap, subs := c.commitLocked()
		c.mu.Unlock()
		c.publish(snap, subs)
		return
	}

	c.mu.Lock()
	c.token++
	token := c.token
	source = c.resolveSourceLocked(source)
	if target == "" {
		target = c.state.TargetLang
	}
	c.transitionLocked(fsm.EventRequest)
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)

	started := time.Now()
	fragments := 0
	var full strings.Builder
	for fragment, err := range c.translator.TranslateStream(ctx, text, source, target) {
		if err != nil {
			c.fail(token, err)
			return
		}
		full.WriteString(fragment)
		fragments++
		if !c.applyFragment(token, full.String()) {
			c.logDebug("translation superseded", "token", token, "fragments", fragments)
			return
		}
	}

	if fragments == 0 {
		c.fail(token, ErrEmptyTranslation)
		return
	}

	c.logInfo("translation complete",
		"source", source,
		"target", target,
		"fragments", fragments,
		"text_length", len(text),
		"translation_length", full.Len(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

// Translate is the explicit, non-debounced translate action.
//
// A non-empty text replaces the source text first. Any pending debounced
// request is cancelled since this one supersedes it.
func (c *Controller) Translate(ctx context.Context, text string) {
	c.mu.Lock()
	c.cancelPendingLocked()
	if text != "" {
		c.state.SourceText = text
	}
	text = c.state.SourceText
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)

	c.RequestTranslation(ctx, text, "", "")
}

// applyFragment publishes the accumulated text when token is still current.
func (c *Controller) applyFragment(token uint64, accumulated string) bool {
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		return false
	}
	c.state.TranslatedText = accumulated
	c.transitionLocked(fsm.EventChunk)
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)
	return true
}

// fail moves a current request to the error state; stale failures are ignored.
func (c *Controller) fail(token uint64, err error) {
	c.mu.Lock()
	if token != c.token {
		c.mu.Unlock()
		c.logDebug("stale translation failure dropped", "token", token, "error", err.Error())
		return
	}
	c.transitionLocked(fsm.EventFail)
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)
	c.logWarn("translation failed", "error", err.Error())
}

// resolveSourceLocked picks the effective source language; callers hold c.mu.
func (c *Controller) resolveSourceLocked(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return c.resolveLocked(c.state.SourceLang)
}

func (c *Controller) resolveLocked(lang string) string {
	if !languages.IsAuto(lang) {
		return lang
	}
	if c.state.DetectedLang != "" {
		return c.state.DetectedLang
	}
	return c.opts.Fallback
}

// SpeechLanguage resolves lang the same way translation resolves its source.
func (c *Controller) SpeechLanguage(lang string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolveLocked(lang)
}
