package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rbright/polyglot/internal/fsm"
	"github.com/rbright/polyglot/internal/languages"
)

// ErrAutoDetectTarget rejects the auto-detect sentinel as a target language.
var ErrAutoDetectTarget = errors.New("auto-detect cannot be a target language")

// Input records a keystroke-level source text change.
//
// It re-arms the debounced live translation and runs detection in the background.
func (c *Controller) Input(text string) {
	c.mu.Lock()
	c.state.SourceText = text
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)

	c.DebouncedTrigger(text)
	if c.qualifiesForDetection(text) {
		c.spawn(func(ctx context.Context) {
			c.DetectLanguage(ctx, text)
		})
	}
}

func (c *Controller) qualifiesForDetection(text string) bool {
	c.mu.Lock()
	auto := languages.IsAuto(c.state.SourceLang)
	c.mu.Unlock()
	return auto && utf8.RuneCountInString(text) >= c.opts.DetectMinRunes
}

// DetectLanguage asks the provider for the language of text while auto-detect is active.
//
// A new detection result may flip the target to the pair counterpart and, in
// live mode, immediately translates text from the detected language. Results
// for text that is no longer the current source text are dropped.
func (c *Controller) DetectLanguage(ctx context.Context, text string) {
	if !c.qualifiesForDetection(text) {
		return
	}

	detected, err := c.detector.DetectLanguage(ctx, text)
	if err != nil {
		c.logDebug("language detection failed", "error", err.Error())
		return
	}
	detected = strings.TrimSpace(detected)
	if detected == "" {
		return
	}

	c.mu.Lock()
	if !languages.IsAuto(c.state.SourceLang) || c.state.SourceText != text || detected == c.state.DetectedLang {
		c.mu.Unlock()
		return
	}
	c.state.DetectedLang = detected
	if detected == c.state.TargetLang {
		if other, ok := c.opts.Pair.Counterpart(detected); ok {
			c.state.TargetLang = other
		}
	}
	live := c.state.Live
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)

	c.logDebug("language detected", "language", detected, "target", snap.TargetLang)
	if live {
		c.RequestTranslation(ctx, text, detected, "")
	}
}

// SwapLanguages exchanges languages and texts in one atomic update.
//
// The auto-detect sentinel resolves to the detected (or fallback) language
// first. Pending and in-flight requests are invalidated; in live mode a
// translation of the previous output runs with the languages inverted.
func (c *Controller) SwapLanguages() {
	c.mu.Lock()
	curSource := c.resolveSourceLocked("")
	curTarget := c.state.TargetLang
	prevSource := c.state.SourceText
	prevTranslated := c.state.TranslatedText

	c.state.SourceLang = curTarget
	c.state.TargetLang = curSource
	c.state.SourceText = prevTranslated
	c.state.TranslatedText = prevSource
	c.state.DetectedLang = ""

	c.cancelPendingLocked()
	c.token++
	retranslate := c.state.Live && prevTranslated != ""
	if !retranslate && c.state.Status == fsm.StateLoading {
		c.transitionLocked(fsm.EventClear)
	}
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)

	if retranslate {
		c.spawn(func(ctx context.Context) {
			c.RequestTranslation(ctx, prevTranslated, curTarget, curSource)
		})
	}
}

// Clear resets texts and detection, returns to idle, and suppresses in-flight results.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.cancelPendingLocked()
	c.token++
	c.state.SourceText = ""
	c.state.TranslatedText = ""
	c.state.DetectedLang = ""
	c.transitionLocked(fsm.EventClear)
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)
}

// SetSourceLanguage changes the source language and forgets any detection.
func (c *Controller) SetSourceLanguage(nameOrCode string) error {
	lang, err := languages.Lookup(nameOrCode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state.SourceLang = lang.Name
	c.state.DetectedLang = ""
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)
	return nil
}

// SetTargetLanguage changes the target language.
func (c *Controller) SetTargetLanguage(nameOrCode string) error {
	lang, err := languages.Lookup(nameOrCode)
	if err != nil {
		return err
	}
	if languages.IsAuto(lang.Name) {
		return fmt.Errorf("set target %q: %w", nameOrCode, ErrAutoDetectTarget)
	}

	c.mu.Lock()
	c.state.TargetLang = lang.Name
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)
	return nil
}

// SetLive toggles live mode; turning it off cancels a pending debounced request.
func (c *Controller) SetLive(enabled bool) {
	c.mu.Lock()
	c.state.Live = enabled
	if !enabled {
		c.cancelPendingLocked()
	}
	snap, subs := c.commitLocked()
	c.mu.Unlock()
	c.publish(snap, subs)
}
