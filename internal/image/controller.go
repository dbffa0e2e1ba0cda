package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrNotDataURI reports a result that is not a base64 data URI.
var ErrNotDataURI = errors.New("not a base64 data URI")

// Request is one immutable image generation request.
type Request struct {
	Prompt           string
	StyleSuffix      string
	BackgroundSuffix string
	AspectRatio      string
}

// FullPrompt joins prompt, style and background suffixes.
func (r Request) FullPrompt() string {
	return fmt.Sprintf("%s. %s. %s", r.Prompt, r.StyleSuffix, r.BackgroundSuffix)
}

// Generator produces an encoded image (data URI) for a request.
type Generator interface {
	GenerateImage(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) GenerateImage(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// State is the observable image generation state.
type State struct {
	Generating bool   `json:"generating"`
	Result     string `json:"result,omitempty"`
	Prompt     string `json:"prompt,omitempty"`
}

// Controller runs one-shot image generation and holds the latest result.
type Controller struct {
	logger    *slog.Logger
	generator Generator

	mu       sync.Mutex
	state    State
	seq      uint64
	onChange func(State)
}

// NewController builds an image controller around generator.
func NewController(logger *slog.Logger, generator Generator) *Controller {
	return &Controller{logger: logger, generator: generator}
}

// OnChange registers fn to receive each state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// State returns the current generation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generate resolves catalog selections and runs one generation.
//
// Empty prompts are a no-op. The previous result is cleared before the request
// is issued; failures and empty responses leave the result empty. Only the
// latest generation may store a result or clear the generating flag.
func (c *Controller) Generate(ctx context.Context, prompt, styleID, backgroundID, aspectRatio string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}

	req, err := BuildRequest(prompt, styleID, backgroundID, aspectRatio)
	if err != nil {
		return err
	}

	var seq uint64
	c.update(func(s *State) {
		c.seq++
		seq = c.seq
		s.Generating = true
		s.Result = ""
		s.Prompt = prompt
	})
	defer c.updateIfCurrent(seq, func(s *State) { s.Generating = false })

	if c.generator == nil {
		c.logWarn("image generation skipped: no generator configured")
		return nil
	}

	started := time.Now()
	result, err := c.generator.GenerateImage(ctx, req)
	if err != nil {
		c.logWarn("image generation failed", "error", err.Error())
		return nil
	}
	if result == "" {
		c.logInfo("image generation returned no image", "duration_ms", time.Since(started).Milliseconds())
		return nil
	}

	if !c.updateIfCurrent(seq, func(s *State) { s.Result = result }) {
		c.logInfo("image result superseded", "duration_ms", time.Since(started).Milliseconds())
		return nil
	}
	c.logInfo("image generated",
		"style", styleID,
		"background", backgroundID,
		"aspect_ratio", req.AspectRatio,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// BuildRequest resolves catalog selections into a Request; empty ids select the defaults.
func BuildRequest(prompt, styleID, backgroundID, aspectRatio string) (Request, error) {
	style, err := LookupStyle(styleID)
	if err != nil {
		return Request{}, err
	}
	bg, err := LookupBackground(backgroundID)
	if err != nil {
		return Request{}, err
	}
	ratio, err := ValidateAspectRatio(aspectRatio)
	if err != nil {
		return Request{}, err
	}
	return Request{
		Prompt:           strings.TrimSpace(prompt),
		StyleSuffix:      style.Suffix,
		BackgroundSuffix: bg.Suffix,
		AspectRatio:      ratio,
	}, nil
}

// Clear drops the current result and abandons any generation in flight.
func (c *Controller) Clear() {
	c.update(func(s *State) {
		c.seq++
		s.Generating = false
		s.Result = ""
		s.Prompt = ""
	})
}

func (c *Controller) update(fn func(*State)) {
	c.apply(func(s *State) bool {
		fn(s)
		return true
	})
}

// updateIfCurrent applies fn only while seq is the latest generation.
func (c *Controller) updateIfCurrent(seq uint64, fn func(*State)) bool {
	return c.apply(func(s *State) bool {
		if c.seq != seq {
			return false
		}
		fn(s)
		return true
	})
}

func (c *Controller) apply(fn func(*State) bool) bool {
	c.mu.Lock()
	if !fn(&c.state) {
		c.mu.Unlock()
		return false
	}
	state := c.state
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
	return true
}

// DecodeDataURI returns the MIME type and payload of a base64 data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return mime, data, nil
}

// EncodeDataURI builds a base64 data URI for data.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
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
