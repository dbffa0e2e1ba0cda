// Package workspace composes translation, speech, image generation and the
// clipboard behind one command surface shared by the socket and web front ends.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/polyglot/internal/image"
	"github.com/rbright/polyglot/internal/ipc"
	"github.com/rbright/polyglot/internal/session"
)

// Command names accepted by Handle.
const (
	CommandStatus     = ipc.CommandStatus
	CommandInput      = "input"
	CommandTranslate  = "translate"
	CommandSwap       = "swap"
	CommandClear      = "clear"
	CommandSource     = "source"
	CommandTarget     = "target"
	CommandLive       = "live"
	CommandSpeak      = "speak"
	CommandCopy       = "copy"
	CommandImage      = "image"
	CommandImageClear = "image-clear"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrNothingToSpeak   = errors.New("nothing to speak")
	ErrNothingToCopy    = errors.New("nothing to copy")
	ErrSpeechNotStarted = errors.New("speech playback did not start")
	ErrUnavailable      = errors.New("component not configured")
	ErrClosed           = errors.New("workspace closed")
)

// Snapshot is the full presentation state.
type Snapshot struct {
	Translation session.Snapshot `json:"translation"`
	Playing     bool             `json:"playing"`
	Image       image.State      `json:"image"`
}

// Speaker plays synthesized speech for text.
type Speaker interface {
	Play(ctx context.Context, text, lang string) bool
	Playing() bool
	OnChange(fn func(bool))
}

// Copier places text on the system clipboard.
type Copier interface {
	Copy(ctx context.Context, text string) error
}

// ImageDefaults are the selections used when an image command leaves them empty.
type ImageDefaults struct {
	Style       string
	Background  string
	AspectRatio string
}

// Workspace owns the controllers for one running polyglot instance.
type Workspace struct {
	logger   *slog.Logger
	session  *session.Controller
	images   *image.Controller
	speaker  Speaker
	copier   Copier
	defaults ImageDefaults

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// pubMu orders compose and delivery so the last snapshot delivered is
	// never older than the last change.
	pubMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	nextID      uint64
	subscribers map[uint64]func(Snapshot)
}

// New wires change notifications from every component into one snapshot feed.
//
// speaker and copier may be nil; their commands then fail with ErrUnavailable.
func New(logger *slog.Logger, sess *session.Controller, images *image.Controller, speaker Speaker, copier Copier, defaults ImageDefaults) *Workspace {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Workspace{
		logger:      logger,
		session:     sess,
		images:      images,
		speaker:     speaker,
		copier:      copier,
		defaults:    defaults,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[uint64]func(Snapshot)),
	}

	sess.Subscribe(func(session.Snapshot) { w.publish() })
	images.OnChange(func(image.State) { w.publish() })
	if speaker != nil {
		speaker.OnChange(func(bool) { w.publish() })
	}
	return w
}

// Snapshot returns the current combined state.
func (w *Workspace) Snapshot() Snapshot {
	return w.compose(w.session.Snapshot())
}

func (w *Workspace) compose(translation session.Snapshot) Snapshot {
	snap := Snapshot{Translation: translation, Image: w.images.State()}
	if w.speaker != nil {
		snap.Playing = w.speaker.Playing()
	}
	return snap
}

// Subscribe registers fn for every state change and returns its cancel func.
func (w *Workspace) Subscribe(fn func(Snapshot)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.subscribers[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subscribers, id)
	}
}

// publish composes the current state and delivers it to every subscriber.
func (w *Workspace) publish() {
	w.pubMu.Lock()
	defer w.pubMu.Unlock()
	w.broadcast(w.Snapshot())
}

func (w *Workspace) broadcast(snap Snapshot) {
	w.mu.Lock()
	subscribers := make([]func(Snapshot), 0, len(w.subscribers))
	for _, fn := range w.subscribers {
		subscribers = append(subscribers, fn)
	}
	w.mu.Unlock()

	for _, fn := range subscribers {
		fn(snap)
	}
}

// Wait blocks until background commands finish.
func (w *Workspace) Wait() {
	w.wg.Wait()
	w.session.Wait()
}

// Close cancels background commands and the translation session. Commands
// that would start background work after Close fail with ErrClosed.
func (w *Workspace) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	w.session.Close()
}

// Handle runs one command and reports the resulting state.
func (w *Workspace) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	message, err := w.dispatch(ctx, req)
	if err != nil {
		w.logWarn("command failed", "command", req.Command, "error", err.Error())
		return w.response(false, "", err.Error())
	}
	return w.response(true, message, "")
}

func (w *Workspace) response(ok bool, message, errText string) ipc.Response {
	resp := ipc.Response{OK: ok, Message: message, Error: errText}
	state, err := json.Marshal(w.Snapshot())
	if err != nil {
		w.logWarn("encode snapshot failed", "error", err.Error())
		return resp
	}
	resp.State = state
	return resp
}

func (w *Workspace) dispatch(ctx context.Context, req ipc.Request) (string, error) {
	switch req.Command {
	case CommandStatus:
		return "", nil
	case CommandInput:
		w.session.Input(req.Text)
		return "", nil
	case CommandTranslate:
		text := req.Text
		return w.run(ctx, req.Wait, "translating", func(ctx context.Context) error {
			w.session.Translate(ctx, text)
			return nil
		})
	case CommandSwap:
		w.session.SwapLanguages()
		return "", nil
	case CommandClear:
		w.session.Clear()
		return "", nil
	case CommandSource:
		return "", w.session.SetSourceLanguage(req.Lang)
	case CommandTarget:
		return "", w.session.SetTargetLanguage(req.Lang)
	case CommandLive:
		if req.Enabled == nil {
			return "", errors.New("live requires enabled=true|false")
		}
		w.session.SetLive(*req.Enabled)
		return "", nil
	case CommandSpeak:
		return w.speak(ctx, req)
	case CommandCopy:
		return w.copy(ctx, req)
	case CommandImage:
		return w.generateImage(ctx, req)
	case CommandImageClear:
		w.images.Clear()
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
}

func (w *Workspace) speak(ctx context.Context, req ipc.Request) (string, error) {
	if w.speaker == nil {
		return "", fmt.Errorf("speech: %w", ErrUnavailable)
	}

	snap := w.session.Snapshot()
	text, lang := snap.TranslatedText, snap.TargetLang
	if req.Source {
		text, lang = snap.SourceText, snap.SourceLang
	}
	if req.Text != "" {
		text = req.Text
	}
	if req.Lang != "" {
		lang = req.Lang
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNothingToSpeak
	}
	if w.speaker.Playing() {
		return "already playing", nil
	}
	lang = w.session.SpeechLanguage(lang)

	return w.run(ctx, req.Wait, "speaking", func(ctx context.Context) error {
		if !w.speaker.Play(ctx, text, lang) {
			return ErrSpeechNotStarted
		}
		return nil
	})
}

func (w *Workspace) copy(ctx context.Context, req ipc.Request) (string, error) {
	if w.copier == nil {
		return "", fmt.Errorf("clipboard: %w", ErrUnavailable)
	}

	snap := w.session.Snapshot()
	text := snap.TranslatedText
	switch {
	case req.Text != "":
		text = req.Text
	case req.Image:
		text = w.images.State().Result
	case req.Source:
		text = snap.SourceText
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNothingToCopy
	}
	if err := w.copier.Copy(ctx, text); err != nil {
		return "", err
	}
	return "copied", nil
}

func (w *Workspace) generateImage(ctx context.Context, req ipc.Request) (string, error) {
	prompt := strings.TrimSpace(req.Text)
	if prompt == "" {
		return "", nil
	}

	style := firstNonEmpty(req.Style, w.defaults.Style)
	background := firstNonEmpty(req.Background, w.defaults.Background)
	ratio := firstNonEmpty(req.AspectRatio, w.defaults.AspectRatio)
	if _, err := image.BuildRequest(prompt, style, background, ratio); err != nil {
		return "", err
	}

	return w.run(ctx, req.Wait, "generating", func(ctx context.Context) error {
		return w.images.Generate(ctx, prompt, style, background, ratio)
	})
}

// run executes fn inline when wait is set, otherwise on a tracked goroutine
// bound to the workspace lifetime.
func (w *Workspace) run(ctx context.Context, wait bool, pending string, fn func(context.Context) error) (string, error) {
	if wait {
		return "", fn(ctx)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return "", ErrClosed
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		if err := fn(w.ctx); err != nil {
			w.logWarn("background command failed", "error", err.Error())
		}
	}()
	return pending, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (w *Workspace) logWarn(message string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Warn(message, args...)
}
