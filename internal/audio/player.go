// Package audio plays synthesized speech on a lazily opened output device.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SampleRate is the PCM rate of synthesized speech.
const SampleRate = 24000

// ErrEmptyAudio indicates the synthesizer returned no samples.
var ErrEmptyAudio = errors.New("synthesizer returned no audio")

// Synthesizer returns raw 16-bit little-endian mono PCM for text.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, lang string) ([]byte, error)
}

// SynthesizerFunc adapts a function to Synthesizer.
type SynthesizerFunc func(ctx context.Context, text, lang string) ([]byte, error)

func (f SynthesizerFunc) SynthesizeSpeech(ctx context.Context, text, lang string) ([]byte, error) {
	return f(ctx, text, lang)
}

// Output is a playback device. Play submits samples and returns; done runs
// once the device signals completion.
type Output interface {
	Play(samples []float32, done func()) error
	Close() error
}

// OutputFactory opens the playback device on first use.
type OutputFactory func() (Output, error)

// PlayerOptions toggles debug behavior.
type PlayerOptions struct {
	DumpWAV bool
}

// Player enforces a single in-progress playback and reuses one output device.
type Player struct {
	logger  *slog.Logger
	synth   Synthesizer
	factory OutputFactory
	opts    PlayerOptions

	mu       sync.Mutex
	output   Output
	playing  bool
	onChange func(bool)
}

// NewPlayer wires a synthesizer to a lazily created output.
func NewPlayer(logger *slog.Logger, synth Synthesizer, factory OutputFactory, opts PlayerOptions) *Player {
	return &Player{logger: logger, synth: synth, factory: factory, opts: opts}
}

// OnChange registers fn to receive playing-flag changes.
func (p *Player) OnChange(fn func(bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Playing reports whether a playback is in progress.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play synthesizes text and submits it to the output.
//
// It returns false without contacting the synthesizer when text is empty or a
// playback is already in progress. Synthesis or device failures reset the flag.
func (p *Player) Play(ctx context.Context, text, lang string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if !p.setPlaying(true, true) {
		p.logDebug("playback rejected: already playing")
		return false
	}

	if err := p.play(ctx, text, lang); err != nil {
		p.logWarn("playback failed", "error", err.Error())
		p.setPlaying(false, false)
		return false
	}
	return true
}

func (p *Player) play(ctx context.Context, text, lang string) error {
	if p.synth == nil {
		return errors.New("no speech synthesizer configured")
	}

	started := time.Now()
	pcm, err := p.synth.SynthesizeSpeech(ctx, text, lang)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if len(pcm) < 2 {
		return ErrEmptyAudio
	}
	if p.opts.DumpWAV {
		if path, err := DumpWAV(pcm, SampleRate); err != nil {
			p.logWarn("unable to write debug audio dump", "error", err.Error())
		} else {
			p.logDebug("debug audio dump written", "path", path)
		}
	}

	output, err := p.ensureOutput()
	if err != nil {
		return err
	}

	samples := DecodePCM16LE(pcm)
	if err := output.Play(samples, func() { p.setPlaying(false, false) }); err != nil {
		return fmt.Errorf("submit samples: %w", err)
	}

	p.logInfo("playback started",
		"language", lang,
		"samples", len(samples),
		"duration_ms", int64(len(samples))*1000/SampleRate,
		"synthesis_ms", time.Since(started).Milliseconds(),
	)
	return nil
}

// ensureOutput opens the output once and reuses it for later playbacks.
func (p *Player) ensureOutput() (Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.output != nil {
		return p.output, nil
	}
	if p.factory == nil {
		return nil, errors.New("no audio output configured")
	}
	output, err := p.factory()
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}
	p.output = output
	return output, nil
}

// setPlaying updates the flag. With exclusive set it only succeeds on a change.
func (p *Player) setPlaying(value bool, exclusive bool) bool {
	p.mu.Lock()
	if exclusive && p.playing == value {
		p.mu.Unlock()
		return false
	}
	changed := p.playing != value
	p.playing = value
	onChange := p.onChange
	p.mu.Unlock()

	if changed && onChange != nil {
		onChange(value)
	}
	return true
}

// Close releases the output device if one was opened.
func (p *Player) Close() error {
	p.mu.Lock()
	output := p.output
	p.output = nil
	p.mu.Unlock()

	if output == nil {
		return nil
	}
	return output.Close()
}

// DecodePCM16LE converts signed 16-bit little-endian samples to [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16LE(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float32(v) / 32768
	}
	return samples
}

func (p *Player) logDebug(message string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(message, args...)
}

func (p *Player) logInfo(message string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Info(message, args...)
}

func (p *Player) logWarn(message string, args ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(message, args...)
}
