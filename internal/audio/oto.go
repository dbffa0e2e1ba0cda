package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const otoPollInterval = 10 * time.Millisecond

// OtoOutput plays float32 mono samples through an oto context.
//
// oto allows one context per process, so callers open it once and reuse it.
type OtoOutput struct {
	ctx *oto.Context

	mu     sync.Mutex
	active *oto.Player
	closed bool
}

// OpenOtoOutput initializes the system audio context and waits until it is ready.
func OpenOtoOutput() (*OtoOutput, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("create oto context: %w", err)
	}
	<-ready
	return &OtoOutput{ctx: ctx}, nil
}

// Play starts a player for samples; done runs once the player stops.
func (o *OtoOutput) Play(samples []float32, done func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("oto output is closed")
	}

	player := o.ctx.NewPlayer(bytes.NewReader(encodeFloat32LE(samples)))
	o.active = player
	player.Play()

	go func() {
		for player.IsPlaying() {
			time.Sleep(otoPollInterval)
		}
		_ = player.Close()

		o.mu.Lock()
		if o.active == player {
			o.active = nil
		}
		o.mu.Unlock()

		if done != nil {
			done()
		}
	}()
	return nil
}

// Close pauses any active player. The oto context itself lives for the process.
func (o *OtoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	if o.active != nil {
		o.active.Pause()
	}
	return nil
}

func encodeFloat32LE(samples []float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(s))
	}
	return out
}
