package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse output sink surfaced to polyglot.
type Device struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	State       string `json:"state"`
	Available   bool   `json:"available"`
	Muted       bool   `json:"muted"`
	Default     bool   `json:"default"`
}

// Selection is the resolved playback sink plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("polyglot"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns Pulse output sinks with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSink, err := client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("read default sink: %w", err)
	}
	defaultID := defaultSink.ID()

	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	devices := make([]Device, 0, len(sinkInfos))
	for _, sink := range sinkInfos {
		if sink == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          sink.SinkName,
			Description: sink.Device,
			State:       sinkStateString(sink.State),
			Available:   sinkAvailable(sink),
			Muted:       sink.Mute,
			Default:     sink.SinkName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves speech.output/speech.fallback preferences against live sinks.
func SelectDevice(ctx context.Context, output string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, output, fallback)
}

// selectDeviceFromList applies selection policy to a pre-fetched sink list.
func selectDeviceFromList(devices []Device, output string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio output devices found")
	}

	var (
		defaultDevice *Device
		byOutput      *Device
		byFallback    *Device
	)

	output = strings.TrimSpace(strings.ToLower(output))
	fallback = strings.TrimSpace(strings.ToLower(fallback))

	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byOutput == nil && output != "" && output != "default" && deviceMatches(*dev, output) {
			byOutput = dev
		}
		if byFallback == nil && fallback != "" && fallback != "default" && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	chooseDefault := func() (*Device, error) {
		if defaultDevice == nil {
			return nil, errors.New("default audio sink is unavailable")
		}
		return defaultDevice, nil
	}

	selectPrimary := func() (*Device, error) {
		if output == "" || output == "default" {
			return chooseDefault()
		}
		if byOutput != nil {
			return byOutput, nil
		}
		return nil, fmt.Errorf("speech.output %q did not match any device", output)
	}

	primary, err := selectPrimary()
	if err != nil {
		return Selection{}, err
	}
	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}

	fallbackDevice := primary
	if fallback != "" && fallback != "default" {
		if byFallback == nil {
			return Selection{}, fmt.Errorf("primary output %q is %s and fallback %q not found", primary.ID, primaryReason, fallback)
		}
		fallbackDevice = byFallback
	} else {
		d, derr := chooseDefault()
		if derr != nil {
			return Selection{}, fmt.Errorf("primary output %q is %s and no usable fallback: %w", primary.ID, primaryReason, derr)
		}
		fallbackDevice = d
	}

	if !fallbackDevice.Available {
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", fallbackDevice.ID)
	}
	if fallbackDevice.Muted {
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", fallbackDevice.ID)
	}

	return Selection{
		Device:   *fallbackDevice,
		Warning:  fmt.Sprintf("speech.output %q is %s; falling back to %q", primary.ID, primaryReason, fallbackDevice.ID),
		Fallback: primary.ID != fallbackDevice.ID,
	}, nil
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// PulseOutput plays float32 mono samples on one Pulse sink.
type PulseOutput struct {
	client *pulse.Client
	sink   *pulse.Sink

	mu     sync.Mutex
	stream *pulse.PlaybackStream
	closed bool
}

// OpenPulseOutput connects to Pulse and resolves sinkID ("" for the server default).
func OpenPulseOutput(sinkID string) (*PulseOutput, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	var sink *pulse.Sink
	if sinkID == "" {
		sink, err = client.DefaultSink()
	} else {
		sink, err = client.SinkByID(sinkID)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve sink %q: %w", sinkID, err)
	}

	return &PulseOutput{client: client, sink: sink}, nil
}

// Play starts a playback stream for samples; done runs after the stream drains.
func (o *PulseOutput) Play(samples []float32, done func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("pulse output is closed")
	}

	stream, err := o.client.NewPlayback(
		samplesReader(samples),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(SampleRate),
		pulse.PlaybackSink(o.sink),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackMediaName("polyglot speech"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	o.stream = stream
	stream.Start()

	go func() {
		stream.Drain()
		stream.Close()

		o.mu.Lock()
		if o.stream == stream {
			o.stream = nil
		}
		o.mu.Unlock()

		if done != nil {
			done()
		}
	}()
	return nil
}

// Close stops any active stream and disconnects from Pulse.
func (o *PulseOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	stream := o.stream
	o.stream = nil
	o.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	o.client.Close()
	return nil
}

// samplesReader feeds samples to Pulse and signals end of data once exhausted.
func samplesReader(samples []float32) pulse.Reader {
	cursor := 0
	return pulse.Float32Reader(func(buf []float32) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})
}

// sinkStateString maps Pulse sink state constants to human-readable values.
func sinkStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sinkAvailable maps Pulse sink port availability to a simple boolean.
func sinkAvailable(sink *pulseproto.GetSinkInfoReply) bool {
	if sink == nil {
		return false
	}
	if len(sink.Ports) == 0 {
		return true
	}
	for _, port := range sink.Ports {
		if port.Name != sink.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
