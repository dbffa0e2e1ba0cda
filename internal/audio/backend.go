package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Supported playback backends.
const (
	BackendPulse = "pulse"
	BackendOto   = "oto"
)

// NewOutputFactory returns a factory that opens the configured backend on first playback.
//
// The pulse backend resolves the output/fallback sink preferences at open time.
func NewOutputFactory(logger *slog.Logger, backend, output, fallback string) (OutputFactory, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendPulse:
		return func() (Output, error) {
			selection, err := SelectDevice(context.Background(), output, fallback)
			if err != nil {
				return nil, err
			}
			if selection.Warning != "" && logger != nil {
				logger.Warn(selection.Warning)
			}
			return OpenPulseOutput(selection.Device.ID)
		}, nil
	case BackendOto:
		return func() (Output, error) {
			return OpenOtoOutput()
		}, nil
	default:
		return nil, fmt.Errorf("unsupported speech backend %q", backend)
	}
}
