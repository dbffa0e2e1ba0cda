package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// ErrAlreadyRunning reports a responsive workspace owner on the socket.
var ErrAlreadyRunning = errors.New("polyglot workspace already running")

// RuntimeSocketPath returns the workspace socket under XDG_RUNTIME_DIR.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "polyglot.sock"), nil
}

// AcquireOptions tunes single-owner socket acquisition.
type AcquireOptions struct {
	// ProbeTimeout bounds the status probe sent to an existing socket.
	ProbeTimeout time.Duration
	// Retries is the number of extra listen attempts after a stale socket is removed.
	Retries int
	// OnStale is called with the path after an unresponsive socket was removed.
	OnStale func(path string)
}

// DefaultAcquireOptions suits an interactive `polyglot serve`.
var DefaultAcquireOptions = AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8}

// Acquire listens on path as the single workspace owner.
//
// A socket left behind by a dead workspace is removed and listening is
// retried. A responsive owner yields ErrAlreadyRunning. A socket that accepts
// but never answers is left in place.
func Acquire(ctx context.Context, path string, opts AcquireOptions) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; attempt <= opts.Retries; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, opts.ProbeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, removeErr)
		}
		if opts.OnStale != nil {
			opts.OnStale(path)
		}

		if attempt < opts.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("acquire workspace socket %s: still in use after %d retries", path, opts.Retries)
}
