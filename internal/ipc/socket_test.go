package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serveStatus(t *testing.T, socketPath string) func() {
	t.Helper()
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, listener, HandlerFunc(func(context.Context, Request) Response {
			return Response{OK: true}
		}), nil)
	}()
	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestAcquireRecoversStaleSocket(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "polyglot.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	var stale []string
	listener, err := Acquire(context.Background(), socketPath, AcquireOptions{
		ProbeTimeout: 50 * time.Millisecond,
		Retries:      2,
		OnStale:      func(path string) { stale = append(stale, path) },
	})
	require.NoError(t, err)
	defer listener.Close()

	require.Equal(t, []string{socketPath}, stale)

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestAcquireCreatesRuntimeDir(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "nested", "run", "polyglot.sock")
	listener, err := Acquire(context.Background(), socketPath, DefaultAcquireOptions)
	require.NoError(t, err)
	defer listener.Close()

	_, err = os.Stat(filepath.Dir(socketPath))
	require.NoError(t, err)
}

func TestAcquireReturnsAlreadyRunningWhenWorkspaceAnswers(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "polyglot.sock")
	shutdown := serveStatus(t, socketPath)
	defer shutdown()

	staleCalled := false
	_, err := Acquire(context.Background(), socketPath, AcquireOptions{
		ProbeTimeout: 80 * time.Millisecond,
		Retries:      1,
		OnStale:      func(string) { staleCalled = true },
	})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.False(t, staleCalled)
}

func TestAcquireKeepsSocketWhenOwnerNeverAnswers(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(t.TempDir(), "polyglot.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				time.Sleep(250 * time.Millisecond)
			}(conn)
		}
	}()

	_, err = Acquire(context.Background(), socketPath, AcquireOptions{ProbeTimeout: 30 * time.Millisecond})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAlreadyRunning)
	require.Contains(t, err.Error(), "probe existing socket")

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
	require.NoError(t, listener.Close())
	<-acceptDone
}

func TestRuntimeSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err := RuntimeSocketPath()
	require.Error(t, err)

	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	path, err := RuntimeSocketPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "polyglot.sock"), path)
}
