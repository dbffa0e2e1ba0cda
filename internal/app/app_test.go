package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rbright/polyglot/internal/fsm"
	"github.com/rbright/polyglot/internal/image"
	"github.com/rbright/polyglot/internal/ipc"
	"github.com/rbright/polyglot/internal/session"
	"github.com/rbright/polyglot/internal/workspace"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "polyglot")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteConfigErrorExitsNonZero(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"translate": {"target": "Klingon"}}`), 0o600))

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "languages"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "translate.target")
}

func TestRunnerStatusStoppedWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "stopped\n", stdout.String())
}

func TestRunnerForwardWithoutWorkspaceFails(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "swap"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no running polyglot workspace")
}

func TestRunnerForwardsCommandsToWorkspace(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 16)

	snap := workspace.Snapshot{Translation: session.Snapshot{
		SourceText:     "hello",
		TranslatedText: "नमस्ते",
		SourceLang:     "English",
		TargetLang:     "Hindi",
		Status:         fsm.StateSuccess,
		Live:           true,
	}}
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "polyglot.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		return ipc.Response{OK: true, State: mustJSON(t, snap), Message: req.Command + " handled"}
	})
	defer shutdown()

	cases := []struct {
		args       []string
		wantStdout string
		check      func(ipc.Request)
	}{
		{
			args:       []string{"translate", "hello"},
			wantStdout: "नमस्ते\n",
			check: func(req ipc.Request) {
				require.Equal(t, "hello", req.Text)
				require.True(t, req.Wait)
			},
		},
		{
			args:       []string{"translate", "--no-wait"},
			wantStdout: "translate handled\n",
			check:      func(req ipc.Request) { require.False(t, req.Wait) },
		},
		{
			args:       []string{"live", "off"},
			wantStdout: "live handled\n",
			check: func(req ipc.Request) {
				require.NotNil(t, req.Enabled)
				require.False(t, *req.Enabled)
			},
		},
		{
			args:       []string{"target", "fr"},
			wantStdout: "target handled\n",
			check:      func(req ipc.Request) { require.Equal(t, "fr", req.Lang) },
		},
		{
			args:       []string{"copy", "--source"},
			wantStdout: "copy handled\n",
			check:      func(req ipc.Request) { require.True(t, req.Source) },
		},
		{
			args:       []string{"image", "a", "fox", "--style", "anime"},
			wantStdout: "image handled\n",
			check: func(req ipc.Request) {
				require.Equal(t, "a fox", req.Text)
				require.Equal(t, "anime", req.Style)
				require.True(t, req.Wait)
			},
		},
		{
			args:       []string{"input", "hola"},
			wantStdout: "input handled\n",
			check:      func(req ipc.Request) { require.False(t, req.Wait) },
		},
	}

	for _, tc := range cases {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner := Runner{Stdout: stdout, Stderr: stderr}

		args := append([]string{"--config", paths.configPath}, tc.args...)
		exitCode := runner.Execute(context.Background(), args)
		require.Equal(t, 0, exitCode, tc.args)
		require.Equal(t, tc.wantStdout, stdout.String(), tc.args)

		req := <-requests
		require.Equal(t, tc.args[0], req.Command)
		tc.check(req)
	}
}

func TestRunnerStatusPrintsWorkspaceState(t *testing.T) {
	paths := setupRunnerEnv(t)

	snap := workspace.Snapshot{
		Translation: session.Snapshot{
			SourceText:   "namaste",
			SourceLang:   "Auto-detect",
			DetectedLang: "Hindi",
			TargetLang:   "English",
			Status:       fsm.StateIdle,
		},
		Image: image.State{Generating: true},
	}
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "polyglot.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		require.Equal(t, workspace.CommandStatus, req.Command)
		return ipc.Response{OK: true, State: mustJSON(t, snap)}
	})
	defer shutdown()

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	out := stdout.String()
	require.Contains(t, out, "status: idle\n")
	require.Contains(t, out, "live: off\n")
	require.Contains(t, out, "source: Auto-detect (detected Hindi)\n")
	require.Contains(t, out, "text: namaste\n")
	require.Contains(t, out, "image: generating\n")
}

func TestRunnerTranslateReportsFailedTranslation(t *testing.T) {
	paths := setupRunnerEnv(t)

	snap := workspace.Snapshot{Translation: session.Snapshot{Status: fsm.StateError}}
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "polyglot.sock"), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: mustJSON(t, snap)}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "translation failed")
}

func TestRunnerImageOutWritesDecodedFile(t *testing.T) {
	paths := setupRunnerEnv(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

	snap := workspace.Snapshot{Image: image.State{Result: image.EncodeDataURI("image/png", png), Prompt: "fox"}}
	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "polyglot.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		require.True(t, req.Wait)
		return ipc.Response{OK: true, State: mustJSON(t, snap)}
	})
	defer shutdown()

	outPath := filepath.Join(t.TempDir(), "fox.png")
	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "image", "fox", "--out", outPath})
	require.Equal(t, 0, exitCode)
	require.Equal(t, outPath+"\n", stdout.String())

	written, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, png, written)
}

func TestRunnerSurfacesWorkspaceErrors(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "polyglot.sock"), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: "nothing to speak"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "speak"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error: nothing to speak")
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "polyglot.sock")

	shutdown := startIPCServerForRunnerTest(t, socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		switch req.Command {
		case "status":
			return ipc.Response{OK: true, Message: "ready"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"}, forwardTimeout)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "ready", resp.Message)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.Request{Command: "bogus"}, forwardTimeout)
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported")
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "polyglot.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"}, forwardTimeout)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "polyglot.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: "status"}, forwardTimeout)
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	require.NoError(t, listener.Close())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "config:")
	require.Contains(t, stdout.String(), "gemini.api_key")
	require.NotContains(t, stdout.String(), "gemini.reachable")
}

func TestRunnerDoctorPingsGeminiWhenKeyConfigured(t *testing.T) {
	paths := setupRunnerEnv(t)
	api := newFakeGemini(t, func(w http.ResponseWriter, _ *http.Request, _ string) {
		_, _ = io.WriteString(w, `{"name":"models/gemini-3-flash-preview"}`)
	})
	t.Setenv("GEMINI_API_KEY", "test-key")
	writeConfig(t, paths.configPath, fmt.Sprintf(`{"gemini": {"base_url": %q}}`, api.URL))

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}

	runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Contains(t, stdout.String(), "gemini.reachable")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerCatalogCommands(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "languages"}))
	require.Contains(t, stdout.String(), "auto   Auto-detect\n")
	require.Contains(t, stdout.String(), "Hindi")

	stdout.Reset()
	require.Equal(t, 0, runner.Execute(context.Background(), []string{"--config", paths.configPath, "styles"}))
	require.Contains(t, stdout.String(), "styles:")
	require.Contains(t, stdout.String(), "backgrounds:")
	require.Contains(t, stdout.String(), "aspect ratios: 1:1")
}

func TestRunnerTranslateOnceRequiresAPIKey(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate", "--once", "hello"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "api key")
}

func TestRunnerTranslateOnceDetectsAndTranslates(t *testing.T) {
	paths := setupRunnerEnv(t)
	prompts := make(chan string, 4)
	api := newFakeGemini(t, func(w http.ResponseWriter, _ *http.Request, body string) {
		prompts <- body
		if strings.Contains(body, "Identify") {
			_, _ = io.WriteString(w, geminiText("English"))
			return
		}
		_, _ = io.WriteString(w, geminiText("सुप्रभात"))
	})
	t.Setenv("GEMINI_API_KEY", "test-key")
	writeConfig(t, paths.configPath, fmt.Sprintf(`{"gemini": {"base_url": %q}}`, api.URL))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate", "--once", "good", "morning"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Equal(t, "सुप्रभात\n", stdout.String())

	require.Contains(t, <-prompts, "Identify")
	translatePrompt := <-prompts
	require.Contains(t, translatePrompt, "from English to Hindi")
}

func TestRunnerTranslateOnceCouplesPairTarget(t *testing.T) {
	paths := setupRunnerEnv(t)
	prompts := make(chan string, 4)
	api := newFakeGemini(t, func(w http.ResponseWriter, _ *http.Request, body string) {
		prompts <- body
		if strings.Contains(body, "Identify") {
			_, _ = io.WriteString(w, geminiText("Hindi"))
			return
		}
		_, _ = io.WriteString(w, geminiText("good morning"))
	})
	t.Setenv("GEMINI_API_KEY", "test-key")
	writeConfig(t, paths.configPath, fmt.Sprintf(`{"gemini": {"base_url": %q}}`, api.URL))

	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "translate", "--once", "सुप्रभात"})
	require.Equal(t, 0, exitCode)

	<-prompts
	require.Contains(t, <-prompts, "from Hindi to English")
}

func TestRunnerServeOwnsSocketUntilCancelled(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	writeConfig(t, paths.configPath, `{
		// no provider traffic: concrete source and live off
		"translate": {"source": "es", "target": "en", "live": false},
		"gemini": {"base_url": "http://127.0.0.1:1"},
	}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveDone := make(chan int, 1)
	var serveOut bytes.Buffer
	go func() {
		runner := Runner{Stdout: &serveOut, Stderr: io.Discard}
		serveDone <- runner.Execute(ctx, []string{"--config", paths.configPath, "serve"})
	}()

	socketPath := filepath.Join(paths.runtimeDir, "polyglot.sock")
	require.Eventually(t, func() bool {
		ok, _ := ipc.Probe(context.Background(), socketPath, 100*time.Millisecond)
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	var stderr bytes.Buffer
	second := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}
	require.Equal(t, 1, second.Execute(context.Background(), []string{"--config", paths.configPath, "serve"}))
	require.Contains(t, stderr.String(), "already running")

	client := Runner{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	require.Equal(t, 0, client.Execute(context.Background(), []string{"--config", paths.configPath, "input", "hola"}))

	var stdout bytes.Buffer
	client.Stdout = &stdout
	require.Equal(t, 0, client.Execute(context.Background(), []string{"--config", paths.configPath, "status"}))
	require.Contains(t, stdout.String(), "text: hola\n")
	require.Contains(t, stdout.String(), "source: Spanish\n")
	require.Contains(t, stdout.String(), "live: off\n")

	cancel()
	select {
	case code := <-serveDone:
		require.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}

	_, statErr := os.Stat(socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestSocketErrorHelpers(t *testing.T) {
	require.False(t, isSocketMissing(nil))
	require.False(t, isConnectionRefused(nil))

	require.True(t, isSocketMissing(os.ErrNotExist))
	require.True(t, isSocketMissing(errors.New("dial unix /tmp/polyglot.sock: no such file or directory")))
	require.False(t, isSocketMissing(errors.New("other error")))

	require.True(t, isConnectionRefused(syscall.ECONNREFUSED))
	require.False(t, isConnectionRefused(errors.New("other error")))
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	xdgStateHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte("\n"), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func mustJSON(t *testing.T, value any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	return data
}

func newFakeGemini(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body string)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		handle(w, r, string(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func geminiText(text string) string {
	payload := map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": text}},
			},
		}},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler), nil)
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
