package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/polyglot/internal/audio"
	"github.com/rbright/polyglot/internal/config"
	"github.com/rbright/polyglot/internal/gemini"
	"github.com/rbright/polyglot/internal/image"
	"github.com/rbright/polyglot/internal/ipc"
	"github.com/rbright/polyglot/internal/output"
	"github.com/rbright/polyglot/internal/session"
	"github.com/rbright/polyglot/internal/web"
	"github.com/rbright/polyglot/internal/workspace"
)

// commandServe owns the runtime socket and serves the workspace until ctx ends.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	client, err := gemini.New(ctx, geminiConfig(cfg), logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	acquire := ipc.DefaultAcquireOptions
	acquire.OnStale = func(path string) {
		logger.Warn("removed stale workspace socket", "socket", path)
	}
	listener, err := ipc.Acquire(ctx, socketPath, acquire)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	ws, player, err := buildWorkspace(cfg, client, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		ws.Close()
		_ = player.Close()
	}()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	servers := 1
	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, ws, logger)
	}()
	if cfg.Web.Enable {
		servers++
		go func() {
			serverErrCh <- web.NewServer(logger, ws).ListenAndServe(serverCtx, cfg.Web.Addr)
		}()
		fmt.Fprintf(r.Stdout, "web ui on http://%s\n", cfg.Web.Addr)
	}
	fmt.Fprintf(r.Stdout, "polyglot workspace listening on %s\n", socketPath)
	logger.Info("workspace serving", "socket", socketPath, "web", cfg.Web.Enable)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serverErrCh:
		servers--
	}
	serverCancel()
	for ; servers > 0; servers-- {
		if err := <-serverErrCh; err != nil && serveErr == nil {
			serveErr = err
		}
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logger.Error("workspace server failed", "error", serveErr.Error())
		fmt.Fprintf(r.Stderr, "error: server failed: %v\n", serveErr)
		return 1
	}
	logger.Info("workspace stopped")
	return 0
}

// buildWorkspace wires the provider into every controller. The caller closes
// the returned workspace and player.
func buildWorkspace(cfg config.Config, client *gemini.Client, logger *slog.Logger) (*workspace.Workspace, *audio.Player, error) {
	factory, err := audio.NewOutputFactory(logger, cfg.Speech.Backend, cfg.Speech.Output, cfg.Speech.Fallback)
	if err != nil {
		return nil, nil, err
	}

	opts := session.DefaultOptions()
	opts.QuietPeriod = time.Duration(cfg.Translate.DebounceMS) * time.Millisecond
	opts.DetectMinRunes = cfg.Translate.DetectMinChars
	opts.Pair = pairFromConfig(cfg)
	opts.Fallback = opts.Pair.Primary
	opts.SourceLang = cfg.Translate.SourceLang
	opts.TargetLang = cfg.Translate.TargetLang
	opts.Live = cfg.Translate.Live

	sess := session.NewController(logger, client, client, opts)
	images := image.NewController(logger, client)
	player := audio.NewPlayer(logger, client, factory, audio.PlayerOptions{DumpWAV: cfg.Debug.EnableAudioDump})
	clipboard := output.NewClipboard(cfg.Clipboard, logger)

	ws := workspace.New(logger, sess, images, player, clipboard, workspace.ImageDefaults{
		Style:       cfg.Image.Style,
		Background:  cfg.Image.Background,
		AspectRatio: cfg.Image.AspectRatio,
	})
	return ws, player, nil
}
