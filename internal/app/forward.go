package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/polyglot/internal/cli"
	"github.com/rbright/polyglot/internal/fsm"
	"github.com/rbright/polyglot/internal/image"
	"github.com/rbright/polyglot/internal/ipc"
	"github.com/rbright/polyglot/internal/workspace"
)

const (
	forwardTimeout = 220 * time.Millisecond
	// waitTimeout bounds commands that block on a provider round trip.
	waitTimeout = 3 * time.Minute
)

var errNoWorkspace = errors.New("no running polyglot workspace (start with: polyglot serve)")

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: workspace.CommandStatus}, forwardTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	snap, err := decodeState(resp)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	r.printStatus(snap)
	return 0
}

func (r Runner) printStatus(snap workspace.Snapshot) {
	t := snap.Translation
	source := t.SourceLang
	if t.DetectedLang != "" {
		source = fmt.Sprintf("%s (detected %s)", t.SourceLang, t.DetectedLang)
	}
	live := "off"
	if t.Live {
		live = "on"
	}
	imageState := "none"
	switch {
	case snap.Image.Generating:
		imageState = "generating"
	case snap.Image.Result != "":
		imageState = "ready"
	}

	fmt.Fprintf(r.Stdout, "status: %s\n", t.Status)
	fmt.Fprintf(r.Stdout, "live: %s\n", live)
	fmt.Fprintf(r.Stdout, "source: %s\n", source)
	fmt.Fprintf(r.Stdout, "target: %s\n", t.TargetLang)
	if t.SourceText != "" {
		fmt.Fprintf(r.Stdout, "text: %s\n", t.SourceText)
	}
	if t.TranslatedText != "" {
		fmt.Fprintf(r.Stdout, "translation: %s\n", t.TranslatedText)
	}
	fmt.Fprintf(r.Stdout, "playing: %s\n", yesNo(snap.Playing))
	fmt.Fprintf(r.Stdout, "image: %s\n", imageState)
}

// forwardCommand sends a workspace command to the socket owner.
func (r Runner) forwardCommand(ctx context.Context, parsed cli.Parsed) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	req := requestFor(parsed)
	timeout := forwardTimeout
	if req.Wait {
		timeout = waitTimeout
	}

	resp, handled, err := tryForward(ctx, socketPath, req, timeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: %v\n", errNoWorkspace)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	switch {
	case parsed.Command == cli.CommandTranslate && req.Wait:
		return r.printTranslation(resp)
	case parsed.Command == cli.CommandImage && parsed.Out != "":
		return r.writeImage(resp, parsed.Out)
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func requestFor(parsed cli.Parsed) ipc.Request {
	req := ipc.Request{
		Command:     string(parsed.Command),
		Text:        parsed.Text,
		Lang:        parsed.Lang,
		Enabled:     parsed.Enabled,
		Source:      parsed.Source,
		Image:       parsed.Image,
		Style:       parsed.Style,
		Background:  parsed.Background,
		AspectRatio: parsed.AspectRatio,
	}
	switch parsed.Command {
	case cli.CommandTranslate, cli.CommandSpeak, cli.CommandImage:
		req.Wait = parsed.Wait
	}
	return req
}

func (r Runner) printTranslation(resp ipc.Response) int {
	snap, err := decodeState(resp)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if snap.Translation.Status == fsm.StateError {
		fmt.Fprintln(r.Stderr, "error: translation failed")
		return 1
	}
	if text := strings.TrimSpace(snap.Translation.TranslatedText); text != "" {
		fmt.Fprintln(r.Stdout, text)
	}
	return 0
}

// writeImage saves the generated image carried in the response state. "-"
// selects the default download filename.
func (r Runner) writeImage(resp ipc.Response, path string) int {
	snap, err := decodeState(resp)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if snap.Image.Result == "" {
		fmt.Fprintln(r.Stderr, "error: no image generated")
		return 1
	}
	_, data, err := image.DecodeDataURI(snap.Image.Result)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if path == "-" {
		path = image.DownloadFilename
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(r.Stderr, "error: write image: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, path)
	return 0
}

func decodeState(resp ipc.Response) (workspace.Snapshot, error) {
	var snap workspace.Snapshot
	if len(resp.State) == 0 {
		return snap, errors.New("workspace returned no state")
	}
	if err := json.Unmarshal(resp.State, &snap); err != nil {
		return snap, fmt.Errorf("decode workspace state: %w", err)
	}
	return snap, nil
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
