// Package app dispatches parsed polyglot commands to the workspace, the socket
// owner, or the one-shot local helpers.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/polyglot/internal/audio"
	"github.com/rbright/polyglot/internal/cli"
	"github.com/rbright/polyglot/internal/config"
	"github.com/rbright/polyglot/internal/doctor"
	"github.com/rbright/polyglot/internal/gemini"
	"github.com/rbright/polyglot/internal/image"
	"github.com/rbright/polyglot/internal/languages"
	"github.com/rbright/polyglot/internal/logging"
	"github.com/rbright/polyglot/internal/version"
)

// Runner executes one CLI invocation against the given output streams.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute runs args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute returns 0 on success, 1 on runtime failure and 2 on usage errors.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("polyglot"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, parsed.Output)
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, cfgErr := config.Load(parsed.ConfigPath)
	logLevel := "info"
	if cfgErr == nil {
		logLevel = cfgLoaded.Config.Debug.LogLevel
	}

	logRuntime, err := logging.New(logLevel)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	if cfgErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", cfgErr)
		logger.Error("load config failed", "error", cfgErr.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandServe:
		return r.commandServe(ctx, cfg, logger)
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, cfgLoaded, logger)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandLanguages:
		return r.commandLanguages()
	case cli.CommandStyles:
		return r.commandStyles()
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandTranslate:
		if parsed.Once {
			return r.commandTranslateOnce(ctx, cfg, parsed, logger)
		}
		return r.forwardCommand(ctx, parsed)
	case cli.CommandInput, cli.CommandSwap, cli.CommandClear, cli.CommandSource, cli.CommandTarget,
		cli.CommandLive, cli.CommandSpeak, cli.CommandCopy, cli.CommandImage, cli.CommandImageClear:
		return r.forwardCommand(ctx, parsed)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDoctor(ctx context.Context, cfgLoaded config.Loaded, logger *slog.Logger) int {
	var pinger doctor.Pinger
	if strings.TrimSpace(cfgLoaded.Config.Gemini.APIKey) != "" {
		client, err := gemini.New(ctx, geminiConfig(cfgLoaded.Config), logger)
		if err != nil {
			logger.Warn("gemini client unavailable for doctor", "error", err.Error())
		} else {
			pinger = client
		}
	}

	report := doctor.Run(ctx, cfgLoaded, pinger)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio output devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}

	return 0
}

func (r Runner) commandLanguages() int {
	for _, lang := range languages.All() {
		fmt.Fprintf(r.Stdout, "%-6s %s\n", lang.Code, lang.Name)
	}
	return 0
}

func (r Runner) commandStyles() int {
	fmt.Fprintln(r.Stdout, "styles:")
	for _, style := range image.Styles() {
		fmt.Fprintf(r.Stdout, "  %-12s %s\n", style.ID, style.Label)
	}
	fmt.Fprintln(r.Stdout, "backgrounds:")
	for _, background := range image.Backgrounds() {
		fmt.Fprintf(r.Stdout, "  %-12s %s\n", background.ID, background.Label)
	}
	fmt.Fprintf(r.Stdout, "aspect ratios: %s\n", strings.Join(image.AspectRatios(), ", "))
	return 0
}

// commandTranslateOnce calls the provider directly; no workspace is needed.
func (r Runner) commandTranslateOnce(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	target := cfg.Translate.TargetLang
	if parsed.Lang != "" {
		lang, err := languages.Lookup(parsed.Lang)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 2
		}
		target = lang.Name
	}
	if languages.IsAuto(target) {
		fmt.Fprintln(r.Stderr, "error: target language cannot be auto-detect")
		return 2
	}

	client, err := gemini.New(ctx, geminiConfig(cfg), logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	pair := pairFromConfig(cfg)
	source := cfg.Translate.SourceLang
	if languages.IsAuto(source) {
		source = pair.Primary
		detected, err := client.DetectLanguage(ctx, parsed.Text)
		if err != nil {
			logger.Debug("detect language failed; using pair primary", "error", err.Error())
		} else if lang, lookupErr := languages.Lookup(detected); lookupErr == nil && !languages.IsAuto(lang.Name) {
			source = lang.Name
		}
		// A pair language never translates into itself.
		if source == target {
			if counterpart, ok := pair.Counterpart(source); ok {
				target = counterpart
			}
		}
	}

	translated, err := client.Translate(ctx, parsed.Text, source, target)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, translated)
	return 0
}

func geminiConfig(cfg config.Config) gemini.Config {
	temperature := float32(cfg.Gemini.Temperature)
	return gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		BaseURL:        cfg.Gemini.BaseURL,
		TranslateModel: cfg.Gemini.TranslateModel,
		SpeechModel:    cfg.Gemini.SpeechModel,
		ImageModel:     cfg.Gemini.ImageModel,
		Voice:          cfg.Speech.Voice,
		Temperature:    &temperature,
		Timeout:        time.Duration(cfg.Gemini.TimeoutMS) * time.Millisecond,
		Pair:           pairFromConfig(cfg),
	}
}

func pairFromConfig(cfg config.Config) languages.Pair {
	if len(cfg.Translate.Pair) != 2 {
		return languages.DefaultPair
	}
	return languages.Pair{Primary: cfg.Translate.Pair[0], Secondary: cfg.Translate.Pair[1]}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
