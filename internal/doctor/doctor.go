// Package doctor runs runtime readiness diagnostics for config, tools, audio, and Gemini.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/polyglot/internal/audio"
	"github.com/rbright/polyglot/internal/config"
)

const pingTimeout = 5 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// Pinger confirms the translation provider is reachable with the configured key.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
//
// pinger may be nil when no API key is available; the reachability probe is then skipped.
func Run(ctx context.Context, cfg config.Loaded, pinger Pinger) Report {
	checks := []Check{}

	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: message})

	checks = append(checks, checkAPIKey(cfg.Config))
	checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))
	checks = append(checks, checkSpeechOutput(cfg.Config))

	if pinger != nil {
		checks = append(checks, checkGemini(ctx, pinger, cfg.Config.Gemini.TranslateModel))
	}

	return Report{Checks: checks}
}

// checkAPIKey reports whether a key was resolved from the file or environment.
func checkAPIKey(cfg config.Config) Check {
	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		return Check{
			Name:    "gemini.api_key",
			Pass:    false,
			Message: "no API key; set " + strings.Join(config.APIKeyEnvVars, " or "),
		}
	}
	return Check{Name: "gemini.api_key", Pass: true, Message: "API key configured"}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkSpeechOutput runs live sink selection for the pulse backend.
func checkSpeechOutput(cfg config.Config) Check {
	if strings.EqualFold(cfg.Speech.Backend, audio.BackendOto) {
		return Check{Name: "speech.output", Pass: true, Message: "oto backend uses the system default output"}
	}

	selection, err := audio.SelectDevice(context.Background(), cfg.Speech.Output, cfg.Speech.Fallback)
	if err != nil {
		return Check{Name: "speech.output", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "speech.output", Pass: true, Message: message}
}

// checkGemini probes the provider with a bounded model metadata request.
func checkGemini(ctx context.Context, pinger Pinger, model string) Check {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pinger.Ping(ctx); err != nil {
		return Check{Name: "gemini.reachable", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	return Check{Name: "gemini.reachable", Pass: true, Message: fmt.Sprintf("model %s available", model)}
}
