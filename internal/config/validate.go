package config

import (
	"fmt"
	"strings"

	"github.com/rbright/polyglot/internal/image"
	"github.com/rbright/polyglot/internal/languages"
)

var logLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Gemini.TranslateModel) == "" {
		return nil, fmt.Errorf("gemini.translate_model must not be empty")
	}
	if strings.TrimSpace(cfg.Gemini.SpeechModel) == "" {
		return nil, fmt.Errorf("gemini.speech_model must not be empty")
	}
	if strings.TrimSpace(cfg.Gemini.ImageModel) == "" {
		return nil, fmt.Errorf("gemini.image_model must not be empty")
	}
	if cfg.Gemini.Temperature < 0 || cfg.Gemini.Temperature > 2 {
		return nil, fmt.Errorf("gemini.temperature must be within [0, 2]")
	}
	if cfg.Gemini.TimeoutMS < 0 {
		return nil, fmt.Errorf("gemini.timeout_ms must be >= 0")
	}

	if _, err := languages.Lookup(cfg.Translate.SourceLang); err != nil {
		return nil, fmt.Errorf("translate.source: %w", err)
	}
	if _, err := languages.Lookup(cfg.Translate.TargetLang); err != nil {
		return nil, fmt.Errorf("translate.target: %w", err)
	}
	if languages.IsAuto(cfg.Translate.TargetLang) {
		return nil, fmt.Errorf("translate.target must not be %s", languages.AutoDetect)
	}
	if cfg.Translate.DebounceMS <= 0 {
		return nil, fmt.Errorf("translate.debounce_ms must be > 0")
	}
	if cfg.Translate.DetectMinChars <= 0 {
		return nil, fmt.Errorf("translate.detect_min_chars must be > 0")
	}
	if len(cfg.Translate.Pair) != 2 {
		return nil, fmt.Errorf("translate.pair must name exactly two languages")
	}
	for _, name := range cfg.Translate.Pair {
		if languages.IsAuto(name) {
			return nil, fmt.Errorf("translate.pair must not include %s", languages.AutoDetect)
		}
		if _, err := languages.Lookup(name); err != nil {
			return nil, fmt.Errorf("translate.pair: %w", err)
		}
	}
	if cfg.Translate.Pair[0] == cfg.Translate.Pair[1] {
		return nil, fmt.Errorf("translate.pair languages must differ")
	}
	if !languages.IsAuto(cfg.Translate.SourceLang) && cfg.Translate.SourceLang == cfg.Translate.TargetLang {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("translate.source and translate.target are both %s", cfg.Translate.TargetLang)})
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Speech.Backend))
	if backend != "pulse" && backend != "oto" {
		return nil, fmt.Errorf("speech.backend must be one of: pulse, oto")
	}
	if strings.TrimSpace(cfg.Speech.Voice) == "" {
		return nil, fmt.Errorf("speech.voice must not be empty")
	}

	if _, err := image.LookupStyle(cfg.Image.Style); err != nil {
		return nil, fmt.Errorf("image.style: %w", err)
	}
	if _, err := image.LookupBackground(cfg.Image.Background); err != nil {
		return nil, fmt.Errorf("image.background: %w", err)
	}
	if _, err := image.ValidateAspectRatio(cfg.Image.AspectRatio); err != nil {
		return nil, fmt.Errorf("image.aspect_ratio: %w", err)
	}

	if cfg.Web.Enable && strings.TrimSpace(cfg.Web.Addr) == "" {
		return nil, fmt.Errorf("web.addr must not be empty when web.enable=true")
	}

	if len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}

	if _, ok := logLevels[cfg.Debug.LogLevel]; !ok {
		return nil, fmt.Errorf("debug.log_level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
