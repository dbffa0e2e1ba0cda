// Package config resolves, parses, validates, and defaults polyglot configuration.
package config

// Config is the fully materialized runtime configuration used by polyglot.
type Config struct {
	Gemini    GeminiConfig
	Translate TranslateConfig
	Speech    SpeechConfig
	Image     ImageConfig
	Web       WebConfig
	Clipboard CommandConfig
	Debug     DebugConfig
}

// GeminiConfig selects provider credentials, models, and request limits.
type GeminiConfig struct {
	APIKey         string
	BaseURL        string
	TranslateModel string
	SpeechModel    string
	ImageModel     string
	Temperature    float64
	TimeoutMS      int
}

// TranslateConfig seeds the translation session.
type TranslateConfig struct {
	SourceLang     string
	TargetLang     string
	Live           bool
	DebounceMS     int
	DetectMinChars int
	Pair           []string
}

// SpeechConfig controls the playback backend and voice.
type SpeechConfig struct {
	Backend  string
	Output   string
	Fallback string
	Voice    string
}

// ImageConfig holds default selections for image generation.
type ImageConfig struct {
	Style       string
	Background  string
	AspectRatio string
}

// WebConfig controls the optional HTTP/WebSocket surface.
type WebConfig struct {
	Enable bool
	Addr   string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls log verbosity and optional debug artifact output.
type DebugConfig struct {
	LogLevel        string
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
