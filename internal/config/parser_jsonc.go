package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rbright/polyglot/internal/languages"
)

type jsoncConfig struct {
	Gemini    *jsoncGemini    `json:"gemini"`
	Translate *jsoncTranslate `json:"translate"`
	Speech    *jsoncSpeech    `json:"speech"`
	Image     *jsoncImage     `json:"image"`
	Web       *jsoncWeb       `json:"web"`

	ClipboardCmd *string     `json:"clipboard_cmd"`
	Debug        *jsoncDebug `json:"debug"`
}

type jsoncGemini struct {
	APIKey         *string  `json:"api_key"`
	BaseURL        *string  `json:"base_url"`
	TranslateModel *string  `json:"translate_model"`
	SpeechModel    *string  `json:"speech_model"`
	ImageModel     *string  `json:"image_model"`
	Temperature    *float64 `json:"temperature"`
	TimeoutMS      *int     `json:"timeout_ms"`
}

type jsoncTranslate struct {
	Source         *string          `json:"source"`
	Target         *string          `json:"target"`
	Live           *bool            `json:"live"`
	DebounceMS     *int             `json:"debounce_ms"`
	DetectMinChars *int             `json:"detect_min_chars"`
	Pair           *jsoncStringList `json:"pair"`
}

type jsoncSpeech struct {
	Backend  *string `json:"backend"`
	Output   *string `json:"output"`
	Fallback *string `json:"fallback"`
	Voice    *string `json:"voice"`
}

type jsoncImage struct {
	Style       *string `json:"style"`
	Background  *string `json:"background"`
	AspectRatio *string `json:"aspect_ratio"`
}

type jsoncWeb struct {
	Enable *bool   `json:"enable"`
	Addr   *string `json:"addr"`
}

type jsoncDebug struct {
	LogLevel  *string `json:"log_level"`
	AudioDump *bool   `json:"audio_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Gemini != nil {
		if payload.Gemini.APIKey != nil {
			cfg.Gemini.APIKey = strings.TrimSpace(*payload.Gemini.APIKey)
			if cfg.Gemini.APIKey != "" {
				warnings = append(warnings, Warning{Message: "gemini.api_key is stored in the config file; prefer GEMINI_API_KEY"})
			}
		}
		if payload.Gemini.BaseURL != nil {
			cfg.Gemini.BaseURL = strings.TrimSpace(*payload.Gemini.BaseURL)
		}
		if payload.Gemini.TranslateModel != nil {
			cfg.Gemini.TranslateModel = strings.TrimSpace(*payload.Gemini.TranslateModel)
		}
		if payload.Gemini.SpeechModel != nil {
			cfg.Gemini.SpeechModel = strings.TrimSpace(*payload.Gemini.SpeechModel)
		}
		if payload.Gemini.ImageModel != nil {
			cfg.Gemini.ImageModel = strings.TrimSpace(*payload.Gemini.ImageModel)
		}
		if payload.Gemini.Temperature != nil {
			cfg.Gemini.Temperature = *payload.Gemini.Temperature
		}
		if payload.Gemini.TimeoutMS != nil {
			cfg.Gemini.TimeoutMS = *payload.Gemini.TimeoutMS
		}
	}

	if payload.Translate != nil {
		if payload.Translate.Source != nil {
			name, err := canonicalLanguage("translate.source", *payload.Translate.Source)
			if err != nil {
				return nil, err
			}
			cfg.Translate.SourceLang = name
		}
		if payload.Translate.Target != nil {
			name, err := canonicalLanguage("translate.target", *payload.Translate.Target)
			if err != nil {
				return nil, err
			}
			cfg.Translate.TargetLang = name
		}
		if payload.Translate.Live != nil {
			cfg.Translate.Live = *payload.Translate.Live
		}
		if payload.Translate.DebounceMS != nil {
			cfg.Translate.DebounceMS = *payload.Translate.DebounceMS
		}
		if payload.Translate.DetectMinChars != nil {
			cfg.Translate.DetectMinChars = *payload.Translate.DetectMinChars
		}
		if payload.Translate.Pair != nil {
			pair := make([]string, 0, len(*payload.Translate.Pair))
			for _, entry := range *payload.Translate.Pair {
				name, err := canonicalLanguage("translate.pair", entry)
				if err != nil {
					return nil, err
				}
				pair = append(pair, name)
			}
			cfg.Translate.Pair = pair
		}
	}

	if payload.Speech != nil {
		if payload.Speech.Backend != nil {
			cfg.Speech.Backend = strings.ToLower(strings.TrimSpace(*payload.Speech.Backend))
		}
		if payload.Speech.Output != nil {
			cfg.Speech.Output = *payload.Speech.Output
		}
		if payload.Speech.Fallback != nil {
			cfg.Speech.Fallback = *payload.Speech.Fallback
		}
		if payload.Speech.Voice != nil {
			cfg.Speech.Voice = strings.TrimSpace(*payload.Speech.Voice)
		}
	}

	if payload.Image != nil {
		if payload.Image.Style != nil {
			cfg.Image.Style = strings.TrimSpace(*payload.Image.Style)
		}
		if payload.Image.Background != nil {
			cfg.Image.Background = strings.TrimSpace(*payload.Image.Background)
		}
		if payload.Image.AspectRatio != nil {
			cfg.Image.AspectRatio = strings.TrimSpace(*payload.Image.AspectRatio)
		}
	}

	if payload.Web != nil {
		if payload.Web.Enable != nil {
			cfg.Web.Enable = *payload.Web.Enable
		}
		if payload.Web.Addr != nil {
			cfg.Web.Addr = strings.TrimSpace(*payload.Web.Addr)
		}
	}

	if payload.ClipboardCmd != nil {
		raw := *payload.ClipboardCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.Debug != nil {
		if payload.Debug.LogLevel != nil {
			cfg.Debug.LogLevel = strings.ToLower(strings.TrimSpace(*payload.Debug.LogLevel))
		}
		if payload.Debug.AudioDump != nil {
			cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
		}
	}

	return warnings, nil
}

// canonicalLanguage maps a catalog code or name onto its display name.
func canonicalLanguage(field, value string) (string, error) {
	lang, err := languages.Lookup(value)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", field, err)
	}
	return lang.Name, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
