// Package gemini implements the language, speech, and image provider on Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rbright/polyglot/internal/image"
	"github.com/rbright/polyglot/internal/languages"
	"google.golang.org/genai"
)

const (
	DefaultTranslateModel = "gemini-3-flash-preview"
	DefaultSpeechModel    = "gemini-2.5-flash-preview-tts"
	DefaultImageModel     = "gemini-2.5-flash-image"
	DefaultVoice          = "Kore"
	DefaultTemperature    = 0.1

	detectMinRunes = 3
)

var (
	// ErrMissingAPIKey indicates no API key was configured or found in the environment.
	ErrMissingAPIKey = errors.New("gemini api key is not configured")
	// ErrNoAudio indicates a speech response carried no inline audio.
	ErrNoAudio = errors.New("gemini response contained no audio")
)

// Config selects models, credentials, and request limits.
type Config struct {
	APIKey         string
	BaseURL        string
	TranslateModel string
	SpeechModel    string
	ImageModel     string
	Voice          string
	// Temperature applies to translation requests; nil selects DefaultTemperature.
	Temperature    *float32
	Timeout        time.Duration
	Pair           languages.Pair
	HTTPClient     *http.Client
}

func (c Config) withDefaults() Config {
	if c.TranslateModel == "" {
		c.TranslateModel = DefaultTranslateModel
	}
	if c.SpeechModel == "" {
		c.SpeechModel = DefaultSpeechModel
	}
	if c.ImageModel == "" {
		c.ImageModel = DefaultImageModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.Temperature == nil {
		c.Temperature = genai.Ptr[float32](DefaultTemperature)
	}
	if c.Pair == (languages.Pair{}) {
		c.Pair = languages.DefaultPair
	}
	return c
}

// Client is a single-attempt Gemini provider. It is safe for concurrent use.
type Client struct {
	models *genai.Models
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and prepares the genai client. No request is made.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	cfg = cfg.withDefaults()

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{models: client.Models, cfg: cfg, logger: logger}, nil
}

// Translate performs one non-streamed translation.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.models.GenerateContent(ctx, c.cfg.TranslateModel,
		genai.Text(translatePrompt(text, source, target, c.cfg.Pair)),
		&genai.GenerateContentConfig{Temperature: c.cfg.Temperature},
	)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errors.New("translate: empty response")
	}
	return out, nil
}

// TranslateStream yields translated fragments in emission order.
//
// Breaking out of the range stops the underlying stream.
func (c *Client) TranslateStream(ctx context.Context, text, source, target string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		stream := c.models.GenerateContentStream(ctx, c.cfg.TranslateModel,
			genai.Text(streamPrompt(text, source, target, c.cfg.Pair)),
			&genai.GenerateContentConfig{Temperature: c.cfg.Temperature},
		)
		for chunk, err := range stream {
			if err != nil {
				yield("", fmt.Errorf("translate stream: %w", err))
				return
			}
			fragment := chunk.Text()
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// DetectLanguage names the language of text; short inputs return "".
func (c *Client) DetectLanguage(ctx context.Context, text string) (string, error) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < detectMinRunes {
		return "", nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.models.GenerateContent(ctx, c.cfg.TranslateModel,
		genai.Text(detectPrompt(text, c.cfg.Pair)),
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)},
	)
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// SynthesizeSpeech returns raw 16-bit little-endian mono PCM for text.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, lang string) ([]byte, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.models.GenerateContent(ctx, c.cfg.SpeechModel,
		genai.Text(text),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{string(genai.ModalityAudio)},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.cfg.Voice},
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, ErrNoAudio
	}
	c.logDebug("speech synthesized", "language", lang, "mime_type", blob.MIMEType, "bytes", len(blob.Data))
	return blob.Data, nil
}

// GenerateImage returns the first generated image as a PNG data URI, or "" when none.
func (c *Client) GenerateImage(ctx context.Context, req image.Request) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if req.AspectRatio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}
	resp, err := c.models.GenerateContent(ctx, c.cfg.ImageModel, genai.Text(req.FullPrompt()), cfg)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}

	blob := firstInlineData(resp)
	if blob == nil || len(blob.Data) == 0 {
		return "", nil
	}
	return image.EncodeDataURI("image/png", blob.Data), nil
}

func firstInlineData(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return nil
	}
	for _, part := range candidate.Content.Parts {
		if part != nil && part.InlineData != nil {
			return part.InlineData
		}
	}
	return nil
}

// Ping fetches metadata for the translation model to confirm credentials and reachability.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.models.Get(ctx, c.cfg.TranslateModel, nil); err != nil {
		return fmt.Errorf("get model %q: %w", c.cfg.TranslateModel, err)
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

func (c *Client) logDebug(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(message, args...)
}
