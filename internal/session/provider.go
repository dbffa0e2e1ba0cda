package session

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrProviderUnavailable indicates no translation provider is wired.
	ErrProviderUnavailable = errors.New("translation provider not configured")
	// ErrEmptyTranslation indicates the provider stream ended without any fragment.
	ErrEmptyTranslation = errors.New("translation stream produced no output")
)

// Translator streams translated text fragments in emission order.
//
// The returned sequence is lazy, finite and must not be ranged more than once.
type Translator interface {
	TranslateStream(ctx context.Context, text, source, target string) iter.Seq2[string, error]
}

// Detector returns a best-guess language name for text, or "" when unknown.
type Detector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, text, source, target string) iter.Seq2[string, error]

func (f TranslatorFunc) TranslateStream(ctx context.Context, text, source, target string) iter.Seq2[string, error] {
	return f(ctx, text, source, target)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, text string) (string, error)

func (f DetectorFunc) DetectLanguage(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

type unavailableTranslator struct{}

func (unavailableTranslator) TranslateStream(context.Context, string, string, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", ErrProviderUnavailable)
	}
}

type noopDetector struct{}

func (noopDetector) DetectLanguage(context.Context, string) (string, error) {
	return "", nil
}
