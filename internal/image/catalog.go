// Package image composes image prompts and tracks one generation result.
package image

import (
	"errors"
	"fmt"
	"strings"
)

// DownloadFilename is the default file name for a saved image result.
const DownloadFilename = "polyglot-ai-art.png"

var (
	// ErrUnknownStyle reports a style id outside the catalog.
	ErrUnknownStyle = errors.New("unknown image style")
	// ErrUnknownBackground reports a background id outside the catalog.
	ErrUnknownBackground = errors.New("unknown image background")
	// ErrUnknownAspectRatio reports an unsupported aspect ratio.
	ErrUnknownAspectRatio = errors.New("unknown aspect ratio")
)

// Style is a named rendering style appended to the prompt.
type Style struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Suffix string `json:"suffix"`
}

// Background is a named scene environment appended after the style.
type Background struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Suffix string `json:"suffix"`
}

var styles = []Style{
	{ID: "realistic", Label: "Realistic", Suffix: "highly detailed, photorealistic, 8k, masterwork, sharp focus"},
	{ID: "diagram", Label: "Diagram", Suffix: "clean technical diagram, schematic, vector style, educational illustration"},
	{ID: "3d", Label: "3D Render", Suffix: "unreal engine 5 render, octane render, volumetric lighting, high quality 3d, stylized"},
	{ID: "cinematic", Label: "Cinematic", Suffix: "movie scene, dramatic lighting, anamorphic, color graded, epic scale"},
	{ID: "anime", Label: "Anime", Suffix: "studio ghibli style, vibrant colors, clean lines, high quality anime art"},
	{ID: "sketch", Label: "Sketch", Suffix: "charcoal sketch, hand drawn, artistic, textured paper"},
}

var backgrounds = []Background{
	{ID: "default", Label: "Auto (Recommended)", Suffix: ""},
	{ID: "none", Label: "No Background (Isolated)", Suffix: "isolated on a clean, solid flat background, cutout style, no environment"},
	{ID: "white", Label: "Pure White", Suffix: "on a solid pure white background"},
	{ID: "nature", Label: "Nature", Suffix: "with a beautiful natural landscape background, trees and sky"},
	{ID: "studio", Label: "Studio", Suffix: "in a professional studio setting with soft lighting"},
	{ID: "city", Label: "Cityscape", Suffix: "with a blurry urban city background"},
}

var aspectRatios = []string{"1:1", "16:9", "9:16", "4:3"}

// Defaults used when a request leaves a field empty.
const (
	DefaultStyle       = "realistic"
	DefaultBackground  = "default"
	DefaultAspectRatio = "1:1"
)

// Styles returns the style catalog in display order.
func Styles() []Style {
	return append([]Style(nil), styles...)
}

// Backgrounds returns the background catalog in display order.
func Backgrounds() []Background {
	return append([]Background(nil), backgrounds...)
}

// AspectRatios returns the supported aspect ratios.
func AspectRatios() []string {
	return append([]string(nil), aspectRatios...)
}

// LookupStyle resolves a style id; empty selects DefaultStyle.
func LookupStyle(id string) (Style, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		id = DefaultStyle
	}
	for _, style := range styles {
		if style.ID == id {
			return style, nil
		}
	}
	return Style{}, fmt.Errorf("%w: %q", ErrUnknownStyle, id)
}

// LookupBackground resolves a background id; empty selects DefaultBackground.
func LookupBackground(id string) (Background, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		id = DefaultBackground
	}
	for _, bg := range backgrounds {
		if bg.ID == id {
			return bg, nil
		}
	}
	return Background{}, fmt.Errorf("%w: %q", ErrUnknownBackground, id)
}

// ValidateAspectRatio normalizes ratio; empty selects DefaultAspectRatio.
func ValidateAspectRatio(ratio string) (string, error) {
	ratio = strings.TrimSpace(ratio)
	if ratio == "" {
		return DefaultAspectRatio, nil
	}
	for _, candidate := range aspectRatios {
		if candidate == ratio {
			return ratio, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAspectRatio, ratio)
}
