package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Gemini: GeminiConfig{
			TranslateModel: "gemini-3-flash-preview",
			SpeechModel:    "gemini-2.5-flash-preview-tts",
			ImageModel:     "gemini-2.5-flash-image",
			Temperature:    0.1,
		},
		Translate: TranslateConfig{
			SourceLang:     "Auto-detect",
			TargetLang:     "Hindi",
			Live:           true,
			DebounceMS:     800,
			DetectMinChars: 5,
			Pair:           []string{"English", "Hindi"},
		},
		Speech: SpeechConfig{
			Backend:  "pulse",
			Output:   "default",
			Fallback: "default",
			Voice:    "Kore",
		},
		Image: ImageConfig{
			Style:       "realistic",
			Background:  "default",
			AspectRatio: "1:1",
		},
		Web: WebConfig{
			Enable: false,
			Addr:   "127.0.0.1:8787",
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Debug:     DebugConfig{LogLevel: "info"},
	}
}
