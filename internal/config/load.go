package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// APIKeyEnvVars lists environment variables consulted when gemini.api_key is unset.
var APIKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&base)
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	applyEnv(&cfg)
	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		warnings = append(warnings, Warning{Message: "no Gemini API key configured; set GEMINI_API_KEY"})
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// applyEnv fills the API key from the environment when the file leaves it empty.
func applyEnv(cfg *Config) {
	if strings.TrimSpace(cfg.Gemini.APIKey) != "" {
		return
	}
	for _, name := range APIKeyEnvVars {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			cfg.Gemini.APIKey = value
			return
		}
	}
}
