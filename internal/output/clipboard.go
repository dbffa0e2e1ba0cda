// Package output applies copy side effects through an external clipboard command.
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/rbright/polyglot/internal/config"
)

const clipboardTimeout = 2 * time.Second

// Clipboard pipes text into the configured clipboard command.
type Clipboard struct {
	command config.CommandConfig
	logger  *slog.Logger
}

// NewClipboard constructs a clipboard writer from runtime config.
func NewClipboard(command config.CommandConfig, logger *slog.Logger) *Clipboard {
	return &Clipboard{command: command, logger: logger}
}

// Copy writes text to the clipboard. Empty text is a no-op.
func (c *Clipboard) Copy(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	if err := runCommandWithInput(ctx, c.command.Argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("clipboard updated", "bytes", len(text))
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
