package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
	require.Contains(t, parsed.Output, "Available Commands")
	require.Contains(t, parsed.Output, "translate")
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/polyglot.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/polyglot.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)

	parsed, err = Parse([]string{"status", "--config", "/tmp/cfg"})
	require.NoError(t, err)
	require.Equal(t, CommandStatus, parsed.Command)
	require.Equal(t, "/tmp/cfg", parsed.ConfigPath)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help subcommand", args: []string{"help", "image"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "subcommand help flag", args: []string{"image", "-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "version command", args: []string{"version"}, wantCmd: CommandVersion},
		{name: "missing config path", args: []string{"--config"}, wantErr: "needs an argument"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"bogus"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unknown command"},
		{name: "source needs lang", args: []string{"source"}, wantErr: "accepts 1 arg"},
		{name: "image needs prompt", args: []string{"image"}, wantErr: "requires at least 1 arg"},
		{name: "live needs switch", args: []string{"live", "maybe"}, wantErr: "expected on or off"},
		{name: "once needs text", args: []string{"translate", "--once"}, wantErr: "requires TEXT"},
		{name: "to needs once", args: []string{"translate", "--to", "es", "hello"}, wantErr: "--to requires --once"},
		{name: "copy exclusive flags", args: []string{"copy", "--source", "--image"}, wantErr: "mutually exclusive"},
		{name: "out with no-wait", args: []string{"image", "fox", "--out", "x.png", "--no-wait"}, wantErr: "--out"},
		{name: "serve", args: []string{"serve"}, wantCmd: CommandServe},
		{name: "swap", args: []string{"swap"}, wantCmd: CommandSwap},
		{name: "clear", args: []string{"clear"}, wantCmd: CommandClear},
		{name: "image clear", args: []string{"image-clear"}, wantCmd: CommandImageClear},
		{name: "languages", args: []string{"languages"}, wantCmd: CommandLanguages},
		{name: "styles", args: []string{"styles"}, wantCmd: CommandStyles},
		{name: "devices", args: []string{"devices"}, wantCmd: CommandDevices},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
		})
	}
}

func TestParseTranslate(t *testing.T) {
	parsed, err := Parse([]string{"translate", "good", "morning"})
	require.NoError(t, err)
	require.Equal(t, CommandTranslate, parsed.Command)
	require.Equal(t, "good morning", parsed.Text)
	require.True(t, parsed.Wait)
	require.False(t, parsed.Once)

	parsed, err = Parse([]string{"translate", "--once", "--to", "es", "hello"})
	require.NoError(t, err)
	require.True(t, parsed.Once)
	require.Equal(t, "es", parsed.Lang)
	require.Equal(t, "hello", parsed.Text)

	parsed, err = Parse([]string{"translate", "--no-wait"})
	require.NoError(t, err)
	require.False(t, parsed.Wait)
	require.Empty(t, parsed.Text)
}

func TestParseLanguageAndLive(t *testing.T) {
	parsed, err := Parse([]string{"target", "hi"})
	require.NoError(t, err)
	require.Equal(t, CommandTarget, parsed.Command)
	require.Equal(t, "hi", parsed.Lang)

	parsed, err = Parse([]string{"live", "off"})
	require.NoError(t, err)
	require.Equal(t, CommandLive, parsed.Command)
	require.NotNil(t, parsed.Enabled)
	require.False(t, *parsed.Enabled)

	parsed, err = Parse([]string{"live", "ON"})
	require.NoError(t, err)
	require.True(t, *parsed.Enabled)
}

func TestParseSpeakCopyImage(t *testing.T) {
	parsed, err := Parse([]string{"speak", "--source", "--lang", "English"})
	require.NoError(t, err)
	require.Equal(t, CommandSpeak, parsed.Command)
	require.True(t, parsed.Source)
	require.Equal(t, "English", parsed.Lang)
	require.True(t, parsed.Wait)

	parsed, err = Parse([]string{"copy", "--image"})
	require.NoError(t, err)
	require.Equal(t, CommandCopy, parsed.Command)
	require.True(t, parsed.Image)

	parsed, err = Parse([]string{"image", "a", "red", "fox", "--style", "anime", "--background", "city", "--aspect", "16:9", "--out", "fox.png"})
	require.NoError(t, err)
	require.Equal(t, CommandImage, parsed.Command)
	require.Equal(t, "a red fox", parsed.Text)
	require.Equal(t, "anime", parsed.Style)
	require.Equal(t, "city", parsed.Background)
	require.Equal(t, "16:9", parsed.AspectRatio)
	require.Equal(t, "fox.png", parsed.Out)
}

func TestParseInputKeepsWhitespaceJoinedText(t *testing.T) {
	parsed, err := Parse([]string{"input", "नमस्ते", "दुनिया"})
	require.NoError(t, err)
	require.Equal(t, CommandInput, parsed.Command)
	require.Equal(t, "नमस्ते दुनिया", parsed.Text)
}

func TestHelpTextListsCommands(t *testing.T) {
	text := HelpText("polyglot")
	require.Contains(t, text, "polyglot [--config PATH] <command>")
	for _, name := range []string{"serve", "translate", "swap", "speak", "image", "doctor"} {
		require.Contains(t, text, name)
	}
}
