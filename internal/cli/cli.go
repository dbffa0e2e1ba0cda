// Package cli parses polyglot command lines into a dispatchable form.
package cli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandServe      Command = "serve"
	CommandStatus     Command = "status"
	CommandInput      Command = "input"
	CommandTranslate  Command = "translate"
	CommandSwap       Command = "swap"
	CommandClear      Command = "clear"
	CommandSource     Command = "source"
	CommandTarget     Command = "target"
	CommandLive       Command = "live"
	CommandSpeak      Command = "speak"
	CommandCopy       Command = "copy"
	CommandImage      Command = "image"
	CommandImageClear Command = "image-clear"
	CommandLanguages  Command = "languages"
	CommandStyles     Command = "styles"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

// Parsed is one resolved invocation.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Output holds text cobra rendered itself (help screens).
	Output string

	Text        string
	Lang        string
	Enabled     *bool
	Once        bool
	Wait        bool
	Source      bool
	Image       bool
	Style       string
	Background  string
	AspectRatio string
	Out         string
}

// Parse resolves args (without the binary name) into a Parsed invocation.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{}
	var out bytes.Buffer

	root := newRootCommand("polyglot", &parsed)
	root.SetOut(&out)
	root.SetErr(&out)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}

	if parsed.Command == "" {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
	}
	if parsed.ShowHelp {
		parsed.Output = out.String()
		if parsed.Output == "" {
			parsed.Output = HelpText("polyglot")
		}
	}
	return parsed, nil
}

// HelpText renders the root usage screen.
func HelpText(binaryName string) string {
	var out bytes.Buffer
	root := newRootCommand(binaryName, &Parsed{})
	root.SetOut(&out)
	_ = root.Help()
	return out.String()
}

func newRootCommand(binaryName string, parsed *Parsed) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   binaryName + " [--config PATH] <command>",
		Short: "Live translation, speech and image generation workspace",
		Long: `polyglot runs a translation workspace (serve) and drives it from the command line.

Commands other than serve, languages, styles, devices, doctor and version talk to
the running workspace over $XDG_RUNTIME_DIR/polyglot.sock.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				parsed.Command = CommandVersion
				return nil
			}
			parsed.Command = CommandHelp
			parsed.ShowHelp = true
			return cmd.Help()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&parsed.ConfigPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/polyglot/config.jsonc)")
	root.Flags().BoolVar(&showVersion, "version", false, "show version")

	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		parsed.ShowHelp = true
		if parsed.Command == "" {
			parsed.Command = CommandHelp
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
		if cmd.Long != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", cmd.Long)
		}
	})

	set := func(command Command) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			parsed.Command = command
			parsed.Text = strings.Join(args, " ")
			return nil
		}
	}

	simple := func(command Command, short string) *cobra.Command {
		return &cobra.Command{Use: string(command), Short: short, Args: cobra.NoArgs, RunE: set(command)}
	}

	root.AddCommand(
		simple(CommandServe, "Run the workspace (socket, optional web UI)"),
		simple(CommandStatus, "Print the workspace state"),
		&cobra.Command{
			Use:   "input [TEXT...]",
			Short: "Replace the source text as if typed (debounced live translation)",
			RunE:  set(CommandInput),
		},
		newTranslateCommand(parsed),
		simple(CommandSwap, "Swap languages and texts"),
		simple(CommandClear, "Clear texts and detection"),
		newLanguageCommand(CommandSource, "Set the source language (name, code or auto)", parsed),
		newLanguageCommand(CommandTarget, "Set the target language", parsed),
		newLiveCommand(parsed),
		newSpeakCommand(parsed),
		newCopyCommand(parsed),
		newImageCommand(parsed),
		simple(CommandImageClear, "Drop the generated image"),
		simple(CommandLanguages, "List supported languages"),
		simple(CommandStyles, "List image styles, backgrounds and aspect ratios"),
		simple(CommandDevices, "List audio output devices"),
		simple(CommandDoctor, "Run configuration and environment checks"),
		simple(CommandVersion, "Print version information"),
	)
	return root
}

func newTranslateCommand(parsed *Parsed) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "translate [TEXT...]",
		Short: "Translate TEXT (or the current source text) now",
		RunE: func(_ *cobra.Command, args []string) error {
			parsed.Command = CommandTranslate
			parsed.Text = strings.Join(args, " ")
			parsed.Wait = !noWait
			if parsed.Once && strings.TrimSpace(parsed.Text) == "" {
				return fmt.Errorf("translate --once requires TEXT")
			}
			if parsed.Lang != "" && !parsed.Once {
				return fmt.Errorf("translate --to requires --once; use `polyglot target` to change the workspace target")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&parsed.Once, "once", false, "call the provider directly without a running workspace")
	cmd.Flags().StringVar(&parsed.Lang, "to", "", "target language for --once")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return before the translation finishes")
	return cmd
}

func newLanguageCommand(command Command, short string, parsed *Parsed) *cobra.Command {
	return &cobra.Command{
		Use:   string(command) + " LANG",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			parsed.Command = command
			parsed.Lang = args[0]
			return nil
		},
	}
}

func newLiveCommand(parsed *Parsed) *cobra.Command {
	return &cobra.Command{
		Use:       "live on|off",
		Short:     "Toggle live (debounced) translation",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			parsed.Command = CommandLive
			parsed.Enabled = &enabled
			return nil
		},
	}
}

func newSpeakCommand(parsed *Parsed) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "speak [TEXT...]",
		Short: "Speak the translation (or the source text, or TEXT)",
		RunE: func(_ *cobra.Command, args []string) error {
			parsed.Command = CommandSpeak
			parsed.Text = strings.Join(args, " ")
			parsed.Wait = !noWait
			return nil
		},
	}
	cmd.Flags().BoolVar(&parsed.Source, "source", false, "speak the source text")
	cmd.Flags().StringVar(&parsed.Lang, "lang", "", "override the speech language")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return before synthesis finishes")
	return cmd
}

func newCopyCommand(parsed *Parsed) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy the translation (or source text, or image data URI) to the clipboard",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if parsed.Source && parsed.Image {
				return fmt.Errorf("--source and --image are mutually exclusive")
			}
			parsed.Command = CommandCopy
			return nil
		},
	}
	cmd.Flags().BoolVar(&parsed.Source, "source", false, "copy the source text")
	cmd.Flags().BoolVar(&parsed.Image, "image", false, "copy the generated image data URI")
	return cmd
}

func newImageCommand(parsed *Parsed) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "image PROMPT...",
		Short: "Generate an image from PROMPT",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			parsed.Command = CommandImage
			parsed.Text = strings.Join(args, " ")
			parsed.Wait = !noWait
			if noWait && parsed.Out != "" {
				return fmt.Errorf("--out cannot be combined with --no-wait")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&parsed.Style, "style", "", "style id (see styles)")
	cmd.Flags().StringVar(&parsed.Background, "background", "", "background id (see styles)")
	cmd.Flags().StringVar(&parsed.AspectRatio, "aspect", "", "aspect ratio: 1:1, 16:9, 9:16, 4:3")
	cmd.Flags().StringVar(&parsed.Out, "out", "", "write the image to this file (use - for polyglot-ai-art.png)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return before generation finishes")
	return cmd
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", value)
	}
}
