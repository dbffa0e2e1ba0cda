package gemini

import (
	"fmt"
	"strings"

	"github.com/rbright/polyglot/internal/languages"
)

const detectMaxRunes = 100

func translatePrompt(text, source, target string, pair languages.Pair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate accurately from %s to %s.\n", source, target)
	if hint := pairHint(source, target, pair); hint != "" {
		b.WriteString(hint)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Input: \"%s\"\n", text)
	b.WriteString("Return ONLY the translated text. Do not provide pronunciation or explanation.")
	return b.String()
}

func streamPrompt(text, source, target string, pair languages.Pair) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate from %s to %s.\n", source, target)
	if hint := pairHint(source, target, pair); hint != "" {
		b.WriteString("IMPORTANT: ")
		b.WriteString(hint)
		b.WriteString("\n")
	}
	b.WriteString("Return ONLY the translated text.\n")
	fmt.Fprintf(&b, "Text: \"%s\"", text)
	return b.String()
}

// pairHint pins the output direction when both languages belong to the pair.
func pairHint(source, target string, pair languages.Pair) string {
	if _, ok := pair.Counterpart(source); !ok {
		return ""
	}
	if _, ok := pair.Counterpart(target); !ok {
		return ""
	}
	return fmt.Sprintf("If the input is %s, the target MUST be %s. If the input is %s, the target MUST be %s.",
		pair.Secondary, pair.Primary, pair.Primary, pair.Secondary)
}

func detectPrompt(text string, pair languages.Pair) string {
	return fmt.Sprintf("Identify if the following text is %q or %q. Respond with only the language name. Text: \"%s\"",
		pair.Secondary, pair.Primary, truncateRunes(text, detectMaxRunes))
}

func truncateRunes(text string, limit int) string {
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}
