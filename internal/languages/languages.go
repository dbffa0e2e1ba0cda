// Package languages holds the supported translation language catalog.
package languages

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// AutoDetect is the source-language sentinel that defers to detection.
const AutoDetect = "Auto-detect"

// AutoCode is the catalog code for AutoDetect.
const AutoCode = "auto"

// ErrUnknownLanguage reports a name or code outside the catalog.
var ErrUnknownLanguage = errors.New("unknown language")

// Language is one catalog entry.
type Language struct {
	Code string
	Name string
}

var supportedTags = []language.Tag{
	language.English,
	language.Hindi,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.Japanese,
	language.Korean,
	language.Chinese,
	language.Russian,
}

var catalog = buildCatalog()

func buildCatalog() []Language {
	namer := display.English.Languages()
	out := make([]Language, 0, len(supportedTags)+1)
	out = append(out, Language{Code: AutoCode, Name: AutoDetect})
	for _, tag := range supportedTags {
		base, _ := tag.Base()
		out = append(out, Language{Code: base.String(), Name: namer.Name(tag)})
	}
	return out
}

// All returns the ordered catalog including the AutoDetect entry.
func All() []Language {
	return append([]Language(nil), catalog...)
}

// Lookup resolves a display name or code, case-insensitively.
func Lookup(nameOrCode string) (Language, error) {
	needle := strings.TrimSpace(nameOrCode)
	for _, lang := range catalog {
		if strings.EqualFold(lang.Name, needle) || strings.EqualFold(lang.Code, needle) {
			return lang, nil
		}
	}
	return Language{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, nameOrCode)
}

// IsAuto reports whether name is the AutoDetect sentinel.
func IsAuto(name string) bool {
	return name == AutoDetect
}

// Pair is the bilingual pair used to resolve detection/target collisions.
type Pair struct {
	Primary   string
	Secondary string
}

// DefaultPair is the English/Hindi pair.
var DefaultPair = Pair{Primary: "English", Secondary: "Hindi"}

// Counterpart returns the other member of the pair and whether lang belongs to it.
func (p Pair) Counterpart(lang string) (string, bool) {
	switch lang {
	case p.Primary:
		return p.Secondary, true
	case p.Secondary:
		return p.Primary, true
	default:
		return "", false
	}
}
