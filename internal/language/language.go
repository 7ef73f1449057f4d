package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize canonicalizes a language tag to its lowercase BCP-47 form
// ("ES_mx" -> "es-mx", "spa" -> "es"). Unparseable input is lowercased and
// trimmed so platform-specific oddities still compare consistently.
// Returns empty string for empty input.
func Normalize(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return strings.ToLower(trimmed)
	}
	return strings.ToLower(tag.String())
}

// Base returns the base language subtag of a tag ("es-419" -> "es").
// Unparseable input falls back to the segment before the first separator.
func Base(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err == nil {
		base, conf := tag.Base()
		if conf != language.No {
			return strings.ToLower(base.String())
		}
	}
	lowered := strings.ToLower(trimmed)
	if idx := strings.IndexAny(lowered, "-_"); idx > 0 {
		return lowered[:idx]
	}
	return lowered
}

// SameBase reports whether two tags share the same base language.
func SameBase(a, b string) bool {
	baseA, baseB := Base(a), Base(b)
	return baseA != "" && baseA == baseB
}

// DisplayName returns a human-readable English name for a language tag.
// Returns "Unknown" for empty input and the uppercased code when the tag
// has no known name.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// titleWords maps base languages to the spelled-out forms that show up in
// video titles when the spoken language is not tagged in the metadata.
var titleWords = map[string][]string{
	"es": {"español", "espanol", "castellano", "spanish"},
	"en": {"english"},
	"fr": {"français", "francais", "french"},
	"de": {"deutsch", "german"},
	"it": {"italiano", "italian"},
	"pt": {"português", "portugues", "portuguese"},
	"ja": {"日本語", "japanese"},
	"ko": {"한국어", "korean"},
}

// TitleMentions reports whether the title contains a spelled-out form of
// the given language. Used for opt-in audio language inference when stream
// metadata carries no tags.
func TitleMentions(title, code string) bool {
	base := Base(code)
	words, ok := titleWords[base]
	if !ok {
		return false
	}
	lowered := strings.ToLower(title)
	for _, word := range words {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}
