package language

import (
	"sort"
	"strings"
)

// Language represents a supported language.
type Language struct {
	Code string
	Name string
}

// Auto is the pseudo-code requesting language detection on the source side.
const Auto = "auto"

// Languages is a map of supported languages code -> Language.
var Languages = map[string]Language{
	"ar": {Code: "ar", Name: "Arabic"},
	"de": {Code: "de", Name: "German"},
	"en": {Code: "en", Name: "English"},
	"es": {Code: "es", Name: "Spanish"},
	"fr": {Code: "fr", Name: "French"},
	"hi": {Code: "hi", Name: "Hindi"},
	"id": {Code: "id", Name: "Indonesian"},
	"it": {Code: "it", Name: "Italian"},
	"ja": {Code: "ja", Name: "Japanese"},
	"ko": {Code: "ko", Name: "Korean"},
	"nl": {Code: "nl", Name: "Dutch"},
	"pl": {Code: "pl", Name: "Polish"},
	"pt": {Code: "pt", Name: "Portuguese"},
	"ru": {Code: "ru", Name: "Russian"},
	"th": {Code: "th", Name: "Thai"},
	"tr": {Code: "tr", Name: "Turkish"},
	"uk": {Code: "uk", Name: "Ukrainian"},
	"vi": {Code: "vi", Name: "Vietnamese"},
	"zh": {Code: "zh", Name: "Chinese"},
}

// GetLanguage returns the language for a code, strict match only.
func GetLanguage(code string) (Language, bool) {
	lang, ok := Languages[strings.ToLower(strings.TrimSpace(code))]
	return lang, ok
}

// LanguageEntry represents a map entry for listing.
type LanguageEntry struct {
	ID string // The map key (CLI flag)
	Language
}

// GetSupportedLanguages returns a list of supported languages sorted by Name and then ID.
func GetSupportedLanguages() []LanguageEntry {
	entries := make([]LanguageEntry, 0, len(Languages))
	for k, v := range Languages {
		entries = append(entries, LanguageEntry{ID: k, Language: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}
