package bible

import "strings"

// Translation describes one corpus edition.
type Translation struct {
	Code     string
	Name     string
	Language Language
	Aliases  []string
	// SearchWith names the local edition a remote translation is searched with.
	// Remote text is fetched per answer and never stored.
	SearchWith string
}

// Remote reports whether the translation has no local corpus
func (t Translation) Remote() bool {
	return t.SearchWith != ""
}

var translations = []Translation{
	{Code: "KJV", Name: "King James Version", Language: English},
	{Code: "WEB", Name: "World English Bible", Language: English},
	{Code: "ESV", Name: "English Standard Version", Language: English, SearchWith: "KJV"},
	{Code: "KRV", Name: "개역한글", Language: Korean, Aliases: []string{"개역한글", "개역한글판"}},
}

// Translations returns the supported translations.
func Translations() []Translation {
	out := make([]Translation, len(translations))
	copy(out, translations)
	return out
}

// LookupTranslation resolves a code or alias ("krv", "개역한글") to its Translation.
func LookupTranslation(name string) (Translation, bool) {
	name = strings.TrimSpace(name)
	for _, t := range translations {
		if strings.EqualFold(t.Code, name) {
			return t, true
		}
		for _, a := range t.Aliases {
			if a == name {
				return t, true
			}
		}
	}
	return Translation{}, false
}

// SearchTranslation maps a translation to the corpus edition its retrieval runs on.
// Unknown names are returned unchanged.
func SearchTranslation(name string) string {
	t, ok := LookupTranslation(name)
	if !ok {
		return name
	}
	if t.Remote() {
		return t.SearchWith
	}
	return t.Code
}

// DefaultTranslation is used when a session carries no preference for lang.
func DefaultTranslation(lang Language) string {
	if lang == Korean {
		return "KRV"
	}
	return "KJV"
}
