package bible

import "unicode"

// Language of a query or verse.
type Language string

const (
	English Language = "en"
	Korean  Language = "ko"
)

// hangulRatio above which a message is treated as Korean.
const hangulRatio = 0.3

// DetectLanguage classifies text by the share of Hangul among its letters.
// Text without letters defaults to English.
func DetectLanguage(text string) Language {
	var letters, hangul int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Hangul, r) {
			hangul++
		}
	}
	if letters == 0 {
		return English
	}
	if float64(hangul)/float64(letters) > hangulRatio {
		return Korean
	}
	return English
}

// ParseLanguage accepts "ko"/"en" (and a few spellings); ok is false otherwise.
func ParseLanguage(s string) (Language, bool) {
	switch s {
	case "ko", "kr", "korean", "한국어":
		return Korean, true
	case "en", "english":
		return English, true
	}
	return "", false
}
