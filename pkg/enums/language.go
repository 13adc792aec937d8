package enums

import "strings"

// Language is the customer-facing language of a pass and its emails.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSpanish Language = "es"
)

// NormalizeLanguage maps free-form input to a supported language, defaulting to English.
func NormalizeLanguage(value string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(value))) {
	case LanguageSpanish:
		return LanguageSpanish
	default:
		return LanguageEnglish
	}
}
