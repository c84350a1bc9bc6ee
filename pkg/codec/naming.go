package codec

import "unicode"

// CamelCase turns a Go field name into the property name stored in documents.
// The first word is lowered and later initialisms keep only their first capital,
// so Go names match the camelCase used by the stored data:
// "CallID" -> "callId", "ID" -> "id", "URLValue" -> "urlValue".
func CamelCase(name string) string {
	runes := []rune(name)
	if len(runes) == 0 || !unicode.IsUpper(runes[0]) {
		return name
	}
	word := 0
	for i := range runes {
		if i > 0 && startsWord(runes, i) {
			word++
			continue
		}
		if word == 0 || unicode.IsUpper(runes[i]) {
			runes[i] = unicode.ToLower(runes[i])
		}
	}
	return string(runes)
}

// startsWord reports whether runes[i] is an upper-case letter opening a new word:
// after a lower-case letter or digit, or the last capital of an initialism followed
// by a lower-case letter ("URLValue" starts "Value" at V).
func startsWord(runes []rune, i int) bool {
	if !unicode.IsUpper(runes[i]) {
		return false
	}
	if !unicode.IsUpper(runes[i-1]) {
		return true
	}
	return i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
