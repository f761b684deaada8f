package extract

import (
	"strings"

	"chatharvest/internal/types"
)

// Language classifies response text with a script-range heuristic: any Han
// character wins zh, otherwise any Latin letter wins en, otherwise unknown.
func Language(text string) string {
	hasLatin := false
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			return types.LangChinese
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			hasLatin = true
		}
	}
	if hasLatin {
		return types.LangEnglish
	}
	return types.LangUnknown
}

// ConversationID extracts the conversation id from a post-submission
// location. Sites use patterns like /chat/<id> or /c/<id>; the last
// id-looking path segment wins.
func ConversationID(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[i+1:]
	} else {
		return ""
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}

	var parts []string
	for _, p := range strings.Split(rest, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	for i := len(parts) - 1; i >= 0; i-- {
		if len(parts[i]) > 10 {
			return parts[i]
		}
	}
	return parts[len(parts)-1]
}
