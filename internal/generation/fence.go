package generation

import "strings"

// StripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, from model output. Text without a fence is only trimmed,
// so applying it twice yields the same result.
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}

	cleaned = strings.TrimPrefix(cleaned, "```")
	// Drop the language tag on the opening line (```json).
	if newline := strings.IndexByte(cleaned, '\n'); newline >= 0 {
		if tag := strings.TrimSpace(cleaned[:newline]); isFenceTag(tag) {
			cleaned = cleaned[newline+1:]
		}
	} else {
		cleaned = strings.TrimLeft(cleaned, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
