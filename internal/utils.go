package internal

// Version of the polydoc application
const Version = "0.3.1"

// EstimateTokens returns a rough token count for a piece of text.
// The characters-divided-by-four heuristic is a progress-indicator hint,
// not a billing-accurate count.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// SanitizeFilename creates a safe filename from a string
func SanitizeFilename(s string) string {
	result := ""
	for _, r := range s {
		if isAlphaNumeric(r) || r == '-' || r == '_' || r == '.' {
			result += string(r)
		} else {
			result += "_"
		}
	}
	return result
}

// isAlphaNumeric checks if a rune is alphanumeric
func isAlphaNumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
