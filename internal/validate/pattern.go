package validate

// Pattern templates: 'd' matches one ASCII digit, any other byte matches itself.
const (
	datePattern = "dddd-dd-dd"
	timePattern = "dd:dd"
)

// containsPattern reports whether s contains a substring matching pattern.
func containsPattern(s, pattern string) bool {
	for start := 0; start+len(pattern) <= len(s); start++ {
		if matchAt(s[start:], pattern) {
			return true
		}
	}
	return false
}

func matchAt(s, pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		c := s[i]
		if pattern[i] == 'd' {
			if c < '0' || c > '9' {
				return false
			}
			continue
		}
		if c != pattern[i] {
			return false
		}
	}
	return true
}
