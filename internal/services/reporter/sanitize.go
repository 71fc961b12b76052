package reporter

import "strings"

// MaxNameLength is the longest measurement or source name the collector accepts.
const MaxNameLength = 255

// Sanitizer maps a raw name to a transport-safe one. It returns false to
// reject the name outright.
type Sanitizer func(name string) (string, bool)

// NoOpSanitizer passes names through untouched.
func NoOpSanitizer(name string) (string, bool) {
	return name, true
}

// LastPassSanitizer enforces the collector's hard constraints: only
// [A-Za-z0-9.:_-] survive and the result is cut to MaxNameLength bytes.
// Empty results are rejected.
func LastPassSanitizer(name string) (string, bool) {
	var sb strings.Builder
	sb.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if allowedNameByte(name[i]) {
			sb.WriteByte(name[i])
		}
		if sb.Len() == MaxNameLength {
			break
		}
	}
	out := sb.String()
	return out, out != ""
}

func allowedNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '.', b == ':', b == '_', b == '-':
		return true
	default:
		return false
	}
}

// ReplaceSanitizer swaps every disallowed byte for repl instead of dropping it.
func ReplaceSanitizer(repl byte) Sanitizer {
	return func(name string) (string, bool) {
		b := []byte(name)
		for i := range b {
			if !allowedNameByte(b[i]) {
				b[i] = repl
			}
		}
		return string(b), len(b) > 0
	}
}

// chainSanitizers runs user first and LastPassSanitizer second.
func chainSanitizers(user Sanitizer) Sanitizer {
	if user == nil {
		return LastPassSanitizer
	}
	return func(name string) (string, bool) {
		n, ok := user(name)
		if !ok {
			return "", false
		}
		return LastPassSanitizer(n)
	}
}
