package storage

import "strings"

// matchGlob reports whether key matches pattern, where '*' matches any run
// of bytes (including none) and every other byte matches itself.
func matchGlob(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return key == pattern
	}

	head, tail := parts[0], parts[len(parts)-1]
	if len(key) < len(head)+len(tail) ||
		!strings.HasPrefix(key, head) || !strings.HasSuffix(key, tail) {
		return false
	}

	// Middle segments are matched leftmost-first inside the region left
	// between head and tail.
	rest := key[len(head) : len(key)-len(tail)]
	for _, seg := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, seg)
		if i < 0 {
			return false
		}
		rest = rest[i+len(seg):]
	}
	return true
}

func matcher(pattern string) func(string) bool {
	switch {
	case pattern == "*":
		return func(string) bool { return true }
	case !strings.Contains(pattern, "*"):
		return func(key string) bool { return key == pattern }
	default:
		return func(key string) bool { return matchGlob(pattern, key) }
	}
}
