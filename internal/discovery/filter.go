package discovery

import (
	"path/filepath"
	"strings"

	"gest/internal/domain"
)

// MatchName matches a full test name ("group > test") against a wildcard
// pattern. Supports patterns like "*counter*" or "this is describe block*";
// a pattern without wildcards matches any name containing it.
func MatchName(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	// Try the whole name, then the test's own name
	candidates := []string{name}
	if i := strings.LastIndex(name, domain.NameSeparator); i >= 0 {
		candidates = append(candidates, name[i+len(domain.NameSeparator):])
	}

	for _, candidate := range candidates {
		// filepath.Match supports * and ? wildcards
		if matched, err := filepath.Match(pattern, candidate); err == nil && matched {
			return true
		}
	}

	// If pattern contains wildcards but filepath.Match didn't match,
	// try a more flexible match requiring every literal part in order
	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")
		rest := name
		hasNonEmptyPart := false
		for _, part := range parts {
			if part == "" {
				continue
			}
			hasNonEmptyPart = true
			i := strings.Index(rest, part)
			if i < 0 {
				return false
			}
			rest = rest[i+len(part):]
		}
		return hasNonEmptyPart
	}

	// If no wildcards, do a simple contains check
	if !strings.Contains(pattern, "?") {
		return strings.Contains(name, pattern)
	}
	return false
}
