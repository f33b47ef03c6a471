package artifacts

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy suppresses index registration for scratch files that tools write as
// intermediates. Excluded files are still written to disk, just not tracked.
type Policy struct {
	ExcludeGlobs []string
}

// DefaultPolicy excludes common intermediate outputs.
func DefaultPolicy() *Policy {
	return &Policy{ExcludeGlobs: []string{
		"**/*.tmp",
		"**/*.partial",
		"**/.*",
	}}
}

// Excluded reports whether path matches any exclude glob. Globs are matched
// against the slash-separated path and, for bare patterns, the base name.
func (p *Policy) Excluded(path string) bool {
	if p == nil || len(p.ExcludeGlobs) == 0 {
		return false
	}
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, g := range p.ExcludeGlobs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, slashed); err == nil && ok {
			return true
		}
		if !strings.Contains(g, "/") {
			if ok, err := doublestar.Match(g, base); err == nil && ok {
				return true
			}
		}
	}
	return false
}
