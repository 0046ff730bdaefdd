// Package keys builds deterministic cache keys for resolved tiles.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/tilemesh/terrabuild/internal/source"
	"github.com/tilemesh/terrabuild/internal/tile"
)

// Key derives the cache key for one layer's data at one tile. The readable
// prefix keeps keys greppable in redis; the xxhash suffix binds the full
// unsanitized identity so two layers never collide after sanitizing.
func Key(layer string, kind source.Kind, k tile.Key) string {
	identity := fmt.Sprintf("%s|%s|%s|%s", layer, kind, k.Profile, k)
	sum := xxhash.Sum64String(identity)
	return fmt.Sprintf("%s:%s:%s:%s:h=%016x", sanitizeLayer(strings.TrimSpace(layer)), kind, k.Profile, k, sum)
}

// Prefix returns the shared key prefix for one layer and kind, used by
// invalidation to address a layer's keys without enumerating profiles.
func Prefix(layer string, kind source.Kind) string {
	return fmt.Sprintf("%s:%s:", sanitizeLayer(strings.TrimSpace(layer)), kind)
}

func sanitizeLayer(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
