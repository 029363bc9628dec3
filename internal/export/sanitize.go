package export

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxFilenameLen caps entry names for cross-platform extraction.
const maxFilenameLen = 255

// SanitizeFilename replaces characters that are illegal or hazardous in
// archive entry names and bounds the result's length. An empty or
// fully-stripped name becomes "frame".
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimSpace(b.String())
	out = strings.Trim(out, ".")
	if len(out) > maxFilenameLen {
		// Truncate on a rune boundary so the name stays valid UTF-8.
		cut := maxFilenameLen
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	if out == "" {
		return "frame"
	}
	return out
}

// nameSet deduplicates entry names within one archive.
type nameSet struct {
	seen map[string]int
}

func newNameSet() *nameSet {
	return &nameSet{seen: make(map[string]int)}
}

// unique returns name unchanged on first use and a suffixed variant on
// collision.
func (s *nameSet) unique(name string) string {
	n, ok := s.seen[name]
	if !ok {
		s.seen[name] = 1
		return name
	}
	s.seen[name] = n + 1

	ext := ""
	base := name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		base, ext = name[:i], name[i:]
	}
	return base + "_" + strconv.Itoa(n+1) + ext
}
