package upload

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const maxBaseLength = 64

// storageFilename derives the on-disk name for an upload:
// sanitized-base + "-" + millisecond timestamp + "-" + random decimal + ext.
// The timestamp+random suffix makes concurrent uploads of the same name
// collide-free; O_EXCL at open backstops the scheme.
func storageFilename(originalName string) string {
	base, ext := sanitizeBaseName(originalName)
	return fmt.Sprintf("%s-%d-%d%s", base, time.Now().UnixMilli(), rand.Intn(1_000_000_000), ext)
}

// sanitizeBaseName reduces an untrusted client filename to a safe base and
// extension. Directory separators and parent references are stripped; the
// original name is never used as a path component.
func sanitizeBaseName(name string) (string, string) {
	// Both separator conventions: clients may be on any OS.
	name = strings.ReplaceAll(name, "\\", "/")
	name = name[strings.LastIndex(name, "/")+1:]

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	base = cleanComponent(base)
	ext = cleanExtension(ext)

	if base == "" {
		base = "file"
	}
	// Truncate on rune boundaries; cleanComponent keeps multi-byte letters.
	if runes := []rune(base); len(runes) > maxBaseLength {
		base = string(runes[:maxBaseLength])
	}
	return base, ext
}

// cleanComponent keeps letters, digits, dash and underscore, and folds
// everything else to underscore. Leading dots and underscores go too, so
// names cannot hide as dotfiles or traverse upward.
func cleanComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "._")
}

// cleanExtension keeps a short alphanumeric extension, dot included.
func cleanExtension(ext string) string {
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ""
		}
	}
	return strings.ToLower(ext)
}
