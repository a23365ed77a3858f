package repostore

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsValidPath reports whether p is usable as a relative object path.
// It rejects:
//   - empty paths, "." and "/"
//   - leading or trailing "/"
//   - ".." anywhere and "." segments
//   - empty segments ("//")
//   - the characters \ ? # ~
//   - invalid UTF-8, control characters, DEL and whitespace other than
//     the space character
func IsValidPath(p string) bool {
	if p == "" || p == "/" || p == "." {
		return false
	}

	if p[0] == '/' || strings.HasSuffix(p, "/") {
		return false
	}

	if strings.Contains(p, "..") || strings.Contains(p, "//") {
		return false
	}

	if strings.ContainsAny(p, `\?#~`) {
		return false
	}

	if !utf8.ValidString(p) {
		return false
	}

	if strings.HasPrefix(p, "./") || strings.Contains(p, "/./") || strings.HasSuffix(p, "/.") {
		return false
	}

	for _, r := range p {
		if r < 0x20 || r == 0x7f || (r != ' ' && unicode.IsSpace(r)) {
			return false
		}
	}

	return true
}

// JoinKey joins key segments with "/", skipping empty ones.
func JoinKey(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(p)
	}
	return b.String()
}

// TrimKeyPrefix returns key relative to prefix, where prefix is a directory
// style prefix such as "a/b/". Keys outside prefix are returned unchanged.
func TrimKeyPrefix(key, prefix string) string {
	if prefix == "" {
		return key
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.TrimPrefix(key, prefix)
}
