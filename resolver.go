package repostore

import (
	"strings"
)

// Parse splits a repository URI of the form scheme://root[/sub/path...] into
// an Address. It performs no I/O.
//
// For file URIs the whole remainder is the local root directory, so both
// file:///tmp/repo and file://relative/dir are accepted. For object store
// schemes the first segment is the bucket or container and the rest is the
// prefix; empty segments are dropped.
func Parse(uri string) (Address, error) {
	rawScheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Address{}, &ParseError{URI: uri, Err: ErrMalformedURI}
	}

	scheme, err := ParseScheme(rawScheme)
	if err != nil {
		return Address{}, &ParseError{URI: uri, Err: err}
	}

	if scheme == SchemeFile {
		if rest == "" {
			return Address{}, &ParseError{URI: uri, Err: ErrMalformedURI}
		}
		return Address{Scheme: scheme, Root: rest}, nil
	}

	var segments []string
	for seg := range strings.SplitSeq(rest, "/") {
		switch seg {
		case "":
			continue
		case ".", "..":
			return Address{}, &ParseError{URI: uri, Err: ErrMalformedURI}
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 || strings.HasPrefix(rest, "/") {
		return Address{}, &ParseError{URI: uri, Err: ErrMalformedURI}
	}

	return Address{Scheme: scheme, Root: segments[0], prefix: segments[1:]}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(uri string) Address {
	addr, err := Parse(uri)
	if err != nil {
		panic(err)
	}
	return addr
}
