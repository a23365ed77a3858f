package repostore

import (
	"fmt"
	"slices"
	"strings"
)

type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeS3   Scheme = "s3"
	SchemeGS   Scheme = "gs"
	SchemeABS  Scheme = "abs"
)

// Schemes lists every supported scheme.
var Schemes = []Scheme{SchemeFile, SchemeS3, SchemeGS, SchemeABS}

func (s Scheme) IsValid() bool {
	switch s {
	case SchemeFile, SchemeS3, SchemeGS, SchemeABS:
		return true
	default:
		return false
	}
}

func ParseScheme(s string) (Scheme, error) {
	scheme := Scheme(s)
	if !scheme.IsValid() {
		return "", fmt.Errorf("%w: %q (valid schemes: file, s3, gs, abs)", ErrUnknownScheme, s)
	}
	return scheme, nil
}

// Address is a parsed repository URI. The zero value is not a valid address;
// use Parse.
type Address struct {
	Scheme Scheme
	// Root is the bucket, container or local directory.
	Root   string
	prefix []string
}

// NewAddress builds an Address from already-split parts.
func NewAddress(scheme Scheme, root string, prefix ...string) Address {
	return Address{Scheme: scheme, Root: root, prefix: slices.Clone(prefix)}
}

// Prefix returns a copy of the sub-path segments below the root.
func (a Address) Prefix() []string {
	return slices.Clone(a.prefix)
}

// String renders the address in canonical URI form.
func (a Address) String() string {
	if len(a.prefix) == 0 {
		return string(a.Scheme) + "://" + a.Root
	}
	return string(a.Scheme) + "://" + a.Root + "/" + strings.Join(a.prefix, "/")
}

// ObjectKey joins the address prefix and a relative object path into a full
// object key within the root.
func (a Address) ObjectKey(rel string) (string, error) {
	if !IsValidPath(rel) {
		return "", fmt.Errorf("object key %q: %w", rel, ErrInvalidInput)
	}
	return JoinKey(append(a.Prefix(), rel)...), nil
}

// ListPrefix joins the address prefix and a relative listing prefix. An empty
// rel selects everything under the address. A trailing slash is kept.
func (a Address) ListPrefix(rel string) (string, error) {
	base := JoinKey(a.prefix...)
	if rel == "" {
		if base == "" {
			return "", nil
		}
		return base + "/", nil
	}

	trimmed := strings.TrimSuffix(rel, "/")
	if !IsValidPath(trimmed) {
		return "", fmt.Errorf("list prefix %q: %w", rel, ErrInvalidInput)
	}

	if base == "" {
		return rel, nil
	}
	return base + "/" + rel, nil
}

// Existence is the tri-state outcome of an existence check.
type Existence uint8

const (
	// ExistenceUnknown is returned together with a non-nil error.
	ExistenceUnknown Existence = iota
	Absent
	Present
)

func (e Existence) String() string {
	switch e {
	case Absent:
		return "absent"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

// ContainerHandle identifies a container created for a session.
type ContainerHandle struct {
	Scheme Scheme `json:"scheme"`
	Name   string `json:"name"`
}

func (h ContainerHandle) String() string {
	return string(h.Scheme) + "://" + h.Name
}
