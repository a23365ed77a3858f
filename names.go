package repostore

import (
	"math/rand/v2"
	"strings"
)

const (
	DefaultNamePrefix   = "repostore-test-"
	DefaultSuffixLength = 20
)

const lowercase = "abcdefghijklmnopqrstuvwxyz"

// NameGenerator returns a candidate container name.
type NameGenerator func() string

// RandomName returns prefix followed by n random lowercase letters.
func RandomName(prefix string, n int) string {
	var b strings.Builder
	b.Grow(len(prefix) + n)
	b.WriteString(prefix)
	for range n {
		b.WriteByte(lowercase[rand.IntN(len(lowercase))])
	}
	return b.String()
}
