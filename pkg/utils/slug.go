package utils

import (
	"crypto/rand"
	"regexp"
)

const slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// SlugLength is the length of generated project slugs.
const SlugLength = 8

var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// GenerateSlug returns a random lowercase-alphanumeric identifier of n
// characters. Collisions are not checked here; the project upsert resolves
// them by slug.
func GenerateSlug(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic("utils: crypto/rand unavailable: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = slugAlphabet[int(b)%len(slugAlphabet)]
	}
	return string(buf)
}

// ValidSlug reports whether s is usable as a project slug and serving
// subdomain label.
func ValidSlug(s string) bool {
	return len(s) > 0 && len(s) <= 63 && slugPattern.MatchString(s)
}
