package utils

import (
	"regexp"
	"testing"
)

func TestGenerateSlug(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z0-9]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s := GenerateSlug(SlugLength)
		if !pattern.MatchString(s) {
			t.Fatalf("slug %q does not match [a-z0-9]{8}", s)
		}
		if !ValidSlug(s) {
			t.Fatalf("generated slug %q not valid", s)
		}
		seen[s] = true
	}
	if len(seen) < 90 {
		t.Fatalf("slugs barely vary: %d unique out of 100", len(seen))
	}
}

func TestValidSlug(t *testing.T) {
	valid := []string{"abc123", "a", "my-site", "0x9"}
	for _, s := range valid {
		if !ValidSlug(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	invalid := []string{"", "ABC", "-lead", "trail-", "my-site-", "has.dot", "under_score", "with space"}
	for _, s := range invalid {
		if ValidSlug(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}
