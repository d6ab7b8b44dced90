package note

import (
	"cmp"
	"crypto/sha256"
	"slices"
	"strings"
	"unicode/utf8"
)

// NormalizeThoughts trims an annotation; blank input means no annotation.
func NormalizeThoughts(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// HasThoughts reports whether t holds a non-blank annotation.
func HasThoughts(t *string) bool {
	return t != nil && strings.TrimSpace(*t) != ""
}

// DisplayName resolves the name shown for an author: the profile name when
// set, otherwise a generated one derived from the pubkey.
func DisplayName(a Author) string {
	if name, ok := a.Metadata["name"].(string); ok && name != "" {
		return name
	}
	return GenUserName(a.Pubkey)
}

var nameAdjectives = []string{
	"Swift", "Silent", "Bright", "Clever", "Gentle", "Bold", "Curious", "Lucky",
	"Mellow", "Nimble", "Quiet", "Rapid", "Sunny", "Witty", "Brave", "Calm",
}

var nameAnimals = []string{
	"Otter", "Falcon", "Badger", "Heron", "Lynx", "Marten", "Osprey", "Panda",
	"Quokka", "Raven", "Salmon", "Tapir", "Walrus", "Yak", "Zebra", "Fox",
}

// GenUserName returns a stable, human-friendly name for a pubkey.
func GenUserName(pubkey string) string {
	sum := sha256.Sum256([]byte(pubkey))
	adj := nameAdjectives[int(sum[0])%len(nameAdjectives)]
	animal := nameAnimals[int(sum[1])%len(nameAnimals)]
	return adj + " " + animal
}

// SortRanked orders notes by upvotes (desc), then savedAt (newest first).
// The sort is stable, so equal notes keep their incoming order. The input
// is not modified.
func SortRanked(notes []Note) []Note {
	sorted := slices.Clone(notes)
	slices.SortStableFunc(sorted, func(a, b Note) int {
		if c := cmp.Compare(b.Upvotes, a.Upvotes); c != 0 {
			return c
		}
		return cmp.Compare(b.SavedAt, a.SavedAt)
	})
	return sorted
}

// truncateRunes returns the first n runes of s.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Preview returns the first n runes of s on a single line, with "..." when
// the text was cut.
func Preview(s string, n int) string {
	p := strings.ReplaceAll(truncateRunes(s, n), "\n", " ")
	if utf8.RuneCountInString(s) > n {
		p += "..."
	}
	return p
}
