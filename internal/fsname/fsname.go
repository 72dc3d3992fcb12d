// Package fsname turns arbitrary page text into names that are safe to use
// as file and directory names.
package fsname

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLength bounds names produced by Sanitize.
const DefaultMaxLength = 80

// hashLength is the number of hex characters kept from the digest suffix.
const hashLength = 8

var illegalChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// Sanitize is Clean with DefaultMaxLength.
func Sanitize(text string) string {
	return Clean(text, DefaultMaxLength)
}

// Clean strips characters that are illegal in file names, trims surrounding
// whitespace and replaces the remaining whitespace with underscores. Names
// longer than maxLength bytes are truncated and suffixed with "_" and the
// first eight hex digits of the MD5 of the original text, so two long inputs
// sharing a prefix still map to different names.
func Clean(text string, maxLength int) string {
	clean := illegalChars.ReplaceAllString(text, "")
	clean = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, clean)
	clean = strings.TrimSpace(clean)
	clean = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, clean)

	if len(clean) <= maxLength {
		return clean
	}

	sum := md5.Sum([]byte(text))
	suffix := "_" + hex.EncodeToString(sum[:])[:hashLength]

	keep := max(maxLength-len(suffix), 0)
	for keep > 0 && !utf8.RuneStart(clean[keep]) {
		keep--
	}
	return clean[:keep] + suffix
}
