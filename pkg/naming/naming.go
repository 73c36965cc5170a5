// Package naming derives document titles and filesystem-safe names shared by
// the reconciliation engine and the attachment fetch pool.
package naming

import "strings"

// invalidChars are characters rejected by at least one target filesystem.
const invalidChars = `/\:*?"<>|`

// Sanitize makes a string safe for use as a file name: invalid characters are
// replaced with '_', control characters dropped, and leading/trailing spaces
// and dots trimmed.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20:
			// drop control characters
		case strings.ContainsRune(invalidChars, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), " .")
}

// DocumentTitle derives the archive title for a signed document:
// "{prefix}_{nip}_{nama}", or "{prefix}_{nip}" when the name is absent.
// The result is sanitized.
func DocumentTitle(prefix, nip, nama string) string {
	title := prefix + "_" + nip
	if nama != "" {
		title += "_" + nama
	}
	return Sanitize(title)
}
