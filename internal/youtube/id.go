// Package youtube fetches video transcripts from YouTube's caption
// endpoints and resolves video identifiers from URLs.
package youtube

import (
	"fmt"
	"regexp"

	"askvid/internal/models"
)

// idPatterns are the accepted URL shapes, tried in order. Each captures
// the 11-character video identifier in group 1.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?(?:[^#]*&)?v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
}

// bareIDPattern matches a bare canonical identifier.
var bareIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID resolves any accepted URL shape (watch, short-link,
// embed, mobile, shorts) or a bare identifier to the canonical
// 11-character video ID. Returns ErrInvalidIdentifier when nothing
// matches.
func ExtractVideoID(input string) (string, error) {
	if bareIDPattern.MatchString(input) {
		return input, nil
	}
	for _, p := range idPatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: %q", models.ErrInvalidIdentifier, truncateForError(input))
}

// truncateForError keeps error messages readable for long inputs.
func truncateForError(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
