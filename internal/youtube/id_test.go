package youtube

import (
	"errors"
	"strings"
	"testing"

	"askvid/internal/models"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url no scheme", "www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url no www", "https://youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url extra params", "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ&index=2", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link with timestamp", "https://youtu.be/dQw4w9WgXcQ?t=5", "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts url", "https://youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"mobile url", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id with underscore and dash", "a_b-C_d-E_f", "a_b-C_d-E_f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVideoID(tt.input)
			if err != nil {
				t.Fatalf("ExtractVideoID(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractVideoID_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"random text", "not a video reference"},
		{"id too short", "abc123"},
		{"id too long", "dQw4w9WgXcQdQw4w9WgXcQ"},
		{"wrong host", "https://example.com/watch?v=dQw4w9WgXcQ"},
		{"watch url without id", "https://www.youtube.com/watch?list=PL123"},
		{"id with invalid chars", "dQw4w9WgX!Q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractVideoID(tt.input)
			if !errors.Is(err, models.ErrInvalidIdentifier) {
				t.Errorf("ExtractVideoID(%q) error = %v, want ErrInvalidIdentifier", tt.input, err)
			}
		})
	}
}

func TestExtractVideoID_LongInputTruncatedInError(t *testing.T) {
	input := strings.Repeat("x", 300)
	_, err := ExtractVideoID(input)
	if err == nil {
		t.Fatal("expected error for long invalid input")
	}
	if len(err.Error()) > 150 {
		t.Errorf("error message too long (%d chars): %q", len(err.Error()), err.Error())
	}
}
