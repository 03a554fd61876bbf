package video_test

import (
	"testing"

	"github.com/davguerra/filmoteca/internal/video"
	"github.com/stretchr/testify/assert"
)

func Test_ExtractID(t *testing.T) {
	tests := []struct {
		summary    string
		url        string
		expectedID string
	}{
		{"standard watch link", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch link with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"shortened link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shortened link with query", "https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"embed link", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"legacy /v/ link", "https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"player embedded link", "https://www.youtube.com/watch?feature=player_embedded&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"link with fragment", "https://youtu.be/dQw4w9WgXcQ#t=10", "dQw4w9WgXcQ"},
		{"not a video link", "https://example.com/some/page", ""},
		{"empty string", "", ""},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			assert.Equal(t, test.expectedID, video.ExtractID(test.url))
		})
	}
}

func Test_Thumbnail(t *testing.T) {
	tests := []struct {
		summary  string
		url      string
		expected string
	}{
		{"watch link", "https://www.youtube.com/watch?v=abc123XYZ_-", "https://img.youtube.com/vi/abc123XYZ_-/maxresdefault.jpg"},
		{"shortened link", "https://youtu.be/abc123XYZ_-", "https://img.youtube.com/vi/abc123XYZ_-/maxresdefault.jpg"},
		{"blank url", "", ""},
		{"unrecognised url", "https://vimeo.com/12345", ""},
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			assert.Equal(t, test.expected, video.Thumbnail(test.url))
		})
	}
}
