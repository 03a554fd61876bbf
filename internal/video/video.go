// Package video knows how to pick apart external video platform URLs. The
// platform hosts no video itself; every item links out to YouTube, and the
// cover image shown in the feeds is derived from the video ID rather than
// uploaded by the director.
package video

import "regexp"

// videoIDPattern matches the ID segment following any of the link shapes
// YouTube hands out (watch, embed, shortened, URL-encoded share links).
// The ID runs until the next fragment, query or newline boundary.
var videoIDPattern = regexp.MustCompile(
	`(?:watch\?v=|/videos/|embed/|youtu\.be/|/v/|/e/|watch\?v%3D|watch\?feature=player_embedded&v=|%2Fvideos%2F|embed%2F|youtu\.be%2F|%2Fv%2F)([^#&?\n]*)`)

// ExtractID returns the video ID embedded in the given URL, or an empty
// string when the URL does not look like a recognised video link.
func ExtractID(url string) string {
	match := videoIDPattern.FindStringSubmatch(url)
	if match == nil {
		return ""
	}

	return match[1]
}

// Thumbnail derives the cover image URL for the given video link. Blank or
// unrecognised links yield an empty string; callers treat that as "no
// cover" rather than an error, so a bad link never blocks an upload on its
// own (the URL format check does that).
func Thumbnail(url string) string {
	if url == "" {
		return ""
	}

	id := ExtractID(url)
	if id == "" {
		return ""
	}

	return "https://img.youtube.com/vi/" + id + "/maxresdefault.jpg"
}
