// ringside/utils/embed.go
package utils

import "regexp"

var (
	youtubeRe = regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:youtube\.com/(?:[^/\n\s]+/\S+/|(?:v|e(?:mbed)?)/|\S*?[?&]v=)|youtu\.be/)([a-zA-Z0-9_-]{11})`)
	vimeoRe   = regexp.MustCompile(`(?:https?://)?(?:www\.)?vimeo\.com/(\d+)`)
	naverRe   = regexp.MustCompile(`(?:https?://)?tv\.naver\.com/v/(\d+)`)
)

// EmbedURL converts a known video page URL into its embeddable player URL.
// URLs from unsupported hosts yield an empty string.
func EmbedURL(url string) string {
	if m := youtubeRe.FindStringSubmatch(url); m != nil {
		return "https://www.youtube.com/embed/" + m[1]
	}
	if m := vimeoRe.FindStringSubmatch(url); m != nil {
		return "https://player.vimeo.com/video/" + m[1]
	}
	if m := naverRe.FindStringSubmatch(url); m != nil {
		return "https://tv.naver.com/embed/" + m[1]
	}
	return ""
}
