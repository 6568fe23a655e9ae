package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEventSourceURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"letterboxd film", "https://letterboxd.com/film/arrival-2016/", true},
		{"short link", "https://boxd.it/aBcD", true},
		{"bare host", "https://letterboxd.com", true},
		{"http scheme", "http://letterboxd.com/film/arrival-2016/", false},
		{"uppercase scheme", "HTTPS://letterboxd.com/film/arrival-2016/", false},
		{"other host", "https://imdb.com/title/tt2543164/", false},
		{"host suffix", "https://letterboxd.com.evil.example/film/", false},
		{"subdomain", "https://www.letterboxd.com/film/arrival-2016/", false},
		{"embedded space", "https://letterboxd.com/film/arrival 2016/", false},
		{"trailing newline", "https://letterboxd.com/film/arrival-2016/\n", false},
		{"non-breaking space", "https://letterboxd.com/film/a\u00a0b/", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEventSourceURL(tt.in))
		})
	}
}

func TestExtractBallotURLs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"two links in order", "[.](https://a)[.](https://b)", []string{"https://a", "https://b"}},
		{"ignores regular links", "[Arrival](https://letterboxd.com/film/arrival-2016/)", nil},
		{"ignores http", "[.](http://a)[.](https://b)", []string{"https://b"}},
		{"surrounding text", "vote! [.](https://boxd.it/1) and [.](https://boxd.it/2) now", []string{"https://boxd.it/1", "https://boxd.it/2"}},
		{"none", "no ballot here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBallotURLs(tt.in))
		})
	}
}

func TestExtractEmoji(t *testing.T) {
	got := ExtractEmoji("<:shyguy:1319335606878470164> 😀 hello 🇨🇨 ⚡ <a:dance:42> 👍🏽 🇦")
	assert.Equal(t, []string{
		"<:shyguy:1319335606878470164>",
		"😀",
		"🇨🇨",
		"⚡",
		"<a:dance:42>",
		"👍🏽",
		"🇦",
	}, got)
}

func TestExtractEmojiPlainText(t *testing.T) {
	assert.Empty(t, ExtractEmoji("just some words, no pictures"))
}

func TestExtractEmojiCustomWithoutID(t *testing.T) {
	assert.Empty(t, ExtractEmoji("<:x:>"))
	assert.Equal(t, []string{"<:x:7>"}, ExtractEmoji("<:x:> <:x:7>"))
}

func TestReactionID(t *testing.T) {
	assert.Equal(t, "shyguy:1319335606878470164", ReactionID("<:shyguy:1319335606878470164>"))
	assert.Equal(t, "dance:42", ReactionID("<a:dance:42>"))
	assert.Equal(t, "😀", ReactionID("😀"))
}
