// Package scanner recognises film page URLs, ballot links and emoji in chat text.
package scanner

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/kyokomi/emoji/v2"
	"github.com/rivo/uniseg"
)

var (
	eventSourceRegex = regexp.MustCompile(`^https://(boxd\.it|letterboxd\.com)(/\S*)?$`)
	ballotURLRegex   = regexp.MustCompile(`\[\.\]\((https://[^)]*)\)`)
	customEmojiRegex = regexp.MustCompile(`<a?:[^:<>\s]+:\d+>`)
)

const (
	variationSelector = '\uFE0F'
	zeroWidthJoiner   = '\u200D'
	regionalFirst     = 0x1F1E6
	regionalLast      = 0x1F1FF
	skinToneFirst     = 0x1F3FB
	skinToneLast      = 0x1F3FF
)

// IsEventSourceURL reports whether s is a link to a supported film page.
func IsEventSourceURL(s string) bool {
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return false
	}
	return eventSourceRegex.MatchString(s)
}

// ExtractBallotURLs returns the URLs embedded as "[.](url)" links, in document order.
func ExtractBallotURLs(text string) []string {
	var urls []string
	for _, m := range ballotURLRegex.FindAllStringSubmatch(text, -1) {
		urls = append(urls, m[1])
	}
	return urls
}

// ExtractEmoji returns every Unicode emoji, regional indicator and custom emoji
// token in text, in the order they occur.
func ExtractEmoji(text string) []string {
	var found []string
	pos := 0
	for _, loc := range customEmojiRegex.FindAllStringIndex(text, -1) {
		found = appendGraphemeEmoji(found, text[pos:loc[0]])
		found = append(found, text[loc[0]:loc[1]])
		pos = loc[1]
	}
	return appendGraphemeEmoji(found, text[pos:])
}

// ReactionID converts an emoji token into the identifier used to add a reaction.
func ReactionID(token string) string {
	if !customEmojiRegex.MatchString(token) {
		return token
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(token, "<"), ">")
	inner = strings.TrimPrefix(inner, "a:")
	return strings.TrimPrefix(inner, ":")
}

func appendGraphemeEmoji(found []string, s string) []string {
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		g := gr.Str()
		if isEmoji(g) {
			found = append(found, g)
		}
	}
	return found
}

var emojiTable = sync.OnceValue(func() map[string]struct{} {
	table := make(map[string]struct{})
	for _, v := range emoji.CodeMap() {
		if key := normalize(strings.TrimSpace(v)); key != "" {
			table[key] = struct{}{}
		}
	}
	return table
})

func isEmoji(g string) bool {
	r := []rune(g)
	if len(r) == 0 {
		return false
	}
	if r[0] >= regionalFirst && r[0] <= regionalLast {
		return true
	}

	table := emojiTable()
	key := normalize(g)
	if _, ok := table[key]; ok {
		return true
	}

	// ZWJ sequences and skin tones are rarely listed; accept them when every part is an emoji.
	parts := strings.Split(stripSkinTones(key), string(zeroWidthJoiner))
	for _, p := range parts {
		if _, ok := table[p]; !ok {
			return false
		}
	}
	return len(parts) > 1 || key != stripSkinTones(key)
}

func normalize(s string) string {
	return strings.ReplaceAll(s, string(variationSelector), "")
}

func stripSkinTones(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= skinToneFirst && r <= skinToneLast {
			return -1
		}
		return r
	}, s)
}
