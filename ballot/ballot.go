// Package ballot builds voting ballots and resolves their winners.
//
// A ballot is a poll message whose text embeds one "[.](url)" link per poll
// answer, in the same order as the answers. The links are how a poll answer is
// traced back to the film page it nominates.
package ballot

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"tsay-bot/pkg/club"
	"tsay-bot/scanner"
)

const (
	// Question is asked by every ballot poll.
	Question = "Which movie do you want to watch for the next session?"
	// Duration is how long a ballot poll stays open.
	Duration = 24 * time.Hour
	// MaxAnswers is the most answers Discord accepts on a poll.
	MaxAnswers = 10
)

// Palette holds the emoji that decorate poll answers.
var Palette = []string{
	"🍿", "🎬", "🎥", "🎞️", "📽️", "🎭", "🌟", "🔥",
	"👻", "🚀", "🐉", "🌊", "🦈", "🤠", "👽", "🧛",
	"🕵️", "🤖", "🦖", "🌵", "🗡️", "🎷", "🌙", "🐙",
}

// Ballot is everything needed to post a new vote.
type Ballot struct {
	Listing string        // Public message presenting the nominees
	Marker  string        // Text of the poll message, one "[.](url)" per answer
	Poll    club.PollSpec // Poll attached to the marker message
}

// SampleEmoji picks n distinct emoji from the palette.
func SampleEmoji(n int) []string {
	if n > len(Palette) {
		n = len(Palette)
	}
	picked := make([]string, 0, n)
	for _, i := range rand.Perm(len(Palette))[:n] {
		picked = append(picked, Palette[i])
	}
	return picked
}

// Compose lays out a ballot for the given nominees, decorating each with the
// emoji at the same index. Movies past the end of emojis go undecorated.
func Compose(presenter string, movies []*club.MovieInfo, emojis []string) Ballot {
	var listing, marker strings.Builder
	fmt.Fprintf(&listing, "%s presents, for your consideration, the following films:\n", presenter)

	answers := make([]club.PollAnswer, 0, len(movies))
	for i, movie := range movies {
		var emoji string
		if i < len(emojis) {
			emoji = emojis[i]
		}
		if emoji == "" {
			fmt.Fprintf(&listing, "\n[%s](%s)", movie, movie.URL)
		} else {
			fmt.Fprintf(&listing, "\n%s [%s](%s)", emoji, movie, movie.URL)
		}
		fmt.Fprintf(&marker, "[.](%s)", movie.URL)
		answers = append(answers, club.PollAnswer{Text: movie.Title, Emoji: emoji})
	}

	return Ballot{
		Listing: listing.String(),
		Marker:  marker.String(),
		Poll: club.PollSpec{
			Question: Question,
			Answers:  answers,
			Duration: Duration,
		},
	}
}

// ResolveWinner determines the film page URL and title of the poll winner.
//
// The URLs embedded in ballotText are paired with the poll answers by position.
// A tie for the most votes is reported as a VotingError, as is any ballot whose
// links and answers do not line up.
func ResolveWinner(ballotText string, poll *club.Poll) (string, string, error) {
	urls := scanner.ExtractBallotURLs(ballotText)
	if len(urls) == 0 {
		return "", "", &club.VotingError{
			Kind:   club.VotingNoEmbeddedURLs,
			Reason: "the target message did not have markdown-embedded URLs",
			Reply:  "This is not a valid ballot.",
		}
	}
	if poll == nil {
		return "", "", &club.VotingError{
			Kind:   club.VotingNoPoll,
			Reason: "the target message did not contain a poll",
			Reply:  "This message does not contain a poll.",
		}
	}
	if len(urls) != len(poll.Answers) {
		return "", "", &club.VotingError{
			Kind:   club.VotingCountMismatch,
			Reason: fmt.Sprintf("%d embedded URLs but %d poll answers", len(urls), len(poll.Answers)),
			Reply:  "This is not a valid ballot.",
		}
	}

	highest := poll.Answers[0].Votes
	for _, answer := range poll.Answers[1:] {
		highest = max(highest, answer.Votes)
	}

	winner := -1
	for i, answer := range poll.Answers {
		if answer.Votes != highest {
			continue
		}
		if winner >= 0 {
			return "", "", &club.VotingError{
				Kind:   club.VotingTie,
				Reason: "the target poll had multiple winners",
				Reply:  "There is a tie. Please break the tie and try again.",
			}
		}
		winner = i
	}

	return urls[winner], poll.Answers[winner].Text, nil
}
