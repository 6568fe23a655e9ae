package ballot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsay-bot/pkg/club"
)

func pollWithVotes(votes ...int) *club.Poll {
	titles := []string{"Arrival", "Heat", "Stalker", "Alien"}
	p := &club.Poll{Question: Question}
	for i, v := range votes {
		p.Answers = append(p.Answers, club.PollAnswer{Text: titles[i], Votes: v})
	}
	return p
}

const threeLinks = "[.](https://boxd.it/a)[.](https://boxd.it/b)[.](https://boxd.it/c)"

func TestResolveWinner(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		poll      *club.Poll
		wantURL   string
		wantTitle string
		wantKind  club.VotingErrorKind
	}{
		{
			name:      "clear winner is first answer",
			text:      threeLinks,
			poll:      pollWithVotes(5, 2, 2),
			wantURL:   "https://boxd.it/a",
			wantTitle: "Arrival",
		},
		{
			name:      "clear winner is last answer",
			text:      threeLinks,
			poll:      pollWithVotes(0, 1, 3),
			wantURL:   "https://boxd.it/c",
			wantTitle: "Stalker",
		},
		{
			name:     "tie at the top",
			text:     threeLinks,
			poll:     pollWithVotes(5, 5, 2),
			wantKind: club.VotingTie,
		},
		{
			name:     "no votes at all is a tie",
			text:     threeLinks,
			poll:     pollWithVotes(0, 0, 0),
			wantKind: club.VotingTie,
		},
		{
			name:     "more links than answers",
			text:     threeLinks,
			poll:     pollWithVotes(1, 2),
			wantKind: club.VotingCountMismatch,
		},
		{
			name:     "no links",
			text:     "Vote for your favourite!",
			poll:     pollWithVotes(1, 2),
			wantKind: club.VotingNoEmbeddedURLs,
		},
		{
			name:     "no poll",
			text:     threeLinks,
			wantKind: club.VotingNoPoll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, title, err := ResolveWinner(tt.text, tt.poll)
			if tt.wantKind != 0 {
				require.Error(t, err)
				assert.True(t, club.IsVotingError(err, tt.wantKind), "got %v", err)

				var ve *club.VotingError
				require.ErrorAs(t, err, &ve)
				assert.NotEmpty(t, ve.Reply)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, url)
			assert.Equal(t, tt.wantTitle, title)
		})
	}
}

func TestComposeRoundTripsThroughResolveWinner(t *testing.T) {
	movies := []*club.MovieInfo{
		{Title: "Arrival", Year: "2016", URL: "https://letterboxd.com/film/arrival-2016/"},
		{Title: "Heat", URL: "https://letterboxd.com/film/heat-1995/"},
	}
	b := Compose("Dana", movies, []string{"🍿", "🎬"})

	assert.Equal(t, "Dana presents, for your consideration, the following films:\n"+
		"\n🍿 [Arrival (2016)](https://letterboxd.com/film/arrival-2016/)"+
		"\n🎬 [Heat](https://letterboxd.com/film/heat-1995/)", b.Listing)
	assert.Equal(t, "[.](https://letterboxd.com/film/arrival-2016/)[.](https://letterboxd.com/film/heat-1995/)", b.Marker)
	assert.Equal(t, Question, b.Poll.Question)
	assert.Equal(t, Duration, b.Poll.Duration)
	require.Len(t, b.Poll.Answers, 2)
	assert.Equal(t, club.PollAnswer{Text: "Heat", Emoji: "🎬"}, b.Poll.Answers[1])

	poll := &club.Poll{Answers: b.Poll.Answers}
	poll.Answers[1].Votes = 3
	url, title, err := ResolveWinner(b.Marker, poll)
	require.NoError(t, err)
	assert.Equal(t, movies[1].URL, url)
	assert.Equal(t, "Heat", title)
}

func TestComposeShortEmojiSlice(t *testing.T) {
	movies := []*club.MovieInfo{
		{Title: "Arrival", URL: "https://letterboxd.com/film/arrival-2016/"},
		{Title: "Heat", URL: "https://letterboxd.com/film/heat-1995/"},
	}
	b := Compose("Dana", movies, []string{"🍿"})

	assert.Equal(t, "Dana presents, for your consideration, the following films:\n"+
		"\n🍿 [Arrival](https://letterboxd.com/film/arrival-2016/)"+
		"\n[Heat](https://letterboxd.com/film/heat-1995/)", b.Listing)
	assert.Equal(t, []club.PollAnswer{{Text: "Arrival", Emoji: "🍿"}, {Text: "Heat"}}, b.Poll.Answers)

	assert.NotPanics(t, func() { Compose("Dana", movies, nil) })
}

func TestSampleEmoji(t *testing.T) {
	picked := SampleEmoji(4)
	require.Len(t, picked, 4)

	seen := map[string]bool{}
	for _, e := range picked {
		assert.Contains(t, Palette, e)
		assert.False(t, seen[e], "duplicate emoji %s", e)
		seen[e] = true
	}

	assert.Len(t, SampleEmoji(len(Palette)+10), len(Palette))
}
