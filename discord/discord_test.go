package discord

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsay-bot/pkg/club"
)

func TestToMessage(t *testing.T) {
	raw := `{
		"id": "m1",
		"channel_id": "c1",
		"guild_id": "g1",
		"content": "[.](https://boxd.it/a)[.](https://boxd.it/b)",
		"poll": {
			"question": {"text": "Which movie?"},
			"answers": [
				{"answer_id": 1, "poll_media": {"text": "Heat", "emoji": {"name": "🍿"}}},
				{"answer_id": 2, "poll_media": {"text": "Ran"}}
			],
			"allow_multiselect": false,
			"results": {"is_finalized": true, "answer_counts": [{"id": 2, "count": 3, "me_voted": false}]}
		}
	}`
	var m discordgo.Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	msg := toMessage(&m)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "c1", msg.ChannelID)
	assert.Equal(t, "g1", msg.GuildID)
	require.NotNil(t, msg.Poll)
	assert.True(t, msg.Poll.Finalized)
	assert.Equal(t, "Which movie?", msg.Poll.Question)
	assert.Equal(t, []club.PollAnswer{
		{Text: "Heat", Emoji: "🍿", Votes: 0},
		{Text: "Ran", Votes: 3},
	}, msg.Poll.Answers)
}

func TestToMessageWithoutPoll(t *testing.T) {
	msg := toMessage(&discordgo.Message{ID: "m1", Content: "hi"})
	assert.Equal(t, "hi", msg.Content)
	assert.Nil(t, msg.Poll)
}

func TestToMessageOpenPoll(t *testing.T) {
	msg := toMessage(&discordgo.Message{
		ID: "m1",
		Poll: &discordgo.Poll{
			Question: discordgo.PollMedia{Text: "Which movie?"},
			Answers:  []discordgo.PollAnswer{{AnswerID: 1, Media: &discordgo.PollMedia{Text: "Heat"}}},
		},
	})
	require.NotNil(t, msg.Poll)
	assert.False(t, msg.Poll.Finalized)
	assert.Equal(t, []club.PollAnswer{{Text: "Heat"}}, msg.Poll.Answers)
}

func TestNewPoll(t *testing.T) {
	p := newPoll(club.PollSpec{
		Question: "Which movie?",
		Duration: 24 * time.Hour,
		Answers:  []club.PollAnswer{{Text: "Heat", Emoji: "🍿"}, {Text: "Ran"}},
	})
	assert.Equal(t, 24, p.Duration)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"question": {"text": "Which movie?"},
		"answers": [
			{"poll_media": {"text": "Heat", "emoji": {"name": "🍿"}}},
			{"poll_media": {"text": "Ran"}}
		],
		"duration": 24,
		"allow_multiselect": false
	}`, string(b))
}

func TestToEvent(t *testing.T) {
	start := time.Date(2024, 3, 21, 2, 0, 0, 0, time.UTC)
	e := toEvent(&discordgo.GuildScheduledEvent{
		ID:                 "e1",
		GuildID:            "g1",
		ChannelID:          "v1",
		Name:               "TSAY: Heat",
		ScheduledStartTime: start,
		Status:             discordgo.GuildScheduledEventStatusCanceled,
	})
	assert.Equal(t, club.EventCanceled, e.Status)
	assert.Equal(t, "https://discord.com/events/g1/e1", e.URL)
	assert.True(t, e.Start.Equal(start))
}

func TestChannelKind(t *testing.T) {
	assert.Equal(t, club.ChannelText, channelKind(discordgo.ChannelTypeGuildText))
	assert.Equal(t, club.ChannelText, channelKind(discordgo.ChannelTypeGuildNews))
	assert.Equal(t, club.ChannelVoice, channelKind(discordgo.ChannelTypeGuildVoice))
	assert.Equal(t, club.ChannelOther, channelKind(discordgo.ChannelTypeGuildCategory))
}

func TestWrapNotFound(t *testing.T) {
	notFound := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	err := wrap("get event", notFound)
	assert.ErrorIs(t, err, club.ErrNotFound)
	assert.ErrorIs(t, err, notFound)

	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	assert.NotErrorIs(t, wrap("get event", forbidden), club.ErrNotFound)
	assert.NotErrorIs(t, wrap("get event", errors.New("timeout")), club.ErrNotFound)
}

func TestDataURI(t *testing.T) {
	assert.Empty(t, dataURI(nil))
	png := []byte("\x89PNG\r\n\x1a\n0000")
	assert.True(t, strings.HasPrefix(dataURI(png), "data:image/png;base64,"))
}

func TestModalValues(t *testing.T) {
	components := []discordgo.MessageComponent{
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: "movie1", Value: "https://boxd.it/a"}}},
		&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: "movie2", Value: "https://boxd.it/b"}}},
	}
	assert.Equal(t, []string{"https://boxd.it/a", "https://boxd.it/b"}, modalValues(components))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Nick", displayName(&discordgo.Interaction{Member: &discordgo.Member{Nick: "Nick", User: &discordgo.User{Username: "u"}}}))
	assert.Equal(t, "Global", displayName(&discordgo.Interaction{Member: &discordgo.Member{User: &discordgo.User{Username: "u", GlobalName: "Global"}}}))
	assert.Equal(t, "u", displayName(&discordgo.Interaction{User: &discordgo.User{Username: "u"}}))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, logLevel(discordgo.LogError))
	assert.Equal(t, slog.LevelWarn, logLevel(discordgo.LogWarning))
	assert.Equal(t, slog.LevelInfo, logLevel(discordgo.LogInformational))
	assert.Equal(t, slog.LevelDebug, logLevel(discordgo.LogDebug))
}
