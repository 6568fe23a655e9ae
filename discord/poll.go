package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"tsay-bot/pkg/club"
)

func newPoll(spec club.PollSpec) *discordgo.Poll {
	p := &discordgo.Poll{
		Question: discordgo.PollMedia{Text: spec.Question},
		Duration: int(spec.Duration / time.Hour),
	}
	for _, a := range spec.Answers {
		media := &discordgo.PollMedia{Text: a.Text}
		if a.Emoji != "" {
			media.Emoji = &discordgo.ComponentEmoji{Name: a.Emoji}
		}
		p.Answers = append(p.Answers, discordgo.PollAnswer{Media: media})
	}
	return p
}

// toMessage converts a message, pairing poll answers with their vote counts.
func toMessage(m *discordgo.Message) *club.Message {
	msg := &club.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
	if m.Poll == nil {
		return msg
	}

	counts := make(map[int]int)
	poll := &club.Poll{Question: m.Poll.Question.Text}
	if m.Poll.Results != nil {
		poll.Finalized = m.Poll.Results.Finalized
		for _, c := range m.Poll.Results.AnswerCounts {
			if c != nil {
				counts[c.ID] = c.Count
			}
		}
	}
	for _, a := range m.Poll.Answers {
		var answer club.PollAnswer
		if a.Media != nil {
			answer.Text = a.Media.Text
			if a.Media.Emoji != nil {
				answer.Emoji = a.Media.Emoji.Name
			}
		}
		answer.Votes = counts[a.AnswerID]
		poll.Answers = append(poll.Answers, answer)
	}
	msg.Poll = poll
	return msg
}
