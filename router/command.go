package router

import (
	"context"
	"fmt"

	"tsay-bot/domain"
	"tsay-bot/pkg/club"
)

// Command is a request routed to a domain. The set of commands is closed;
// Dispatch handles each kind.
type Command interface {
	guild() string
}

// ScheduleFromURL asks to schedule a meeting for the film linked in a control
// channel message.
type ScheduleFromURL struct {
	GuildID   string
	ChannelID string
	Text      string
}

// OpenBallot asks to post a ballot for the nominated films.
type OpenBallot struct {
	GuildID   string
	ChannelID string
	Presenter string
	URLs      []string
}

// CloseVoting asks to end the ballot in a message and schedule its winner.
type CloseVoting struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// AddReactions asks to react to a message with the emoji it contains.
type AddReactions struct {
	GuildID   string
	ChannelID string
	MessageID string
	Text      string
}

// EventUpdated reports an edit to a scheduled event.
type EventUpdated struct {
	Event *club.Event
}

func (c ScheduleFromURL) guild() string { return c.GuildID }
func (c OpenBallot) guild() string      { return c.GuildID }
func (c CloseVoting) guild() string     { return c.GuildID }
func (c AddReactions) guild() string    { return c.GuildID }
func (c EventUpdated) guild() string    { return c.Event.GuildID }

// Dispatch routes cmd to the domain serving its guild. Commands from guilds
// without a domain are ignored. reply may be nil for commands that never answer.
func (r *Registry) Dispatch(ctx context.Context, cmd Command, reply domain.Reply) error {
	d, ok := r.Resolve(cmd.guild())
	if !ok {
		r.logger.Debug("Ignoring command from unknown guild", "guild_id", cmd.guild())
		return nil
	}

	switch c := cmd.(type) {
	case ScheduleFromURL:
		return d.HandleControlMessage(ctx, c.ChannelID, c.Text, reply)
	case OpenBallot:
		return d.OpenBallot(ctx, c.ChannelID, c.Presenter, c.URLs, reply)
	case CloseVoting:
		return d.CloseVoting(ctx, c.ChannelID, c.MessageID, reply)
	case AddReactions:
		d.AddReactions(ctx, c.ChannelID, c.MessageID, c.Text)
		return nil
	case EventUpdated:
		return d.HandleEventUpdate(ctx, c.Event)
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
}
