// Package discord connects the bot to Discord through discordgo.
package discord

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"tsay-bot/pkg/club"
)

// Client implements the platform operations the domains need.
type Client struct {
	session *discordgo.Session
	logger  *slog.Logger
}

// NewClient wraps an authenticated discordgo session.
func NewClient(session *discordgo.Session, logger *slog.Logger) *Client {
	return &Client{session: session, logger: logger}
}

// Guild returns a guild by ID.
func (c *Client) Guild(ctx context.Context, guildID string) (*club.Guild, error) {
	g, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("get guild", err)
	}
	return &club.Guild{ID: g.ID, Name: g.Name}, nil
}

// Channel returns a channel by ID.
func (c *Client) Channel(ctx context.Context, channelID string) (*club.Channel, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("get channel", err)
	}
	return &club.Channel{ID: ch.ID, GuildID: ch.GuildID, Name: ch.Name, Kind: channelKind(ch.Type)}, nil
}

// Role returns a guild role by ID.
func (c *Client) Role(ctx context.Context, guildID, roleID string) (*club.Role, error) {
	roles, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("get roles", err)
	}
	for _, r := range roles {
		if r.ID == roleID {
			return &club.Role{ID: r.ID, GuildID: guildID, Name: r.Name}, nil
		}
	}
	return nil, fmt.Errorf("get role %s: %w", roleID, club.ErrNotFound)
}

// SendMessage posts a plain message.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*club.Message, error) {
	m, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("send message", err)
	}
	return toMessage(m), nil
}

// SendPoll posts content with a poll attached. Link previews are suppressed.
func (c *Client) SendPoll(ctx context.Context, channelID, content string, poll club.PollSpec) (*club.Message, error) {
	m, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		Flags:   discordgo.MessageFlagsSuppressEmbeds,
		Poll:    newPoll(poll),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("send poll", err)
	}
	return toMessage(m), nil
}

// Message fetches a message including its poll results.
func (c *Client) Message(ctx context.Context, channelID, messageID string) (*club.Message, error) {
	m, err := c.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("get message", err)
	}
	return toMessage(m), nil
}

// EndPoll closes voting on a message's poll.
func (c *Client) EndPoll(_ context.Context, channelID, messageID string) error {
	if _, err := c.session.PollExpire(channelID, messageID); err != nil {
		return wrap("end poll", err)
	}
	return nil
}

// CreateEvent creates a guild-only voice channel event.
func (c *Client) CreateEvent(ctx context.Context, guildID string, params club.EventParams) (*club.Event, error) {
	start := params.Start.UTC()
	e, err := c.session.GuildScheduledEventCreate(guildID, &discordgo.GuildScheduledEventParams{
		Name:               params.Name,
		ChannelID:          params.ChannelID,
		ScheduledStartTime: &start,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		EntityType:         discordgo.GuildScheduledEventEntityTypeVoice,
		Image:              dataURI(params.Image),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("create event", err)
	}
	return toEvent(e), nil
}

// Event fetches a scheduled event. A deleted event yields club.ErrNotFound.
func (c *Client) Event(ctx context.Context, guildID, eventID string) (*club.Event, error) {
	e, err := c.session.GuildScheduledEvent(guildID, eventID, false, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap("get event", err)
	}
	return toEvent(e), nil
}

// AddReaction reacts to a message with a unicode emoji or a "name:id" custom emoji.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emojiID string) error {
	if err := c.session.MessageReactionAdd(channelID, messageID, emojiID, discordgo.WithContext(ctx)); err != nil {
		return wrap("add reaction", err)
	}
	return nil
}

// wrap adds context to a REST error, translating 404 responses into club.ErrNotFound.
func wrap(op string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w: %w", op, club.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNotFound(err error) bool {
	var rerr *discordgo.RESTError
	return errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound
}

func channelKind(t discordgo.ChannelType) club.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return club.ChannelText
	case discordgo.ChannelTypeGuildVoice:
		return club.ChannelVoice
	default:
		return club.ChannelOther
	}
}

func toEvent(e *discordgo.GuildScheduledEvent) *club.Event {
	return &club.Event{
		ID:        e.ID,
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		Name:      e.Name,
		Start:     e.ScheduledStartTime,
		Status:    club.EventStatus(e.Status),
		URL:       EventURL(e.GuildID, e.ID),
	}
}

// EventURL returns the shareable link of a scheduled event.
func EventURL(guildID, eventID string) string {
	return fmt.Sprintf("https://discord.com/events/%s/%s", guildID, eventID)
}

// dataURI encodes an image for upload, or returns "" for no image.
func dataURI(image []byte) string {
	if len(image) == 0 {
		return ""
	}
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}
