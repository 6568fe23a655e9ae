package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"tsay-bot/domain"
	"tsay-bot/router"
)

const (
	ballotCommand  = "ballot"
	ballotModal    = "ballot_nominations"
	closeCommand   = "End Voting"
	nominees       = 4
	handlerTimeout = 2 * time.Minute
)

// Registry is the part of the router the gateway handlers use.
type Registry interface {
	Dispatch(ctx context.Context, cmd router.Command, reply domain.Reply) error
	ResolveChannel(channelID string) (*domain.Domain, bool)
	Domains() []*domain.Domain
}

// Bot turns gateway events into router commands.
type Bot struct {
	ctx      context.Context
	session  *discordgo.Session
	registry Registry
	logger   *slog.Logger
}

// NewBot creates a bot. Handlers run with ctx as their parent context.
func NewBot(ctx context.Context, session *discordgo.Session, registry Registry, logger *slog.Logger) *Bot {
	return &Bot{ctx: ctx, session: session, registry: registry, logger: logger}
}

// Intents are the gateway intents the bot needs.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildScheduledEvents

// Start registers the gateway handlers and the application commands of every domain's guild.
func (b *Bot) Start() error {
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onScheduledEventUpdate)

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        ballotCommand,
			Description: "Nominate movies for club members to vote on",
			Type:        discordgo.ChatApplicationCommand,
		},
		{
			Name: closeCommand,
			Type: discordgo.MessageApplicationCommand,
		},
	}
	appID := b.session.State.User.ID
	for _, d := range b.registry.Domains() {
		if _, err := b.session.ApplicationCommandBulkOverwrite(appID, d.GuildID(), commands); err != nil {
			return fmt.Errorf("register commands for domain %q: %w", d.Name(), err)
		}
		b.logger.Info("Registered commands", "domain", d.Name(), "guild_id", d.GuildID())
	}
	return nil
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	d, ok := b.registry.ResolveChannel(m.ChannelID)
	if !ok {
		return
	}
	if !slices.ContainsFunc(m.Mentions, func(u *discordgo.User) bool { return u.ID == s.State.User.ID }) {
		b.logger.Info("Skipping message that does not mention the bot", "channel_id", m.ChannelID)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()

	var cmd router.Command
	if m.ChannelID == d.ControlChannelID() {
		cmd = router.ScheduleFromURL{GuildID: m.GuildID, ChannelID: m.ChannelID, Text: m.Content}
	} else {
		cmd = router.AddReactions{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.ID, Text: m.Content}
	}
	reply := func(ctx context.Context, text string) error {
		_, err := s.ChannelMessageSendReply(m.ChannelID, text, m.Reference(), discordgo.WithContext(ctx))
		return err
	}
	if err := b.registry.Dispatch(ctx, cmd, reply); err != nil {
		b.logger.Error("Failed to handle message", "channel_id", m.ChannelID, "message_id", m.ID, "error", err)
	}
}

func (b *Bot) onScheduledEventUpdate(_ *discordgo.Session, e *discordgo.GuildScheduledEventUpdate) {
	if e.GuildScheduledEvent == nil {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()

	if err := b.registry.Dispatch(ctx, router.EventUpdated{Event: toEvent(e.GuildScheduledEvent)}, nil); err != nil {
		b.logger.Error("Failed to handle event update", "event_id", e.ID, "error", err)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()

	var err error
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		b.logger.Info("Received command", "command", data.Name, "user_id", userID(i.Interaction), "channel_id", i.ChannelID)
		switch data.Name {
		case ballotCommand:
			err = b.openNominations(ctx, s, i.Interaction)
		case closeCommand:
			err = b.closeVoting(ctx, s, i.Interaction, data.TargetID)
		}
	case discordgo.InteractionModalSubmit:
		if i.ModalSubmitData().CustomID == ballotModal {
			err = b.submitNominations(ctx, s, i.Interaction)
		}
	}
	if err != nil {
		b.logger.Error("Failed to handle interaction", "interaction_id", i.ID, "error", err)
	}
}

// openNominations answers /ballot with the nomination form.
func (b *Bot) openNominations(ctx context.Context, s *discordgo.Session, i *discordgo.Interaction) error {
	if d, ok := b.registry.ResolveChannel(i.ChannelID); !ok || d.VoteChannelID() != i.ChannelID {
		return respond(ctx, s, i, "/ballot cannot be used in this channel.")
	}

	rows := make([]discordgo.MessageComponent, 0, nominees)
	for n := 1; n <= nominees; n++ {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID: fmt.Sprintf("movie%d", n),
				Label:    fmt.Sprintf("%d:", n),
				Style:    discordgo.TextInputShort,
			},
		}})
	}
	return s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   ballotModal,
			Title:      "Nominations",
			Components: rows,
		},
	}, discordgo.WithContext(ctx))
}

func (b *Bot) submitNominations(ctx context.Context, s *discordgo.Session, i *discordgo.Interaction) error {
	urls := modalValues(i.ModalSubmitData().Components)
	b.logger.Info("Nominations submitted", "urls", strings.Join(urls, ", "))

	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("defer response: %w", err)
	}
	return b.registry.Dispatch(ctx, router.OpenBallot{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Presenter: displayName(i),
		URLs:      urls,
	}, followup(s, i, 0))
}

func (b *Bot) closeVoting(ctx context.Context, s *discordgo.Session, i *discordgo.Interaction, messageID string) error {
	if err := s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("defer response: %w", err)
	}
	return b.registry.Dispatch(ctx, router.CloseVoting{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		MessageID: messageID,
	}, followup(s, i, discordgo.MessageFlagsEphemeral))
}

// respond answers an interaction immediately with an ephemeral message.
func respond(ctx context.Context, s *discordgo.Session, i *discordgo.Interaction, text string) error {
	return s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
}

// followup replies to a deferred interaction.
func followup(s *discordgo.Session, i *discordgo.Interaction, flags discordgo.MessageFlags) domain.Reply {
	return func(ctx context.Context, text string) error {
		_, err := s.FollowupMessageCreate(i, true, &discordgo.WebhookParams{Content: text, Flags: flags}, discordgo.WithContext(ctx))
		return err
	}
}

// modalValues returns the text input values of a submitted form, in order.
func modalValues(components []discordgo.MessageComponent) []string {
	var values []string
	for _, c := range components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values = append(values, input.Value)
			}
		}
	}
	return values
}

func displayName(i *discordgo.Interaction) string {
	if i.Member != nil {
		if i.Member.Nick != "" {
			return i.Member.Nick
		}
		if i.Member.User != nil {
			return userName(i.Member.User)
		}
	}
	if i.User != nil {
		return userName(i.User)
	}
	return "Someone"
}

func userName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func userID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
