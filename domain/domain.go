// Package domain runs one club: its commands, scheduled meetings and reminders.
package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tsay-bot/ballot"
	"tsay-bot/metrics"
	"tsay-bot/pkg/club"
	"tsay-bot/scanner"
)

const (
	eventPrefix = "TSAY: "
	meetingHour = 22
	dateLayout  = "Monday, January _2"
)

// Platform is the subset of the chat platform a domain talks to.
type Platform interface {
	SendMessage(ctx context.Context, channelID, content string) (*club.Message, error)
	SendPoll(ctx context.Context, channelID, content string, poll club.PollSpec) (*club.Message, error)
	Message(ctx context.Context, channelID, messageID string) (*club.Message, error)
	EndPoll(ctx context.Context, channelID, messageID string) error
	CreateEvent(ctx context.Context, guildID string, params club.EventParams) (*club.Event, error)
	Event(ctx context.Context, guildID, eventID string) (*club.Event, error)
	AddReaction(ctx context.Context, channelID, messageID, emojiID string) error
}

// Fetcher retrieves film metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string, withImage bool) (*club.MovieInfo, error)
}

// SessionStore persists session lists per namespace.
type SessionStore interface {
	ReadAll(ctx context.Context, namespace string) ([]club.Session, error)
	WriteAll(ctx context.Context, namespace string, sessions []club.Session) error
}

// Reply sends a short user-visible response to whoever issued a command.
type Reply func(ctx context.Context, text string) error

// Config holds everything a Domain is built from. The channels and role are
// expected to be resolved and validated already.
type Config struct {
	Name            string
	Guild           club.Guild
	ControlChannel  club.Channel
	VoteChannel     club.Channel
	AnnounceChannel club.Channel
	Venue           club.Channel
	NotifyRole      club.Role

	Platform Platform
	Fetcher  Fetcher
	Store    SessionStore
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	Now       func() time.Time      // Defaults to time.Now
	PickEmoji func(n int) []string // Defaults to ballot.SampleEmoji
}

// Domain is one community's club: its channel bindings and its sessions.
//
// Every read-modify-write of the session store happens under mu, so at most
// one schedule, reminder pass or reschedule is in flight per domain.
type Domain struct {
	name     string
	guild    club.Guild
	control  club.Channel
	vote     club.Channel
	announce club.Channel
	venue    club.Channel
	role     club.Role

	platform  Platform
	fetcher   Fetcher
	store     SessionStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	pickEmoji func(n int) []string

	mu    sync.Mutex
	tasks sync.WaitGroup
}

// New creates a new domain.
func New(cfg *Config) *Domain {
	d := &Domain{
		name:      cfg.Name,
		guild:     cfg.Guild,
		control:   cfg.ControlChannel,
		vote:      cfg.VoteChannel,
		announce:  cfg.AnnounceChannel,
		venue:     cfg.Venue,
		role:      cfg.NotifyRole,
		platform:  cfg.Platform,
		fetcher:   cfg.Fetcher,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With("domain", cfg.Name),
		now:       cfg.Now,
		pickEmoji: cfg.PickEmoji,
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.pickEmoji == nil {
		d.pickEmoji = ballot.SampleEmoji
	}
	return d
}

// Name returns the domain's configured name, which is also its storage namespace.
func (d *Domain) Name() string { return d.name }

// GuildID returns the ID of the community space the domain serves.
func (d *Domain) GuildID() string { return d.guild.ID }

// ControlChannelID returns the operator channel's ID.
func (d *Domain) ControlChannelID() string { return d.control.ID }

// VoteChannelID returns the voting channel's ID.
func (d *Domain) VoteChannelID() string { return d.vote.ID }

// HandleControlMessage schedules a meeting for the film linked in an operator
// message. Messages outside the control channel are ignored.
func (d *Domain) HandleControlMessage(ctx context.Context, channelID, text string, reply Reply) error {
	if channelID != d.control.ID {
		return nil
	}
	d.logger.Debug("Control message", "content", text)

	content := stripMention(text)
	if !scanner.IsEventSourceURL(content) {
		d.logger.Warn("Control message did not contain a URL", "content", content)
		return reply(ctx, "Invalid URL")
	}

	info, err := d.fetcher.Fetch(ctx, content, true)
	if err != nil {
		return fmt.Errorf("fetch film: %w", err)
	}
	_, err = d.ScheduleEvent(ctx, info)
	return err
}

// ScheduleEvent creates the meeting event for a film, invites the members and
// records a session for the reminders. Nothing is recorded if the event cannot
// be created.
func (d *Domain) ScheduleEvent(ctx context.Context, info *club.MovieInfo) (*club.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := NextMeeting(d.now())
	event, err := d.platform.CreateEvent(ctx, d.guild.ID, club.EventParams{
		Name:      EventName(info),
		ChannelID: d.venue.ID,
		Start:     start,
		Image:     info.Image,
	})
	if err != nil {
		d.logger.Error("Failed to create event", "title", info.Title, "start", start.Format(time.RFC3339), "error", err)
		d.metrics.EventsScheduled.WithLabelValues(d.name, "failure").Inc()
		return nil, fmt.Errorf("create event: %w", err)
	}
	d.metrics.EventsScheduled.WithLabelValues(d.name, "success").Inc()
	if !event.Start.IsZero() {
		start = event.Start
	}
	d.logger.Info("Created event", "event_id", event.ID, "title", info.Title, "start", start.Format(time.RFC3339))

	invite := fmt.Sprintf("%s You are all cordially invited to [a club meeting](%s) on %s to discuss %s. As always, attendance is optional.",
		d.role.Mention(), event.URL, start.In(club.Eastern).Format(dateLayout), info.Title)
	if _, err := d.platform.SendMessage(ctx, d.announce.ID, invite); err != nil {
		// The event exists, so the session is still worth reminding about.
		d.logger.Error("Failed to send invitation", "event_id", event.ID, "error", err)
	} else {
		d.metrics.Announcements.WithLabelValues(d.name, "invite").Inc()
	}

	sess := club.Session{
		ID:            event.ID,
		Title:         info.Title,
		ReminderCount: club.InitialReminderCount,
		Start:         start,
	}
	sessions, err := d.store.ReadAll(ctx, d.name)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	sessions = append(sessions, sess)
	if err := d.store.WriteAll(ctx, d.name, sessions); err != nil {
		return nil, fmt.Errorf("write sessions: %w", err)
	}
	d.metrics.Sessions.WithLabelValues(d.name).Set(float64(len(sessions)))
	return &sess, nil
}

// Wait blocks until background work started by the domain has finished.
func (d *Domain) Wait() {
	d.tasks.Wait()
}

// NextMeeting returns the start of the meeting scheduled at now: 22:00 Eastern
// on the Wednesday of the week after next.
func NextMeeting(now time.Time) time.Time {
	local := now.In(club.Eastern)
	weekday := (int(local.Weekday()) + 6) % 7 // Monday is 0
	offset := 14 - (weekday - 2)
	y, m, day := local.Date()
	return time.Date(y, m, day+offset, meetingHour, 0, 0, 0, club.Eastern)
}

// EventName returns the scheduled event name for a film.
func EventName(info *club.MovieInfo) string {
	return eventPrefix + info.String()
}

// stripMention drops the leading mention token and surrounding whitespace.
func stripMention(text string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(text), " ")
	return strings.TrimSpace(rest)
}
