// Package club contains the core domain types shared by the bot's packages.
package club

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by platform lookups when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Session is a scheduled club meeting that still has reminders pending.
type Session struct {
	Start         time.Time `json:"start,omitzero"` // Event start as last observed
	ID            string    `json:"id"`             // Scheduled event ID on the platform
	Title         string    `json:"title"`          // Display title of the selected film
	ReminderCount int       `json:"reminder_count"` // 2 until the two-day reminder fires, then 1
}

// InitialReminderCount is the reminder count of a freshly scheduled session.
const InitialReminderCount = 2

// MovieInfo describes a film scraped from a review page.
type MovieInfo struct {
	Title string
	Year  string // Empty when the page did not expose a release year
	URL   string
	Image []byte // Backdrop image, nil when unavailable or not requested
}

func (m *MovieInfo) String() string {
	if m.Year == "" {
		return m.Title
	}
	return fmt.Sprintf("%s (%s)", m.Title, m.Year)
}

// ChannelKind classifies platform channels.
type ChannelKind int

const (
	ChannelOther ChannelKind = iota
	ChannelText
	ChannelVoice
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelText:
		return "text"
	case ChannelVoice:
		return "voice"
	default:
		return "other"
	}
}

// Guild is a community space.
type Guild struct {
	ID   string
	Name string
}

// Channel is a guild channel.
type Channel struct {
	ID      string
	GuildID string
	Name    string
	Kind    ChannelKind
}

// Role is a guild role that can be mentioned.
type Role struct {
	ID      string
	GuildID string
	Name    string
}

// Mention renders the role mention markup.
func (r *Role) Mention() string {
	return "<@&" + r.ID + ">"
}

// EventStatus is the lifecycle status of a scheduled event.
type EventStatus int

const (
	EventScheduled EventStatus = iota + 1
	EventActive
	EventCompleted
	EventCanceled
)

func (s EventStatus) String() string {
	switch s {
	case EventScheduled:
		return "scheduled"
	case EventActive:
		return "active"
	case EventCompleted:
		return "completed"
	case EventCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Event is a guild scheduled event.
type Event struct {
	Start     time.Time
	ID        string
	GuildID   string
	ChannelID string // Venue; empty for events not attached to a channel
	Name      string
	URL       string
	Status    EventStatus
}

// EventParams describes a scheduled event to create.
type EventParams struct {
	Start     time.Time
	Name      string
	ChannelID string
	Image     []byte
}

// Message is a channel message, optionally carrying a poll.
type Message struct {
	Poll      *Poll
	ID        string
	ChannelID string
	GuildID   string
	Content   string
}

// Poll is a poll attached to a message, with its current results.
type Poll struct {
	Question  string
	Answers   []PollAnswer
	Finalized bool
}

// PollAnswer is a poll option. Votes is ignored when creating a poll.
type PollAnswer struct {
	Text  string
	Emoji string
	Votes int
}

// PollSpec describes a poll to create.
type PollSpec struct {
	Question string
	Answers  []PollAnswer
	Duration time.Duration
}
