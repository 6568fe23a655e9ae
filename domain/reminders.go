package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tsay-bot/pkg/club"
)

// maxLookups bounds the concurrent event lookups of a reminder pass.
const maxLookups = 8

// verdict is the reminder pass's decision for one session.
type verdict struct {
	session      club.Session
	announcement string
	kind         string // Metrics label of the announcement
	keep         bool
}

// SendReminders runs one reminder pass: every stored session is checked
// against its scheduled event, due reminders are posted as a single batched
// announcement, and the store is rewritten with the sessions that survive.
//
// If the announcement cannot be posted the store is left untouched, so the
// next pass retries the same reminders.
func (d *Domain) SendReminders(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	logger := d.logger.With("run_id", uuid.NewString())
	started := time.Now()
	defer func() {
		d.metrics.PassDuration.WithLabelValues(d.name).Observe(time.Since(started).Seconds())
	}()

	sessions, err := d.store.ReadAll(ctx, d.name)
	if err != nil {
		d.metrics.ReminderPasses.WithLabelValues(d.name, "failure").Inc()
		return fmt.Errorf("read sessions: %w", err)
	}
	logger.Info("Starting reminder pass", "sessions", len(sessions))

	now := d.now()
	verdicts := make([]verdict, len(sessions))
	var g errgroup.Group
	g.SetLimit(maxLookups)
	for i, sess := range sessions {
		g.Go(func() error {
			verdicts[i] = d.evaluate(ctx, logger, sess, now)
			return nil
		})
	}
	_ = g.Wait()

	var texts, kinds []string
	survivors := make([]club.Session, 0, len(sessions))
	for _, v := range verdicts {
		if v.announcement != "" {
			texts = append(texts, v.announcement)
			kinds = append(kinds, v.kind)
		}
		if v.keep {
			survivors = append(survivors, v.session)
		}
	}

	if len(texts) > 0 {
		if _, err := d.platform.SendMessage(ctx, d.announce.ID, d.batch(texts)); err != nil {
			logger.Error("Failed to send reminders", "count", len(texts), "error", err)
			d.metrics.ReminderPasses.WithLabelValues(d.name, "failure").Inc()
			return fmt.Errorf("send reminders: %w", err)
		}
		for _, kind := range kinds {
			d.metrics.Announcements.WithLabelValues(d.name, kind).Inc()
		}
	}

	if err := d.store.WriteAll(ctx, d.name, survivors); err != nil {
		d.metrics.ReminderPasses.WithLabelValues(d.name, "failure").Inc()
		return fmt.Errorf("write sessions: %w", err)
	}
	d.metrics.Sessions.WithLabelValues(d.name).Set(float64(len(survivors)))
	d.metrics.ReminderPasses.WithLabelValues(d.name, "success").Inc()
	logger.Info("Reminder pass completed",
		"announcements", len(texts),
		"kept", len(survivors),
		"dropped", len(sessions)-len(survivors),
		"duration", time.Since(started))
	return nil
}

// evaluate decides what happens to one session. Lookup failures other than
// not-found keep the session as it is.
func (d *Domain) evaluate(ctx context.Context, logger *slog.Logger, sess club.Session, now time.Time) verdict {
	logger = logger.With("event_id", sess.ID, "title", sess.Title)
	keep := verdict{session: sess, keep: true}

	event, err := d.platform.Event(ctx, d.guild.ID, sess.ID)
	if errors.Is(err, club.ErrNotFound) {
		logger.Warn("Failed to find scheduled event, dropping session")
		return verdict{}
	}
	if err != nil {
		logger.Warn("Failed to look up scheduled event, keeping session", "error", err)
		return keep
	}
	if event.Status != club.EventScheduled {
		logger.Info("Event is no longer scheduled, dropping session", "status", event.Status)
		return verdict{}
	}
	if event.ChannelID != d.venue.ID {
		logger.Debug("Event is not in the club venue", "channel_id", event.ChannelID)
		return keep
	}

	days := DaysUntil(event.Start, now)
	logger.Debug("Evaluated session", "days", days, "reminder_count", sess.ReminderCount)
	switch {
	case days < 0:
		return verdict{}
	case days == 0:
		return verdict{
			announcement: fmt.Sprintf("We are meeting tonight at 10:00 Eastern (7:00 Pacific) to discuss %s.", sess.Title),
			kind:         "day_of",
		}
	case days <= 2 && sess.ReminderCount >= club.InitialReminderCount:
		sess.ReminderCount = 1
		return verdict{
			session:      sess,
			announcement: fmt.Sprintf("We will be meeting on %s to discuss %s.", event.Start.In(club.Eastern).Weekday(), sess.Title),
			kind:         "two_day",
			keep:         true,
		}
	default:
		return keep
	}
}

// batch joins the due reminders into one announcement that mentions the role once.
func (d *Domain) batch(texts []string) string {
	if len(texts) == 1 {
		return d.role.Mention() + " " + texts[0]
	}
	var b strings.Builder
	b.WriteString(d.role.Mention())
	for _, text := range texts {
		b.WriteString("\n- ")
		b.WriteString(text)
	}
	return b.String()
}

// HandleEventUpdate reacts to an edit of a scheduled event. When a tracked
// meeting moves, members are told the new date and its reminders start over.
func (d *Domain) HandleEventUpdate(ctx context.Context, event *club.Event) error {
	if event.GuildID != d.guild.ID {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sessions, err := d.store.ReadAll(ctx, d.name)
	if err != nil {
		return fmt.Errorf("read sessions: %w", err)
	}
	i := -1
	for j := range sessions {
		if sessions[j].ID == event.ID {
			i = j
			break
		}
	}
	if i < 0 {
		return nil
	}
	// Cancellations and venue changes are settled by the next reminder pass.
	if event.Status != club.EventScheduled || event.ChannelID != d.venue.ID {
		return nil
	}
	sess := &sessions[i]
	if sess.Start.Equal(event.Start) {
		return nil
	}

	d.logger.Info("Event rescheduled", "event_id", event.ID, "title", sess.Title,
		"old_start", sess.Start.Format(time.RFC3339), "new_start", event.Start.Format(time.RFC3339))
	sess.Start = event.Start
	sess.ReminderCount = club.InitialReminderCount

	text := fmt.Sprintf("%s The meeting to discuss %s has moved to %s.",
		d.role.Mention(), sess.Title, event.Start.In(club.Eastern).Format(dateLayout))
	if _, err := d.platform.SendMessage(ctx, d.announce.ID, text); err != nil {
		d.logger.Error("Failed to announce reschedule", "event_id", event.ID, "error", err)
	} else {
		d.metrics.Announcements.WithLabelValues(d.name, "reschedule").Inc()
	}

	if err := d.store.WriteAll(ctx, d.name, sessions); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	return nil
}

// DaysUntil returns the whole days from now until start, rounded down, measured
// on Eastern wall clocks so that a daylight saving change does not shift a day.
func DaysUntil(start, now time.Time) int {
	diff := wallClock(start).Sub(wallClock(now))
	days := int(diff / (24 * time.Hour))
	if diff < 0 && diff%(24*time.Hour) != 0 {
		days--
	}
	return days
}

func wallClock(t time.Time) time.Time {
	t = t.In(club.Eastern)
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
