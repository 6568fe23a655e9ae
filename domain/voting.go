package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"tsay-bot/ballot"
	"tsay-bot/pkg/club"
	"tsay-bot/scanner"
)

// OpenBallot posts a ballot for the nominated films: a listing sent as the
// reply, followed by the poll message in the vote channel. Either every film
// is looked up or no ballot is posted.
func (d *Domain) OpenBallot(ctx context.Context, channelID, presenter string, urls []string, reply Reply) error {
	if channelID != d.vote.ID {
		return reply(ctx, "/ballot cannot be used in this channel.")
	}

	nominees := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if !scanner.IsEventSourceURL(u) {
			return reply(ctx, fmt.Sprintf("%s is not a film page.", u))
		}
		nominees = append(nominees, u)
	}
	if len(nominees) == 0 {
		return reply(ctx, "A ballot needs at least one film.")
	}
	if len(nominees) > ballot.MaxAnswers {
		return reply(ctx, fmt.Sprintf("A ballot can have at most %d films.", ballot.MaxAnswers))
	}

	movies := make([]*club.MovieInfo, len(nominees))
	var g errgroup.Group
	for i, u := range nominees {
		g.Go(func() error {
			info, err := d.fetcher.Fetch(ctx, u, false)
			if err != nil {
				return err
			}
			movies[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.logger.Warn("Failed to look up ballot nominee", "error", err)
		if rerr := reply(ctx, "Failed to look up one of the movies."); rerr != nil {
			d.logger.Warn("Failed to reply", "error", rerr)
		}
		return fmt.Errorf("fetch nominees: %w", err)
	}

	b := ballot.Compose(presenter, movies, d.pickEmoji(len(movies)))
	if err := reply(ctx, b.Listing); err != nil {
		return fmt.Errorf("send listing: %w", err)
	}
	msg, err := d.platform.SendPoll(ctx, d.vote.ID, b.Marker, b.Poll)
	if err != nil {
		return fmt.Errorf("send poll: %w", err)
	}
	d.logger.Info("Opened ballot", "message_id", msg.ID, "nominees", len(movies), "presenter", presenter)
	return nil
}

// CloseVoting finalizes the ballot in messageID, announces the winner and
// schedules the meeting for it.
func (d *Domain) CloseVoting(ctx context.Context, channelID, messageID string, reply Reply) error {
	if channelID != d.vote.ID {
		return reply(ctx, "This is not a valid channel for this interaction.")
	}

	msg, err := d.platform.Message(ctx, channelID, messageID)
	if err != nil {
		if rerr := reply(ctx, "An error occurred while finalizing the vote. You'll have to do it manually."); rerr != nil {
			d.logger.Warn("Failed to reply", "error", rerr)
		}
		return fmt.Errorf("get ballot message: %w", err)
	}

	url, title, err := ballot.ResolveWinner(msg.Content, msg.Poll)
	var verr *club.VotingError
	if errors.As(err, &verr) {
		d.logger.Warn("Couldn't determine the URL of the vote winner", "message_id", messageID, "reason", verr.Reason)
		return reply(ctx, verr.Reply)
	}
	if err != nil {
		return fmt.Errorf("resolve winner: %w", err)
	}
	d.logger.Info("Vote winner", "message_id", messageID, "title", title, "url", url)

	if err := reply(ctx, fmt.Sprintf("And the winner is... ~~La La Land~~ %s! I'll proceed to make the club event now.", title)); err != nil {
		d.logger.Warn("Failed to announce winner", "error", err)
	}
	if !msg.Poll.Finalized {
		if err := d.platform.EndPoll(ctx, channelID, messageID); err != nil {
			d.logger.Warn("Failed to end poll", "message_id", messageID, "error", err)
		}
	}

	info, err := d.fetcher.Fetch(ctx, url, true)
	if err != nil {
		return fmt.Errorf("fetch winner: %w", err)
	}
	if _, err := d.ScheduleEvent(ctx, info); err != nil {
		return err
	}
	return nil
}

// AddReactions reacts to a message with every emoji its text contains, in
// order. The reactions are added in the background; the number queued is
// returned. Only the control and vote channels are served.
func (d *Domain) AddReactions(ctx context.Context, channelID, messageID, text string) int {
	if channelID != d.control.ID && channelID != d.vote.ID {
		return 0
	}
	tokens := scanner.ExtractEmoji(text)
	if len(tokens) == 0 {
		return 0
	}

	ctx = context.WithoutCancel(ctx)
	d.tasks.Add(1)
	go func() {
		defer d.tasks.Done()
		for _, token := range tokens {
			if err := d.platform.AddReaction(ctx, channelID, messageID, scanner.ReactionID(token)); err != nil {
				d.logger.Warn("Failed to add reaction", "message_id", messageID, "emoji", token, "error", err)
			}
		}
	}()
	return len(tokens)
}
