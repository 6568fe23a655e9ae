// Package router loads the configured domains and routes platform events to them.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"tsay-bot/config"
	"tsay-bot/domain"
	"tsay-bot/metrics"
	"tsay-bot/pkg/club"
)

// Directory looks up the platform entities a domain is configured with.
type Directory interface {
	Guild(ctx context.Context, guildID string) (*club.Guild, error)
	Channel(ctx context.Context, channelID string) (*club.Channel, error)
	Role(ctx context.Context, guildID, roleID string) (*club.Role, error)
}

// Deps are the collaborators shared by every domain.
type Deps struct {
	Directory Directory
	Platform  domain.Platform
	Fetcher   domain.Fetcher
	Store     domain.SessionStore
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Registry holds the loaded domains, indexed by guild and by command channel.
type Registry struct {
	logger    *slog.Logger
	byGuild   map[string]*domain.Domain
	byChannel map[string]*domain.Domain
	domains   []*domain.Domain
}

// Load resolves and validates every configured domain. Domains are loaded in
// name order so that errors are reported deterministically.
func Load(ctx context.Context, domains map[string]config.Domain, deps *Deps) (*Registry, error) {
	r := &Registry{
		logger:    deps.Logger,
		byGuild:   make(map[string]*domain.Domain, len(domains)),
		byChannel: make(map[string]*domain.Domain, 2*len(domains)),
	}

	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		d, err := load(ctx, name, domains[name], deps)
		if err != nil {
			return nil, err
		}
		if other, ok := r.byGuild[d.GuildID()]; ok {
			return nil, &club.ConfigError{
				Kind:   club.ConfigDuplicateDomain,
				Domain: name,
				Detail: fmt.Sprintf("guild %s is already served by domain %q", d.GuildID(), other.Name()),
			}
		}
		for _, ch := range []string{d.ControlChannelID(), d.VoteChannelID()} {
			if other, ok := r.byChannel[ch]; ok && other != d {
				return nil, &club.ConfigError{
					Kind:   club.ConfigDuplicateDomain,
					Domain: name,
					Detail: fmt.Sprintf("channel %s is already a control or vote channel of domain %q", ch, other.Name()),
				}
			}
			r.byChannel[ch] = d
		}
		r.byGuild[d.GuildID()] = d
		r.domains = append(r.domains, d)
		deps.Logger.Info("Loaded domain", "domain", name, "guild_id", d.GuildID())
	}
	return r, nil
}

func load(ctx context.Context, name string, cfg config.Domain, deps *Deps) (*domain.Domain, error) {
	guild, err := deps.Directory.Guild(ctx, cfg.Guild)
	if err != nil {
		return nil, missing(name, "guild", cfg.Guild, err)
	}

	channels := []struct {
		label string
		id    string
		kind  club.ChannelKind
		out   *club.Channel
	}{
		{label: "control channel", id: cfg.ControlChannel, kind: club.ChannelText},
		{label: "vote channel", id: cfg.VoteChannel, kind: club.ChannelText},
		{label: "announcement channel", id: cfg.AnnounceChannel, kind: club.ChannelText},
		{label: "event channel", id: cfg.EventChannel, kind: club.ChannelVoice},
	}
	for i := range channels {
		c := &channels[i]
		ch, err := deps.Directory.Channel(ctx, c.id)
		if err != nil {
			return nil, missing(name, c.label, c.id, err)
		}
		if ch.Kind != c.kind {
			return nil, &club.ConfigError{
				Kind:   club.ConfigWrongChannelType,
				Domain: name,
				Detail: fmt.Sprintf("%s must be a %s channel, got %s (ID: %s)", c.label, c.kind, ch.Kind, c.id),
			}
		}
		if ch.GuildID != guild.ID {
			return nil, foreign(name, c.label, c.id, guild.ID)
		}
		c.out = ch
	}

	role, err := deps.Directory.Role(ctx, guild.ID, cfg.MemberRole)
	if err != nil {
		return nil, missing(name, "member role", cfg.MemberRole, err)
	}
	if role.GuildID != guild.ID {
		return nil, foreign(name, "member role", cfg.MemberRole, guild.ID)
	}

	return domain.New(&domain.Config{
		Name:            name,
		Guild:           *guild,
		ControlChannel:  *channels[0].out,
		VoteChannel:     *channels[1].out,
		AnnounceChannel: *channels[2].out,
		Venue:           *channels[3].out,
		NotifyRole:      *role,
		Platform:        deps.Platform,
		Fetcher:         deps.Fetcher,
		Store:           deps.Store,
		Metrics:         deps.Metrics,
		Logger:          deps.Logger,
		Now:             deps.Now,
	}), nil
}

func missing(domainName, label, id string, err error) error {
	return &club.ConfigError{
		Kind:   club.ConfigMissingEntity,
		Domain: domainName,
		Detail: fmt.Sprintf("failed to access %s with ID %s: %v", label, id, err),
	}
}

func foreign(domainName, label, id, guildID string) error {
	return &club.ConfigError{
		Kind:   club.ConfigForeignEntity,
		Domain: domainName,
		Detail: fmt.Sprintf("%s %s is not part of guild %s", label, id, guildID),
	}
}

// Resolve returns the domain serving a guild.
func (r *Registry) Resolve(guildID string) (*domain.Domain, bool) {
	d, ok := r.byGuild[guildID]
	return d, ok
}

// ResolveChannel returns the domain whose control or vote channel is channelID.
func (r *Registry) ResolveChannel(channelID string) (*domain.Domain, bool) {
	d, ok := r.byChannel[channelID]
	return d, ok
}

// Domains returns the loaded domains in name order.
func (r *Registry) Domains() []*domain.Domain {
	return r.domains
}

// CheckNamespaces warns about stored session namespaces that no configured
// domain owns. Their sessions will never be reminded.
func (r *Registry) CheckNamespaces(stored []string) []string {
	var orphans []string
	for _, ns := range stored {
		if !slices.ContainsFunc(r.domains, func(d *domain.Domain) bool { return d.Name() == ns }) {
			orphans = append(orphans, ns)
		}
	}
	if len(orphans) > 0 {
		r.logger.Warn("Stored sessions belong to unconfigured domains", "namespaces", strings.Join(orphans, ","))
	}
	return orphans
}

// SendReminders runs every domain's reminder pass concurrently. A failing
// domain does not stop the others; all failures are returned together.
func (r *Registry) SendReminders(ctx context.Context) error {
	r.logger.Info("Sending reminders", "domains", len(r.domains))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, d := range r.domains {
		wg.Go(func() {
			if err := d.SendReminders(ctx); err != nil {
				r.logger.Error("Reminder pass failed", "domain", d.Name(), "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("domain %q: %w", d.Name(), err))
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Wait drains the background work of every domain.
func (r *Registry) Wait() {
	for _, d := range r.domains {
		d.Wait()
	}
}
