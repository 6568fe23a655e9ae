// Command tsay-bot runs the film club Discord bot: it schedules meetings for
// nominated films, runs ballots and reminds members before each meeting.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/bwmarrin/discordgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"tsay-bot/config"
	"tsay-bot/discord"
	"tsay-bot/domain"
	"tsay-bot/metrics"
	"tsay-bot/router"
	"tsay-bot/scraper"
	"tsay-bot/server"
	"tsay-bot/storage"
	"tsay-bot/timer"
)

// sessionStore is a session backend that can also list its namespaces.
type sessionStore interface {
	domain.SessionStore
	Namespaces(ctx context.Context) ([]string, error)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var configPath string

	cmd := &cobra.Command{
		Use:          "tsay-bot",
		Short:        "Film club Discord bot",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	defaultConfig := os.Getenv("TSAYBOT_CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config.toml"
	}
	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", defaultConfig, "path to the TOML configuration file")
	flags.String("token", "", "file holding the Discord bot token")
	flags.String("logdir", "", "directory for log files")
	flags.String("datadir", "", "directory for session data")
	flags.Bool("debug", false, "enable debug logging")
	for key, flag := range map[string]string{
		"paths.token":    "token",
		"paths.logs_dir": "logdir",
		"paths.data_dir": "datadir",
		"debug":          "debug",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, closeLogs, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogs()
	discord.RouteLogs(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open session store", "backend", cfg.Storage.Backend, "error", err)
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	token, err := config.ReadToken(cfg.Paths.Token)
	if err != nil {
		return err
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discord.Intents
	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("Failed to close discord session", "error", err)
		}
	}()
	logger.Info("Connected to Discord", "user", session.State.User.Username)

	client := discord.NewClient(session, logger)
	registry, err := router.Load(ctx, cfg.Domains, &router.Deps{
		Directory: client,
		Platform:  client,
		Fetcher:   scraper.New(&http.Client{Timeout: 30 * time.Second}, logger),
		Store:     store,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to load domains", "error", err)
		return err
	}
	if namespaces, err := store.Namespaces(ctx); err != nil {
		logger.Warn("Failed to list stored namespaces", "error", err)
	} else {
		registry.CheckNamespaces(namespaces)
	}

	if err := discord.NewBot(ctx, session, registry, logger).Start(); err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Reminders.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	daily := &timer.Daily{Hour: cfg.Reminders.Hour, Location: loc, Logger: logger}

	g, gctx := errgroup.WithContext(ctx)
	if daily.ImmediateRunWanted(time.Now()) {
		logger.Info("Sending immediate reminders")
		g.Go(func() error {
			if err := registry.SendReminders(gctx); err != nil {
				logger.Error("Immediate reminders failed", "error", err)
			}
			return nil
		})
	} else {
		logger.Info("Skipping immediate reminders")
	}
	g.Go(func() error {
		return daily.Run(gctx, registry.SendReminders)
	})
	if cfg.Server.Port > 0 {
		srv := server.New(&server.Config{
			Reminder: registry,
			Gatherer: reg,
			Logger:   logger,
			Domains: func() []string {
				names := make([]string, 0, len(registry.Domains()))
				for _, d := range registry.Domains() {
					names = append(names, d.Name())
				}
				return names
			},
		})
		g.Go(func() error {
			return srv.ListenAndServe(gctx, cfg.Server.Port)
		})
	}

	err = g.Wait()
	logger.Info("Shutting down")
	registry.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newLogger logs JSON to stdout and to bot.log in the logs directory.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if err := os.MkdirAll(cfg.Paths.LogsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create logs directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.Paths.LogsDir, "bot.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, f), &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sessionStore, func(), error) {
	switch cfg.Storage.Backend {
	case "gcs":
		var opts []option.ClientOption
		if cfg.Storage.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Storage.CredentialsFile))
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		logger.Info("Using Cloud Storage", "bucket", cfg.Storage.Bucket)
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}
		return storage.New(client, cfg.Storage.Bucket, "", logger), closer, nil

	case "sqlite":
		if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data directory: %w", err)
		}
		path := filepath.Join(cfg.Paths.DataDir, "sessions.db")
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		s := storage.NewSQLite(db, logger)
		if err := s.InitSchema(); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("Using SQLite", "path", path)
		return s, func() { _ = db.Close() }, nil

	default:
		if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data directory: %w", err)
		}
		logger.Info("Using local storage", "path", cfg.Paths.DataDir)
		return storage.New(nil, "", cfg.Paths.DataDir, logger), func() {}, nil
	}
}
