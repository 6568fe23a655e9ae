package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// RouteLogs sends discordgo's internal logging to logger. discordgo keeps a
// single package-level logger, so this affects every session in the process.
func RouteLogs(logger *slog.Logger) {
	logger = logger.With("component", "discordgo")
	discordgo.Logger = func(msgL, _ int, format string, a ...any) {
		logger.Log(context.Background(), logLevel(msgL), fmt.Sprintf(format, a...))
	}
}

func logLevel(msgL int) slog.Level {
	switch msgL {
	case discordgo.LogError:
		return slog.LevelError
	case discordgo.LogWarning:
		return slog.LevelWarn
	case discordgo.LogInformational:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
