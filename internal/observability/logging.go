package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/shooting-data-etl/internal/config"
)

// NewLogger builds the process-wide slog.Logger from config: JSON or text
// handler per LOG_FORMAT, level per LOG_LEVEL. Unknown values fall back to
// JSON at info level rather than failing startup.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
