package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
)

const serviceName = "checkout-server"

// New returns a JSON logger on stdout, or a Loki-backed logger when lokiURL is
// set. The returned stop func flushes the Loki client and is safe to call
// when no client was created.
func New(level, lokiURL string) (*slog.Logger, func()) {
	lvl := ParseLevel(level)
	if lokiURL == "" {
		return localLogger(lvl), func() {}
	}

	logger, stop, err := remoteLogger(lvl, lokiURL)
	if err != nil {
		l := localLogger(lvl)
		l.Warn("loki unavailable, logging to stdout", "error", err)
		return l, func() {}
	}
	return logger, stop
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func localLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", serviceName)
}

func remoteLogger(level slog.Level, url string) (*slog.Logger, func(), error) {
	lokiConfig, err := loki.NewDefaultConfig(url)
	if err != nil {
		return nil, nil, err
	}
	client, err := loki.New(lokiConfig)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slogloki.Option{
		Level:  level,
		Client: client,
	}.NewLokiHandler()).With("service", serviceName)

	return logger, client.Stop, nil
}
