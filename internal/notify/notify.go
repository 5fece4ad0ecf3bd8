// Package notify delivers user-facing notifications and progress events.
package notify

import (
	"context"
	"log/slog"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

// Notifier is a fire-and-forget notification sink.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// Log writes notifications to the structured log.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, n models.Notification) {
	level := slog.LevelInfo
	if n.Severity == models.SeverityDestructive {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, "notification", "video_id", n.VideoID, "title", n.Title, "description", n.Description)
}

// Fanout delivers to every notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n models.Notification) {
	for _, nt := range f {
		if nt != nil {
			nt.Notify(ctx, n)
		}
	}
}
