// Package probe reads media metadata with ffprobe.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Service wraps ffprobe.
type Service struct {
	logger *slog.Logger
	bin    string
}

func NewService(logger *slog.Logger, bin string) *Service {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Service{logger: logger, bin: bin}
}

// Duration returns the container duration of the media at path in seconds.
func (s *Service) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx,
		s.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}
	return parseDuration(string(out))
}

// DurationOrZero logs probe failures and reports zero instead.
func (s *Service) DurationOrZero(ctx context.Context, path string) float64 {
	d, err := s.Duration(ctx, path)
	if err != nil {
		s.logger.Warn("could not probe duration", "path", path, "error", err)
		return 0
	}
	return d
}

func parseDuration(out string) (float64, error) {
	val := strings.TrimSpace(out)
	if val == "" || val == "N/A" {
		return 0, errors.New("empty duration response")
	}
	dur, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration from ffprobe: %w", err)
	}
	return dur, nil
}
