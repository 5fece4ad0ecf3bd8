package subtitles

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

var ErrUnknownFormat = errors.New("unknown transcript format")

// Format selects the export rendering of a transcript.
type Format string

const (
	FormatText     Format = "text"
	FormatSubtitle Format = "subtitle"
)

// ParseFormat accepts the export names and their file extensions.
// An empty string selects FormatText.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "subtitle", "srt":
		return FormatSubtitle, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func (f Format) Extension() string {
	if f == FormatSubtitle {
		return "srt"
	}
	return "txt"
}

func (f Format) ContentType() string {
	if f == FormatSubtitle {
		return "application/x-subrip; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

var extRe = regexp.MustCompile(`\.[^/.]+$`)

// Filename builds "<name-without-extension>_transcript.<ext>".
func Filename(videoName string, f Format) string {
	return fmt.Sprintf("%s_transcript.%s", extRe.ReplaceAllString(videoName, ""), f.Extension())
}

// Download is a rendered transcript ready to be streamed to a client.
type Download struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Export renders t in format f.
func Export(t models.Transcript, videoName string, f Format) Download {
	body := t.Content
	if f == FormatSubtitle {
		body = ToSRT(t)
	}
	return Download{
		Filename:    Filename(videoName, f),
		ContentType: f.ContentType(),
		Body:        []byte(body),
	}
}
