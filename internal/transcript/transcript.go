// Package transcript normalizes analysis results into Transcript records.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/loukt/video-transcript-explorer/internal/analysis"
	"github.com/loukt/video-transcript-explorer/internal/models"
	"github.com/loukt/video-transcript-explorer/internal/timecode"
)

const vttHeader = "WEBVTT"

// Sink receives built transcripts.
type Sink interface {
	UpsertTranscript(t models.Transcript)
}

// Builder turns succeeded analysis jobs into transcripts and stores them.
type Builder struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

func NewBuilder(sink Sink, logger *slog.Logger) *Builder {
	return &Builder{sink: sink, logger: logger, now: time.Now}
}

// Build normalizes status for videoID, stores the transcript and returns it.
func (b *Builder) Build(videoID string, status analysis.JobStatus) models.Transcript {
	phrases := CollectPhrases(status.Result)

	t := models.Transcript{
		VideoID:   videoID,
		Content:   RenderVTT(phrases),
		Language:  Language(phrases),
		CreatedAt: b.now(),
	}
	raw, err := encodeStructured(phrases, status.Raw)
	if err != nil {
		b.logger.Warn("structured transcript data dropped", "video_id", videoID, "error", err)
	} else {
		t.RawStructuredData = raw
	}

	b.sink.UpsertTranscript(t)
	b.logger.Info("transcript built", "video_id", videoID, "phrases", len(phrases), "language", t.Language)
	return t
}

// CollectPhrases gathers every phrase with non-blank text and a start time
// across all content sections, ordered by start time. Ties keep input order.
func CollectPhrases(result *analysis.Result) []models.Phrase {
	if result == nil {
		return nil
	}
	var phrases []models.Phrase
	for _, content := range result.Contents {
		for _, p := range content.TranscriptPhrases {
			if strings.TrimSpace(p.Text) == "" || p.StartTimeMs == nil {
				continue
			}
			phrases = append(phrases, p)
		}
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		return *phrases[i].StartTimeMs < *phrases[j].StartTimeMs
	})
	return phrases
}

// RenderVTT renders the canonical cue text. Phrases without an end time are
// kept in the structured data but produce no cue.
func RenderVTT(phrases []models.Phrase) string {
	var b strings.Builder
	b.WriteString(vttHeader + "\n\n")
	for _, p := range phrases {
		if !p.Timed() {
			continue
		}
		fmt.Fprintf(&b, "%s --> %s\n", timecode.VTT(float64(*p.StartTimeMs)), timecode.VTT(float64(*p.EndTimeMs)))
		if p.Speaker != "" {
			fmt.Fprintf(&b, "<v %s>\n", p.Speaker)
		}
		b.WriteString(singleLine(p.Text))
		b.WriteString("\n\n")
	}
	return b.String()
}

// Language returns the locale of the first phrase, or the default.
func Language(phrases []models.Phrase) string {
	if len(phrases) > 0 && phrases[0].Locale != "" {
		return phrases[0].Locale
	}
	return models.DefaultLanguage
}

// Placeholder builds the transcript shown when analysis could not produce
// one. Its content is itself valid cue text.
func Placeholder(videoID, videoName, reason string, now time.Time) models.Transcript {
	text := fmt.Sprintf("An error occurred while processing %q. No transcript is available.", videoName)
	if reason != "" {
		text += " Reason: " + singleLine(reason)
	}
	content := fmt.Sprintf("%s\n\n%s --> %s\n%s\n\n", vttHeader, timecode.VTT(0), timecode.VTT(5000), text)
	return models.Transcript{
		VideoID:   videoID,
		Content:   content,
		Language:  models.DefaultLanguage,
		CreatedAt: now,
	}
}

func encodeStructured(phrases []models.Phrase, raw json.RawMessage) (string, error) {
	data := models.StructuredData{Phrases: phrases}
	if phrases == nil {
		data.Phrases = []models.Phrase{}
	}
	if json.Valid(raw) {
		data.APIResponse = raw
	}
	out, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode structured data: %w", err)
	}
	return string(out), nil
}

// singleLine keeps a cue body from introducing blank-line cue boundaries.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
