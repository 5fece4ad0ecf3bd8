package transcript

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loukt/video-transcript-explorer/internal/analysis"
	"github.com/loukt/video-transcript-explorer/internal/models"
	"github.com/loukt/video-transcript-explorer/internal/store"
	"github.com/loukt/video-transcript-explorer/internal/subtitles"
)

const sampleResponse = `{
  "id": "job-1",
  "status": "Succeeded",
  "result": {
    "contents": [
      {"kind": "audioVisual", "transcriptPhrases": [
        {"speaker": "Speaker 2", "startTimeMs": 1200, "endTimeMs": 2500, "text": "World", "locale": "fr-FR"},
        {"startTimeMs": 900, "text": "   "},
        {"endTimeMs": 100, "text": "no start"}
      ]},
      {"kind": "audioVisual", "transcriptPhrases": [
        {"speaker": "Speaker 1", "startTimeMs": 0, "endTimeMs": 1200, "text": "Hello", "locale": "en-US"},
        {"startTimeMs": 3000, "text": "open ended"}
      ]}
    ]
  }
}`

func newBuilder(t *testing.T) (*Builder, *store.Store) {
	t.Helper()
	s := store.New()
	b := NewBuilder(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.now = func() time.Time { return time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC) }
	return b, s
}

func decode(t *testing.T, body string) analysis.JobStatus {
	t.Helper()
	st, err := analysis.DecodeStatus([]byte(body))
	require.NoError(t, err)
	return st
}

func TestBuild(t *testing.T) {
	b, s := newBuilder(t)

	tr := b.Build("video-1", decode(t, sampleResponse))

	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.200\n<v Speaker 1>\nHello\n\n" +
		"00:00:01.200 --> 00:00:02.500\n<v Speaker 2>\nWorld\n\n"
	assert.Equal(t, want, tr.Content)
	assert.Equal(t, "en-US", tr.Language)
	assert.Equal(t, "video-1", tr.VideoID)

	var data models.StructuredData
	require.NoError(t, json.Unmarshal([]byte(tr.RawStructuredData), &data))
	require.Len(t, data.Phrases, 3)
	assert.Equal(t, "Hello", data.Phrases[0].Text)
	assert.Equal(t, "open ended", data.Phrases[2].Text)
	assert.JSONEq(t, sampleResponse, string(data.APIResponse))

	stored, ok := s.FindTranscript("video-1")
	require.True(t, ok)
	assert.Equal(t, tr, stored)
}

func TestBuildFeedsSubtitleConverter(t *testing.T) {
	b, _ := newBuilder(t)
	tr := b.Build("video-1", decode(t, sampleResponse))

	want := "1\n00:00:00,000 --> 00:00:01,200\n[Speaker 1] Hello\n\n" +
		"2\n00:00:01,200 --> 00:00:02,500\n[Speaker 2] World\n\n"
	assert.Equal(t, want, subtitles.ToSRT(tr))

	tr.RawStructuredData = ""
	assert.Equal(t, want, subtitles.ToSRT(tr), "content fallback matches structured output")
}

func TestCollectPhrasesIsStable(t *testing.T) {
	start := int64(500)
	result := &analysis.Result{Contents: []analysis.Content{{
		TranscriptPhrases: []models.Phrase{
			{StartTimeMs: &start, Text: "a"},
			{StartTimeMs: &start, Text: "b"},
			{StartTimeMs: &start, Text: "c"},
		},
	}}}

	var texts []string
	for _, p := range CollectPhrases(result) {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts)
	assert.Nil(t, CollectPhrases(nil))
}

func TestBuildEmptyResult(t *testing.T) {
	b, _ := newBuilder(t)

	tr := b.Build("video-1", decode(t, `{"id":"job-1","status":"Succeeded"}`))
	assert.Equal(t, "WEBVTT\n\n", tr.Content)
	assert.Equal(t, models.DefaultLanguage, tr.Language)
	assert.True(t, tr.HasStructuredData())
}

func TestPlaceholder(t *testing.T) {
	tr := Placeholder("video-1", "clip.mp4", "analysis job failed:\nbad media", time.Now())

	assert.Contains(t, tr.Content, "error occurred")
	assert.Contains(t, tr.Content, "bad media")
	assert.False(t, tr.HasStructuredData())
	assert.True(t, strings.HasPrefix(subtitles.ToSRT(tr), "1\n00:00:00,000 --> 00:00:05,000\n"))
}
