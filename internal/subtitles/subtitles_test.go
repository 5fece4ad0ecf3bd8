package subtitles

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

func ms(v int64) *int64 { return &v }

func structured(t *testing.T, phrases ...models.Phrase) string {
	t.Helper()
	b, err := json.Marshal(models.StructuredData{Phrases: phrases})
	require.NoError(t, err)
	return string(b)
}

const sampleVTT = "WEBVTT\n\n" +
	"00:00:00.000 --> 00:00:01.200\n<v Alice>\nHello\n\n" +
	"NOTE this block has no timing\n\n" +
	"00:00:01.200 --> 00:00:02.500\nWorld\n\n"

func TestToSRTSortsStructuredPhrases(t *testing.T) {
	tr := models.Transcript{
		RawStructuredData: structured(t,
			models.Phrase{StartTimeMs: ms(5000), EndTimeMs: ms(6000), Text: "third"},
			models.Phrase{StartTimeMs: ms(0), EndTimeMs: ms(1000), Text: "first", Speaker: "Speaker 1"},
			models.Phrase{StartTimeMs: ms(2000), EndTimeMs: ms(3000), Text: "second"},
		),
	}

	want := "1\n00:00:00,000 --> 00:00:01,000\n[Speaker 1] first\n\n" +
		"2\n00:00:02,000 --> 00:00:03,000\nsecond\n\n" +
		"3\n00:00:05,000 --> 00:00:06,000\nthird\n\n"
	assert.Equal(t, want, ToSRT(tr))
}

func TestToSRTSkipsUntimedAndBlankPhrases(t *testing.T) {
	tr := models.Transcript{
		RawStructuredData: structured(t,
			models.Phrase{StartTimeMs: ms(0), Text: "no end"},
			models.Phrase{StartTimeMs: ms(100), EndTimeMs: ms(200), Text: "   "},
			models.Phrase{StartTimeMs: ms(300), EndTimeMs: ms(400), Text: "kept"},
		),
	}

	assert.Equal(t, "1\n00:00:00,300 --> 00:00:00,400\nkept\n\n", ToSRT(tr))
}

func TestToSRTKeepsMultilinePhraseInOneCue(t *testing.T) {
	tr := models.Transcript{
		RawStructuredData: structured(t,
			models.Phrase{StartTimeMs: ms(0), EndTimeMs: ms(1000), Text: "Hello\n\nWorld", Speaker: "Ana\n"},
			models.Phrase{StartTimeMs: ms(1000), EndTimeMs: ms(2000), Text: "next\r\n line"},
		),
	}

	out := ToSRT(tr)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\n[Ana] Hello World\n\n"+
		"2\n00:00:01,000 --> 00:00:02,000\nnext line\n\n", out)
	// Re-reading the cue blocks must not lose text to a stray blank line.
	assert.Equal(t, out, FromVTT(out))
}

func TestToSRTFallsBackWithoutStructuredData(t *testing.T) {
	out := ToSRT(models.Transcript{Content: sampleVTT})

	want := "1\n00:00:00,000 --> 00:00:01,200\n[Alice] Hello\n\n" +
		"2\n00:00:01,200 --> 00:00:02,500\nWorld\n\n"
	assert.Equal(t, want, out)
}

func TestToSRTFallsBackOnMalformedStructuredData(t *testing.T) {
	tr := models.Transcript{Content: sampleVTT, RawStructuredData: "{not json"}

	assert.Equal(t, FromVTT(sampleVTT), ToSRT(tr))
}

func TestToSRTFallsBackWhenStructuredDataHasNoCues(t *testing.T) {
	tr := models.Transcript{Content: sampleVTT, RawStructuredData: structured(t)}

	assert.Equal(t, FromVTT(sampleVTT), ToSRT(tr))
}

func TestToSRTIsIdempotent(t *testing.T) {
	tr := models.Transcript{
		Content: sampleVTT,
		RawStructuredData: structured(t,
			models.Phrase{StartTimeMs: ms(1200), EndTimeMs: ms(2500), Text: "World"},
			models.Phrase{StartTimeMs: ms(0), EndTimeMs: ms(1200), Text: "Hello"},
		),
	}

	assert.Equal(t, ToSRT(tr), ToSRT(tr))
	assert.Equal(t, ToSRT(models.Transcript{Content: sampleVTT}), ToSRT(models.Transcript{Content: sampleVTT}))
}

func TestFromVTT(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "header only", in: "WEBVTT\n", want: ""},
		{
			name: "inline voice and cue id",
			in:   "WEBVTT\n\ncue-1\n00:01.000 --> 00:02.000 align:start\n<v Bob>Hi there</v>\n",
			want: "1\n00:00:01,000 --> 00:00:02,000\n[Bob] Hi there\n\n",
		},
		{
			name: "crlf and multiple blank lines",
			in:   "WEBVTT\r\n\r\n\r\n00:00:03.000 --> 00:00:04.000\r\nA\r\n\r\n00:00:05.000 --> 00:00:06.000\r\nB\r\n",
			want: "1\n00:00:03,000 --> 00:00:04,000\nA\n\n2\n00:00:05,000 --> 00:00:06,000\nB\n\n",
		},
		{
			name: "untimed blocks dropped",
			in:   "WEBVTT\n\njust text\n\nmore text\n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromVTT(tt.in))
		})
	}
}

func TestExport(t *testing.T) {
	tr := models.Transcript{Content: sampleVTT}

	txt := Export(tr, "clip.mp4", FormatText)
	assert.Equal(t, "clip_transcript.txt", txt.Filename)
	assert.Equal(t, sampleVTT, string(txt.Body))

	srt := Export(tr, "my.holiday.mov", FormatSubtitle)
	assert.Equal(t, "my.holiday_transcript.srt", srt.Filename)
	assert.True(t, strings.HasPrefix(string(srt.Body), "1\n"))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "txt": FormatText, "TEXT": FormatText, "srt": FormatSubtitle, "subtitle": FormatSubtitle} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
