// Package subtitles converts transcripts into SubRip text.
//
// Conversion has two explicit branches. The structured phrase list stored in
// Transcript.RawStructuredData is used when it is present, decodes cleanly and
// yields at least one cue. In every other case the canonical WebVTT content is
// converted cue by cue. Callers always receive a string, possibly empty.
package subtitles

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/loukt/video-transcript-explorer/internal/models"
	"github.com/loukt/video-transcript-explorer/internal/timecode"
)

var errNoStructuredData = errors.New("subtitles: no structured data")

// ToSRT returns the SubRip rendering of t.
func ToSRT(t models.Transcript) string {
	if t.HasStructuredData() {
		if out, err := fromStructured(t.RawStructuredData); err == nil && out != "" {
			return out
		}
	}
	return FromVTT(t.Content)
}

func fromStructured(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errNoStructuredData
	}
	var data models.StructuredData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", fmt.Errorf("subtitles: decode structured data: %w", err)
	}

	phrases := make([]models.Phrase, len(data.Phrases))
	copy(phrases, data.Phrases)
	sort.SliceStable(phrases, func(i, j int) bool {
		a, b := phrases[i].StartTimeMs, phrases[j].StartTimeMs
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return *a < *b
	})

	var b strings.Builder
	n := 0
	for _, p := range phrases {
		text := singleLine(p.Text)
		if !p.Timed() || text == "" {
			continue
		}
		if p.Speaker != "" {
			text = speakerPrefix(p.Speaker) + text
		}
		n++
		writeCue(&b, n, timecode.SRT(float64(*p.StartTimeMs)), timecode.SRT(float64(*p.EndTimeMs)), text)
	}
	return b.String(), nil
}

var (
	headerRe   = regexp.MustCompile(`^\s*WEBVTT[^\n]*(\n|$)`)
	blankRe    = regexp.MustCompile(`\n[ \t]*\n`)
	timingRe   = regexp.MustCompile(`^((?:\d{2,}:)?\d{2}:\d{2}[.,]\d{3})\s+-->\s+((?:\d{2,}:)?\d{2}:\d{2}[.,]\d{3})`)
	voiceRe    = regexp.MustCompile(`<v(?:\.[^\s>]*)?\s+([^>]+)>`)
	voiceEndRe = regexp.MustCompile(`</v>`)
)

// FromVTT converts cue-delimited WebVTT text into SubRip text. Blocks without
// a timing line are dropped and surviving cues are numbered from 1.
func FromVTT(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = headerRe.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	var b strings.Builder
	n := 0
	for _, block := range blankRe.Split(content, -1) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		timing := -1
		var start, end string
		for i, line := range lines {
			if m := timingRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				var ok bool
				if start, ok = srtClock(m[1]); !ok {
					break
				}
				if end, ok = srtClock(m[2]); !ok {
					break
				}
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}
		n++
		writeCue(&b, n, start, end, cueText(lines[timing+1:]))
	}
	return b.String()
}

// srtClock normalizes a WebVTT clock, including the short MM:SS.mmm form.
func srtClock(s string) (string, bool) {
	if strings.Count(s, ":") == 1 {
		s = "00:" + s
	}
	ms, err := timecode.Parse(s)
	if err != nil {
		return "", false
	}
	return timecode.SRT(float64(ms)), true
}

// cueText rewrites voice spans as "[speaker] " prefixes. A voice tag on a
// line of its own is carried onto the next text line.
func cueText(lines []string) string {
	out := make([]string, 0, len(lines))
	pending := ""
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if m := voiceRe.FindStringSubmatch(line); m != nil {
			rest := strings.TrimSpace(voiceEndRe.ReplaceAllString(voiceRe.ReplaceAllString(line, ""), ""))
			if rest == "" {
				pending = speakerPrefix(m[1])
				continue
			}
			line = speakerPrefix(m[1]) + rest
		} else {
			line = strings.TrimSpace(voiceEndRe.ReplaceAllString(line, ""))
		}
		if line == "" {
			continue
		}
		out = append(out, pending+line)
		pending = ""
	}
	if pending != "" {
		out = append(out, strings.TrimSpace(pending))
	}
	return strings.Join(out, "\n")
}

// singleLine collapses line breaks so phrase text cannot end a cue early.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func speakerPrefix(speaker string) string {
	return "[" + singleLine(speaker) + "] "
}

func writeCue(b *strings.Builder, n int, start, end, text string) {
	fmt.Fprintf(b, "%d\n%s --> %s\n%s\n\n", n, start, end, text)
}
