package timecode

import (
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		ms   float64
		vtt  string
		srt  string
	}{
		{name: "zero", ms: 0, vtt: "00:00:00.000", srt: "00:00:00,000"},
		{name: "sub second", ms: 7, vtt: "00:00:00.007", srt: "00:00:00,007"},
		{name: "minutes", ms: 65_432, vtt: "00:01:05.432", srt: "00:01:05,432"},
		{name: "hours", ms: 3_723_004, vtt: "01:02:03.004", srt: "01:02:03,004"},
		{name: "past 99 hours", ms: 100 * 3_600_000, vtt: "100:00:00.000", srt: "100:00:00,000"},
		{name: "fraction floors", ms: 1200.9, vtt: "00:00:01.200", srt: "00:00:01,200"},
		{name: "nan", ms: math.NaN(), vtt: "00:00:00.000", srt: "00:00:00,000"},
		{name: "negative", ms: -5, vtt: "00:00:00.000", srt: "00:00:00,000"},
		{name: "infinite", ms: math.Inf(1), vtt: "00:00:00.000", srt: "00:00:00,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.vtt, VTT(tt.ms))
			assert.Equal(t, tt.srt, SRT(tt.ms))
		})
	}
}

func TestSRTRoundTrip(t *testing.T) {
	shape := regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3}$`)
	for _, ms := range []int64{0, 1, 999, 1000, 59_999, 60_000, 3_599_999, 3_600_000, 86_399_999} {
		s := SRT(float64(ms))
		require.Regexp(t, shape, s)

		back, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, ms, back, s)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "00:00:00", "0:00:00.000", "00:61:00.000", "00:00:00.00"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
}
