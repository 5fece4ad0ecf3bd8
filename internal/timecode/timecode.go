// Package timecode converts millisecond offsets into subtitle clock strings.
package timecode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

const (
	// VTTSeparator precedes the millisecond field in WebVTT timestamps.
	VTTSeparator = '.'
	// SRTSeparator precedes the millisecond field in SubRip timestamps.
	SRTSeparator = ','
)

// VTT formats ms as "HH:MM:SS.mmm".
func VTT(ms float64) string {
	return Format(ms, VTTSeparator)
}

// SRT formats ms as "HH:MM:SS,mmm".
func SRT(ms float64) string {
	return Format(ms, SRTSeparator)
}

// Format renders ms with the given separator before the millisecond field.
// NaN, infinities and negative values yield the zero timestamp. The hour
// field is never truncated, so offsets past 99h render with more digits.
func Format(ms float64, sep byte) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 || ms > math.MaxInt64/2 {
		ms = 0
	}
	total := int64(ms)
	hours := total / 3_600_000
	minutes := (total / 60_000) % 60
	seconds := (total / 1000) % 60
	millis := total % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, millis)
}

var clockRe = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2})[.,](\d{3})$`)

// Parse reads a timestamp in either separator style back into milliseconds.
func Parse(s string) (int64, error) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("timecode: invalid timestamp %q", s)
	}
	var parts [4]int64
	for i := range parts {
		v, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("timecode: invalid field in %q: %w", s, err)
		}
		parts[i] = v
	}
	if parts[1] > 59 || parts[2] > 59 {
		return 0, fmt.Errorf("timecode: field out of range in %q", s)
	}
	return ((parts[0]*60+parts[1])*60+parts[2])*1000 + parts[3], nil
}
