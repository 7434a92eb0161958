// Package captions converts timed caption text between WebVTT, the timed text
// format returned by transcription, and SRT, the format burned in by the
// renderer. It also estimates caption timing from a script when no
// transcription is available.
package captions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Static errors for caption parsing and formatting.
var (
	// ErrInvalidTimestamp is returned when a cue timestamp cannot be parsed.
	ErrInvalidTimestamp = errors.New("captions: invalid timestamp")
	// ErrInvalidCue is returned when a cue block is malformed.
	ErrInvalidCue = errors.New("captions: invalid cue")
	// ErrMissingHeader is returned when WebVTT input lacks the WEBVTT signature.
	ErrMissingHeader = errors.New("captions: missing WEBVTT header")
)

// Cue is one caption: text shown between Start and End.
type Cue struct {
	Start time.Duration
	End   time.Duration
	// Text may span several lines separated by "\n".
	Text string
}

// validate checks that the cue can be written without losing information.
func (c Cue) validate(n int) error {
	if c.Start < 0 || c.End < c.Start {
		return fmt.Errorf("%w %d: end %s before start %s", ErrInvalidCue, n, c.End, c.Start)
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("%w %d: empty text", ErrInvalidCue, n)
	}
	for _, line := range strings.Split(c.Text, "\n") {
		if strings.TrimSpace(line) == "" {
			return fmt.Errorf("%w %d: blank line inside text", ErrInvalidCue, n)
		}
		if strings.Contains(line, "-->") {
			return fmt.Errorf("%w %d: text contains \"-->\"", ErrInvalidCue, n)
		}
	}
	return nil
}

// Duration returns the end of the last cue.
func Duration(cues []Cue) time.Duration {
	var last time.Duration
	for _, c := range cues {
		if c.End > last {
			last = c.End
		}
	}
	return last
}

// parseTimestamp accepts hh:mm:ss,mmm, hh:mm:ss.mmm and mm:ss.mmm.
func parseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTimestamp)
	}
	normalized := strings.ReplaceAll(value, ",", ".")
	clock, frac, ok := strings.Cut(normalized, ".")
	if !ok || len(frac) != 3 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimestamp, value)
	}
	parts := strings.Split(clock, ":")
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimestamp, value)
	}
	hours, errH := strconv.Atoi(parts[0])
	minutes, errM := strconv.Atoi(parts[1])
	seconds, errS := strconv.Atoi(parts[2])
	millis, errMS := strconv.Atoi(frac)
	if errH != nil || errM != nil || errS != nil || errMS != nil ||
		hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("%w %q", ErrInvalidTimestamp, value)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// formatTimestamp renders d as hh:mm:ss<sep>mmm, truncating below a millisecond.
func formatTimestamp(d time.Duration, sep string) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, seconds, sep, ms)
}

// parseTiming reads "start --> end [settings]".
func parseTiming(line string) (time.Duration, time.Duration, error) {
	startText, rest, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, fmt.Errorf("%w: no timing arrow in %q", ErrInvalidCue, line)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("%w: no end time in %q", ErrInvalidCue, line)
	}
	start, err := parseTimestamp(startText)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(fields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// splitBlocks normalises line endings and splits on blank lines.
func splitBlocks(content string) [][]string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	var blocks [][]string
	var cur []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}
