package captions

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSRT reads SubRip text. Cue numbers are optional and ignored; cues keep
// their file order.
func ParseSRT(content string) ([]Cue, error) {
	var cues []Cue
	for n, block := range splitBlocks(content) {
		lines := block
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil && len(lines) > 1 {
			lines = lines[1:]
		}
		start, end, err := parseTiming(lines[0])
		if err != nil {
			return nil, fmt.Errorf("srt block %d: %w", n+1, err)
		}
		if len(lines) < 2 {
			return nil, fmt.Errorf("srt block %d: %w: no text", n+1, ErrInvalidCue)
		}
		cues = append(cues, Cue{Start: start, End: end, Text: strings.Join(lines[1:], "\n")})
	}
	return cues, nil
}

// FormatSRT writes cues as SubRip text numbered from 1.
func FormatSRT(cues []Cue) (string, error) {
	var b strings.Builder
	for i, c := range cues {
		if err := c.validate(i + 1); err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1,
			formatTimestamp(c.Start, ","), formatTimestamp(c.End, ","), c.Text)
	}
	return b.String(), nil
}
