package captions

import (
	"fmt"
	"strings"
)

// ParseVTT reads WebVTT text. Header metadata, cue identifiers, cue settings
// and NOTE, STYLE and REGION blocks are dropped.
func ParseVTT(content string) ([]Cue, error) {
	blocks := splitBlocks(content)
	if len(blocks) == 0 || !isVTTSignature(blocks[0][0]) {
		return nil, ErrMissingHeader
	}

	var cues []Cue
	for n, block := range blocks[1:] {
		first := strings.TrimSpace(block[0])
		if first == "NOTE" || strings.HasPrefix(first, "NOTE ") ||
			first == "STYLE" || first == "REGION" {
			continue
		}
		lines := block
		if !strings.Contains(lines[0], "-->") {
			if len(lines) < 2 {
				return nil, fmt.Errorf("vtt block %d: %w: identifier without timing", n+1, ErrInvalidCue)
			}
			lines = lines[1:]
		}
		start, end, err := parseTiming(lines[0])
		if err != nil {
			return nil, fmt.Errorf("vtt block %d: %w", n+1, err)
		}
		if len(lines) < 2 {
			return nil, fmt.Errorf("vtt block %d: %w: no text", n+1, ErrInvalidCue)
		}
		cues = append(cues, Cue{Start: start, End: end, Text: strings.Join(lines[1:], "\n")})
	}
	return cues, nil
}

func isVTTSignature(line string) bool {
	line = strings.TrimSpace(line)
	return line == "WEBVTT" || strings.HasPrefix(line, "WEBVTT ") || strings.HasPrefix(line, "WEBVTT\t")
}

// FormatVTT writes cues as WebVTT.
func FormatVTT(cues []Cue) (string, error) {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for i, c := range cues {
		if err := c.validate(i + 1); err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n%s --> %s\n%s\n",
			formatTimestamp(c.Start, "."), formatTimestamp(c.End, "."), c.Text)
	}
	return b.String(), nil
}

// VTTToSRT converts WebVTT to SubRip.
func VTTToSRT(vtt string) (string, error) {
	cues, err := ParseVTT(vtt)
	if err != nil {
		return "", err
	}
	return FormatSRT(cues)
}

// SRTToVTT converts SubRip to WebVTT.
func SRTToVTT(srt string) (string, error) {
	cues, err := ParseSRT(srt)
	if err != nil {
		return "", err
	}
	return FormatVTT(cues)
}
