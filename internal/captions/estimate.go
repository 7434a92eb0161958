package captions

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// Part labels where a segment sits in a short-form script.
type Part string

const (
	PartHook Part = "hook"
	PartBody Part = "body"
	PartCTA  Part = "cta"
)

// Segment is one labelled run of script text.
type Segment struct {
	Part Part
	Text string
}

// EstimateOptions tunes the words-per-minute timing model.
type EstimateOptions struct {
	// WordsPerMinute is the assumed narration pace. Default: 160.
	WordsPerMinute int
	// MaxWords caps the words shown in one cue. Default: 4.
	MaxWords int
	// SegmentGap is the pause inserted between hook, body and CTA. Default: 250ms.
	SegmentGap time.Duration
}

// DefaultEstimateOptions returns the defaults used for short vertical videos.
func DefaultEstimateOptions() EstimateOptions {
	return EstimateOptions{
		WordsPerMinute: 160,
		MaxWords:       4,
		SegmentGap:     250 * time.Millisecond,
	}
}

func (o EstimateOptions) withDefaults() EstimateOptions {
	d := DefaultEstimateOptions()
	if o.WordsPerMinute <= 0 {
		o.WordsPerMinute = d.WordsPerMinute
	}
	if o.MaxWords <= 0 {
		o.MaxWords = d.MaxWords
	}
	if o.SegmentGap < 0 {
		o.SegmentGap = 0
	}
	return o
}

// SegmentScript splits a script into hook, body and CTA. The first sentence is
// the hook. With three or more sentences the last one is the CTA.
func SegmentScript(script string) []Segment {
	sentences := splitSentences(script)
	switch len(sentences) {
	case 0:
		return nil
	case 1:
		return []Segment{{Part: PartHook, Text: sentences[0]}}
	case 2:
		return []Segment{
			{Part: PartHook, Text: sentences[0]},
			{Part: PartBody, Text: sentences[1]},
		}
	}
	last := len(sentences) - 1
	return []Segment{
		{Part: PartHook, Text: sentences[0]},
		{Part: PartBody, Text: strings.Join(sentences[1:last], " ")},
		{Part: PartCTA, Text: sentences[last]},
	}
}

func splitSentences(script string) []string {
	words := strings.Fields(script)
	var sentences []string
	var cur []string
	for _, w := range words {
		cur = append(cur, w)
		if endsSentence(w) {
			sentences = append(sentences, strings.Join(cur, " "))
			cur = nil
		}
	}
	if len(cur) > 0 {
		sentences = append(sentences, strings.Join(cur, " "))
	}
	return sentences
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRightFunc(word, func(r rune) bool {
		return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’'
	})
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// Estimate builds cues for script at a fixed speaking pace, starting at zero.
func Estimate(script string, opts EstimateOptions) []Cue {
	opts = opts.withDefaults()
	perWord := time.Duration(float64(time.Minute) / float64(opts.WordsPerMinute))

	var cues []Cue
	var at time.Duration
	for si, seg := range SegmentScript(script) {
		if si > 0 {
			at += opts.SegmentGap
		}
		words := strings.Fields(seg.Text)
		for start := 0; start < len(words); start += opts.MaxWords {
			end := min(start+opts.MaxWords, len(words))
			chunk := words[start:end]
			length := perWord * time.Duration(spokenWeight(chunk))
			cues = append(cues, Cue{
				Start: at.Truncate(time.Millisecond),
				End:   (at + length).Truncate(time.Millisecond),
				Text:  strings.Join(chunk, " "),
			})
			at += length
		}
	}
	return cues
}

// spokenWeight counts words, giving bare numbers and symbols no extra weight.
func spokenWeight(words []string) int {
	n := 0
	for _, w := range words {
		if strings.IndexFunc(w, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return max(n, 1)
}

// ScaleTo stretches or compresses cue timing so the last cue ends at total.
func ScaleTo(cues []Cue, total time.Duration) []Cue {
	current := Duration(cues)
	if current <= 0 || total <= 0 {
		return cues
	}
	factor := float64(total) / float64(current)
	out := make([]Cue, len(cues))
	for i, c := range cues {
		out[i] = Cue{
			Start: scaleDuration(c.Start, factor),
			End:   scaleDuration(c.End, factor),
			Text:  c.Text,
		}
	}
	return out
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	ms := math.Round(float64(d.Milliseconds()) * factor)
	return time.Duration(ms) * time.Millisecond
}
