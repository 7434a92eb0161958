package captions

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func sampleCues() []Cue {
	return []Cue{
		{Start: 0, End: ms(1200), Text: "Did you know"},
		{Start: ms(1200), End: ms(2500), Text: "octopuses have\nthree hearts?"},
		{Start: ms(2500), End: ms(3_723_004), Text: "Follow for more"},
		{Start: ms(3_723_004), End: ms(3_724_000), Text: "Follow for more"},
	}
}

func TestRoundTrip_SRT(t *testing.T) {
	srt, err := FormatSRT(sampleCues())
	require.NoError(t, err)

	got, err := ParseSRT(srt)
	require.NoError(t, err)
	assert.Equal(t, sampleCues(), got)
}

func TestRoundTrip_VTTThroughSRT(t *testing.T) {
	vtt, err := FormatVTT(sampleCues())
	require.NoError(t, err)

	srt, err := VTTToSRT(vtt)
	require.NoError(t, err)

	back, err := SRTToVTT(srt)
	require.NoError(t, err)
	assert.Equal(t, vtt, back)

	cues, err := ParseVTT(back)
	require.NoError(t, err)
	require.Len(t, cues, 4)
	for i, c := range sampleCues() {
		assert.Equal(t, c.Text, cues[i].Text, "cue %d", i)
	}
}

func TestFormatSRT_Layout(t *testing.T) {
	srt, err := FormatSRT(sampleCues()[:2])
	require.NoError(t, err)
	want := "1\n00:00:00,000 --> 00:00:01,200\nDid you know\n\n" +
		"2\n00:00:01,200 --> 00:00:02,500\noctopuses have\nthree hearts?\n"
	assert.Equal(t, want, srt)
}

func TestParseVTT_Features(t *testing.T) {
	input := "\ufeffWEBVTT - transcript\r\nKind: captions\r\n\r\n" +
		"NOTE generated by the speech model\r\n\r\n" +
		"intro\r\n00:01.000 --> 00:02.500 align:center line:90%\r\nHello there\r\n\r\n" +
		"00:00:02.500 --> 00:00:04.000\r\nsecond\r\nline two\r\n"

	cues, err := ParseVTT(input)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, Cue{Start: ms(1000), End: ms(2500), Text: "Hello there"}, cues[0])
	assert.Equal(t, "second\nline two", cues[1].Text)
}

func TestParseVTT_Errors(t *testing.T) {
	_, err := ParseVTT("1\n00:00:00,000 --> 00:00:01,000\nhi\n")
	assert.ErrorIs(t, err, ErrMissingHeader)

	_, err = ParseVTT("WEBVTT\n\n00:00:xx.000 --> 00:00:01.000\nhi\n")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	_, err = ParseVTT("WEBVTT\n\n00:00:00.000 --> 00:00:01.000\n")
	assert.ErrorIs(t, err, ErrInvalidCue)
}

func TestParseSRT_WithoutNumbers(t *testing.T) {
	cues, err := ParseSRT("00:00:00,500 --> 00:00:01,000\nhi\n\n00:00:01.000 --> 00:00:02.000\n42\n")
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, "42", cues[1].Text)
	assert.Equal(t, ms(500), cues[0].Start)
}

func TestFormat_RejectsLossyCues(t *testing.T) {
	tests := []Cue{
		{Start: ms(10), End: ms(5), Text: "backwards"},
		{Start: 0, End: ms(5), Text: "  "},
		{Start: 0, End: ms(5), Text: "para one\n\npara two"},
		{Start: 0, End: ms(5), Text: "a --> b"},
	}
	for _, c := range tests {
		_, err := FormatSRT([]Cue{c})
		assert.ErrorIs(t, err, ErrInvalidCue, "%q", c.Text)
		_, err = FormatVTT([]Cue{c})
		assert.ErrorIs(t, err, ErrInvalidCue, "%q", c.Text)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:01,250", ms(1250), false},
		{"01:02:03.004", time.Hour + 2*time.Minute + 3*time.Second + ms(4), false},
		{"02:03.500", 2*time.Minute + 3*time.Second + ms(500), false},
		{"00:61:00.000", 0, true},
		{"00:00:01", 0, true},
		{"00:00:01.5", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSegmentScript(t *testing.T) {
	segs := SegmentScript("Stop scrolling! Octopuses have three hearts. Two pump blood to the gills. Follow for more facts.")
	require.Len(t, segs, 3)
	assert.Equal(t, Segment{Part: PartHook, Text: "Stop scrolling!"}, segs[0])
	assert.Equal(t, PartBody, segs[1].Part)
	assert.Equal(t, "Octopuses have three hearts. Two pump blood to the gills.", segs[1].Text)
	assert.Equal(t, Segment{Part: PartCTA, Text: "Follow for more facts."}, segs[2])

	assert.Len(t, SegmentScript("Just one line"), 1)
	assert.Len(t, SegmentScript("One. Two."), 2)
	assert.Nil(t, SegmentScript("   "))
}

func TestEstimate(t *testing.T) {
	script := "Stop scrolling! Octopuses have three hearts and blue blood. Follow for more."
	cues := Estimate(script, EstimateOptions{WordsPerMinute: 120, MaxWords: 3, SegmentGap: ms(500)})

	var words []string
	for i, c := range cues {
		assert.LessOrEqual(t, len(strings.Fields(c.Text)), 3)
		assert.Greater(t, c.End, c.Start)
		if i > 0 {
			assert.GreaterOrEqual(t, c.Start, cues[i-1].End)
		}
		words = append(words, strings.Fields(c.Text)...)
	}
	assert.Equal(t, strings.Fields(script), words)

	// 120 wpm is 500ms per word.
	assert.Equal(t, Cue{Start: 0, End: ms(1000), Text: "Stop scrolling!"}, cues[0])
	assert.Equal(t, ms(1500), cues[1].Start)

	_, err := FormatSRT(cues)
	assert.NoError(t, err)
}

func TestEstimate_Defaults(t *testing.T) {
	cues := Estimate("one two three four five", EstimateOptions{})
	require.Len(t, cues, 2)
	assert.Equal(t, "one two three four", cues[0].Text)
	assert.Equal(t, ms(1500), cues[0].End)
	assert.Empty(t, Estimate("", EstimateOptions{}))
}

func TestScaleTo(t *testing.T) {
	cues := []Cue{
		{Start: 0, End: ms(1000), Text: "a"},
		{Start: ms(1000), End: ms(2000), Text: "b"},
	}
	scaled := ScaleTo(cues, 3*time.Second)
	assert.Equal(t, ms(1500), scaled[0].End)
	assert.Equal(t, ms(3000), scaled[1].End)
	assert.Equal(t, "b", scaled[1].Text)
	assert.Equal(t, ms(1000), cues[0].End)

	assert.Equal(t, cues, ScaleTo(cues, 0))
	assert.Nil(t, ScaleTo(nil, time.Second))
	assert.Equal(t, ms(2000), Duration(cues))
}
