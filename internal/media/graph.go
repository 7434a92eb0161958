package media

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Frame is the output raster.
type Frame struct {
	Width  int
	Height int
	FPS    int
}

// Motion configures the per-scene camera movement. All movement is a pure
// function of the seconds elapsed since the scene started.
type Motion struct {
	ZoomStart   float64 // Zoom factor at t=0; must be >1 so panning has slack
	ZoomRate    float64 // Zoom increase per second
	ZoomCeiling float64 // Hard upper bound on the zoom factor

	PanMajor     float64 // Amplitude of the slow pan component, fraction of half the slack
	PanMinor     float64 // Amplitude of the fast pan component, fraction of half the slack
	PanFreqMajor float64 // Angular frequency of the slow component, rad/s
	PanFreqMinor float64 // Angular frequency of the fast component, rad/s

	ShakeMargin int     // Pixels cropped from every edge to make room for shake
	ShakeAmp    float64 // Fraction of ShakeMargin the shake may use
	ShakeFreqX  float64 // Horizontal shake frequency, Hz
	ShakeFreqY  float64 // Vertical shake frequency, Hz
}

// Grade configures the colour grade and film texture applied to the whole video.
type Grade struct {
	Contrast   float64
	Saturation float64
	Brightness float64
	Vignette   string // vignette angle expression, e.g. "PI/5"
	Grain      int    // noise strength 0-100
	GrainSeed  int    // fixed so the same plan yields the same grain
}

// SubtitleStyle is passed to libass as force_style.
type SubtitleStyle struct {
	FontName string
	FontSize int
	Outline  int
	MarginV  int
}

// Look bundles every visual parameter of a render.
type Look struct {
	Frame    Frame
	Motion   Motion
	Grade    Grade
	Subtitle SubtitleStyle
}

// DefaultLook returns the house style for 1080x1920 shorts.
func DefaultLook() Look {
	return Look{
		Frame: Frame{Width: 1080, Height: 1920, FPS: 30},
		Motion: Motion{
			ZoomStart:    1.04,
			ZoomRate:     0.012,
			ZoomCeiling:  1.15,
			PanMajor:     0.5,
			PanMinor:     0.3,
			PanFreqMajor: 0.35,
			PanFreqMinor: 0.9,
			ShakeMargin:  6,
			ShakeAmp:     0.8,
			ShakeFreqX:   1.3,
			ShakeFreqY:   1.7,
		},
		Grade: Grade{
			Contrast:   1.06,
			Saturation: 1.12,
			Brightness: 0.01,
			Vignette:   "PI/5",
			Grain:      6,
			GrainSeed:  1337,
		},
		Subtitle: SubtitleStyle{
			FontName: "Arial",
			FontSize: 16,
			Outline:  2,
			MarginV:  60,
		},
	}
}

// Validate checks that the motion parameters keep every frame inside the source.
func (m Motion) Validate() error {
	switch {
	case m.ZoomStart < 1 || m.ZoomCeiling < m.ZoomStart:
		return fmt.Errorf("%w: zoom start %.3f ceiling %.3f", ErrInvalidLook, m.ZoomStart, m.ZoomCeiling)
	case m.ZoomRate < 0:
		return fmt.Errorf("%w: negative zoom rate", ErrInvalidLook)
	case m.PanMajor < 0 || m.PanMinor < 0 || m.PanMajor+m.PanMinor > 1:
		return fmt.Errorf("%w: pan amplitudes must sum to at most 1", ErrInvalidLook)
	case m.ShakeMargin < 0 || m.ShakeAmp < 0 || m.ShakeAmp > 1:
		return fmt.Errorf("%w: shake amplitude must be within the margin", ErrInvalidLook)
	}
	return nil
}

// ZoomAt returns the zoom factor t seconds into a scene.
func ZoomAt(m Motion, t float64) float64 {
	return math.Min(m.ZoomStart+m.ZoomRate*t, m.ZoomCeiling)
}

// PanAt returns the top-left corner of the visible window t seconds into
// scene index, for a source of w x h pixels at the given zoom. The window
// always lies inside the source.
func PanAt(m Motion, index int, zoom, t float64, w, h int) (x, y float64) {
	phase := float64(index)
	slackX := float64(w) - float64(w)/zoom
	slackY := float64(h) - float64(h)/zoom
	x = slackX / 2 * (1 + m.PanMajor*math.Sin(m.PanFreqMajor*t+phase) + m.PanMinor*math.Sin(m.PanFreqMinor*t+phase))
	y = slackY / 2 * (1 + m.PanMajor*math.Cos(m.PanFreqMajor*t+phase) + m.PanMinor*math.Cos(m.PanFreqMinor*t+phase))
	return x, y
}

// ShakeAt returns the handheld offset from the centred crop t seconds into
// the video. Both components stay within [-ShakeMargin, ShakeMargin].
func ShakeAt(m Motion, t float64) (dx, dy float64) {
	margin := float64(m.ShakeMargin)
	dx = margin * m.ShakeAmp * math.Sin(2*math.Pi*m.ShakeFreqX*t)
	dy = margin * m.ShakeAmp * math.Cos(2*math.Pi*m.ShakeFreqY*t)
	return dx, dy
}

// SceneInput is one still image shown for Duration seconds.
type SceneInput struct {
	ImagePath string
	Duration  float64
}

// Plan describes a complete render.
type Plan struct {
	Scenes       []SceneInput
	AudioPath    string
	SubtitlePath string // optional; no burn-in when empty
	OutputPath   string
	Look         Look
}

// TotalDuration returns the sum of the scene durations in seconds.
func (p Plan) TotalDuration() float64 {
	var total float64
	for _, s := range p.Scenes {
		total += s.Duration
	}
	return total
}

// Validate checks that the plan can be encoded.
func (p Plan) Validate() error {
	if len(p.Scenes) == 0 {
		return ErrNoScenes
	}
	for i, s := range p.Scenes {
		if s.ImagePath == "" {
			return fmt.Errorf("%w: scene %d has no image", ErrInvalidPlan, i+1)
		}
		if s.Duration <= 0 {
			return fmt.Errorf("%w: scene %d: got %.2f", ErrInvalidDuration, i+1, s.Duration)
		}
	}
	if p.AudioPath == "" {
		return fmt.Errorf("%w: no audio", ErrInvalidPlan)
	}
	if p.OutputPath == "" {
		return fmt.Errorf("%w: no output path", ErrInvalidPlan)
	}
	f := p.Look.Frame
	if f.Width <= 0 || f.Height <= 0 || f.FPS <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d, fps=%d", ErrInvalidDimensions, f.Width, f.Height, f.FPS)
	}
	return p.Look.Motion.Validate()
}

// FilterGraph returns the -filter_complex value for the plan. Stages run in a
// fixed order: fit and pad, zoompan, shake crop, concat, grade, vignette,
// grain, subtitles. The output pad is [vout].
func (p Plan) FilterGraph() string {
	look := p.Look
	w, h, fps := look.Frame.Width, look.Frame.Height, look.Frame.FPS
	m := look.Motion

	var b strings.Builder
	for i := range p.Scenes {
		phase := num(float64(i))
		zoom := fmt.Sprintf("min(%s+%s*ot,%s)", num(m.ZoomStart), num(m.ZoomRate), num(m.ZoomCeiling))
		panX := fmt.Sprintf("(iw-iw/zoom)/2*(1+%s*sin(%s*ot+%s)+%s*sin(%s*ot+%s))",
			num(m.PanMajor), num(m.PanFreqMajor), phase, num(m.PanMinor), num(m.PanFreqMinor), phase)
		panY := fmt.Sprintf("(ih-ih/zoom)/2*(1+%s*cos(%s*ot+%s)+%s*cos(%s*ot+%s))",
			num(m.PanMajor), num(m.PanFreqMajor), phase, num(m.PanMinor), num(m.PanFreqMinor), phase)

		fmt.Fprintf(&b, "[%d:v]", i)
		fmt.Fprintf(&b, "scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1,", w, h, w, h)
		fmt.Fprintf(&b, "zoompan=z='%s':x='%s':y='%s':d=1:s=%dx%d:fps=%d,", zoom, panX, panY, w, h, fps)
		b.WriteString(shakeCrop(m, w, h))
		fmt.Fprintf(&b, ",setsar=1,format=yuv420p[v%d];", i)
	}
	for i := range p.Scenes {
		fmt.Fprintf(&b, "[v%d]", i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=0[base];", len(p.Scenes))

	g := look.Grade
	fmt.Fprintf(&b, "[base]eq=contrast=%s:saturation=%s:brightness=%s", num(g.Contrast), num(g.Saturation), num(g.Brightness))
	fmt.Fprintf(&b, ",vignette=angle=%s", g.Vignette)
	fmt.Fprintf(&b, ",noise=alls=%d:allf=t:all_seed=%d", g.Grain, g.GrainSeed)
	if p.SubtitlePath != "" {
		b.WriteString(",")
		b.WriteString(subtitlesFilter(p.SubtitlePath, look.Subtitle))
	}
	b.WriteString(",format=yuv420p[vout]")
	return b.String()
}

// shakeCrop crops a fixed margin off every edge and moves the window with a
// time expression, then scales back to the frame size.
func shakeCrop(m Motion, w, h int) string {
	margin := m.ShakeMargin
	amp := num(float64(margin) * m.ShakeAmp)
	return fmt.Sprintf("crop=w=%d:h=%d:x='%d+%s*sin(2*PI*%s*t)':y='%d+%s*cos(2*PI*%s*t)',scale=%d:%d",
		w-2*margin, h-2*margin,
		margin, amp, num(m.ShakeFreqX),
		margin, amp, num(m.ShakeFreqY),
		w, h)
}

func subtitlesFilter(path string, s SubtitleStyle) string {
	style := fmt.Sprintf("FontName=%s,FontSize=%d,Bold=1,PrimaryColour=&H00FFFFFF,OutlineColour=&H00000000,BackColour=&H80000000,BorderStyle=4,Outline=%d,Shadow=0,Alignment=2,MarginV=%d",
		s.FontName, s.FontSize, s.Outline, s.MarginV)
	return fmt.Sprintf("subtitles=filename='%s':force_style='%s'", escapeSubtitlePath(path), style)
}

// escapeSubtitlePath escapes a path for use inside a quoted filter option.
func escapeSubtitlePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "\\'")
	return path
}

// Args returns the complete ffmpeg argument list for the plan.
func (p Plan) Args() []string {
	fps := strconv.Itoa(p.Look.Frame.FPS)

	args := []string{"-y", "-hide_banner", "-nostdin"}
	for _, s := range p.Scenes {
		args = append(args,
			"-loop", "1",
			"-framerate", fps,
			"-t", num(s.Duration),
			"-i", s.ImagePath,
		)
	}
	audioIndex := len(p.Scenes)
	args = append(args,
		"-i", p.AudioPath,
		"-filter_complex", p.FilterGraph(),
		"-map", "[vout]",
		"-map", fmt.Sprintf("%d:a", audioIndex),
		"-af", "apad",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "20",
		"-pix_fmt", "yuv420p",
		"-r", fps,
		"-c:a", "aac",
		"-b:a", "192k",
		"-ar", "44100",
		"-t", num(p.TotalDuration()),
		"-movflags", "+faststart",
		p.OutputPath,
	)
	return args
}

// num formats f with at most six decimals and no trailing zeros.
func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e6)/1e6, 'f', -1, 64)
}
