package assets

import (
	"fmt"
	"strings"

	"github.com/maauso/shortreel/internal/provider"
	"github.com/maauso/shortreel/internal/video"
)

// Asset names used in failures and outstanding lists.
const (
	AssetImage    = "image"
	AssetAudio    = "audio"
	AssetCaptions = "captions"
)

// Ran reports which assets this pass generated. Images holds zero-based scene indices.
type Ran struct {
	Audio    bool  `json:"audio"`
	Captions bool  `json:"captions"`
	Images   []int `json:"images"`
}

// Any reports whether anything was generated.
func (r Ran) Any() bool {
	return r.Audio || r.Captions || len(r.Images) > 0
}

// URLs holds the locations of the non-scene assets after the pass.
type URLs struct {
	Audio    string `json:"audio,omitempty"`
	Captions string `json:"captions,omitempty"`
}

// Failure describes one asset that could not be produced.
type Failure struct {
	Asset   string        `json:"asset"`
	Scene   int           `json:"scene,omitempty"` // 1-indexed, images only
	Kind    provider.Kind `json:"kind"`
	Message string        `json:"message"`
}

func (f Failure) String() string {
	if f.Asset == AssetImage {
		return fmt.Sprintf("scene %d: %s", f.Scene, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Asset, f.Message)
}

// Fatal reports whether retrying without a change cannot succeed.
func (f Failure) Fatal() bool {
	return !f.Kind.Retryable()
}

// Result is the outcome of EnsureAssets.
type Result struct {
	Ran         Ran          `json:"ran"`
	URLs        URLs         `json:"urls"`
	NextStatus  video.Status `json:"next_status"`
	Outstanding []string     `json:"outstanding,omitempty"`
	Failures    []Failure    `json:"failures,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Retryable reports whether another pass may finish the remaining work.
func (r Result) Retryable() bool {
	return r.NextStatus == video.StatusAssetsGenerating
}

func newFailure(asset string, scene int, err error) Failure {
	kind, ok := provider.KindOf(err)
	if !ok {
		kind = provider.KindTransient
	}
	f := Failure{Asset: asset, Kind: kind, Message: provider.UserMessage(err)}
	if asset == AssetImage {
		f.Scene = scene + 1
	}
	return f
}

// outstanding lists what a pass has left to produce for v.
func outstanding(v *video.Video) []string {
	var out []string
	for _, i := range v.PendingImages() {
		out = append(out, fmt.Sprintf("scene %d %s", i+1, AssetImage))
	}
	if v.AudioURL == "" || !v.Progress.AudioDone {
		out = append(out, AssetAudio)
	}
	if captionsNeeded(v) {
		out = append(out, AssetCaptions)
	}
	return out
}

func failureMessage(failures []Failure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		if f.Fatal() {
			parts = append(parts, f.String())
		}
	}
	return strings.Join(parts, "; ")
}
