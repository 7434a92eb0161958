// Package assets produces the per-video assets a render needs: one image per
// storyboard scene, the narration audio and the caption track. Every asset
// kind is generated by an idempotent operation, so a pass can be repeated
// until nothing is missing.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/shortreel/internal/audio"
	"github.com/maauso/shortreel/internal/captions"
	"github.com/maauso/shortreel/internal/provider"
	"github.com/maauso/shortreel/internal/storage"
	"github.com/maauso/shortreel/internal/video"
)

// Static errors for orchestrator operations.
var (
	// ErrNoStoryboard is returned when the video has no scenes to illustrate.
	ErrNoStoryboard = errors.New("assets: video has no storyboard")
	// ErrVideoCancelled is returned by single-asset operations on a cancelled video.
	ErrVideoCancelled = errors.New("assets: video was cancelled")
	// ErrAudioRequired is returned when captions are requested before the narration exists.
	ErrAudioRequired = errors.New("assets: captions need narration audio")
)

// DefaultMaxConcurrentImages bounds parallel image requests per video.
const DefaultMaxConcurrentImages = 4

// Orchestrator generates missing or stale assets for a video.
type Orchestrator struct {
	repo        video.Repository
	blobs       storage.BlobStore
	images      provider.ImageGenerator
	speech      provider.SpeechSynthesizer
	transcriber provider.Transcriber
	prober      audio.Prober
	temp        storage.TempStore
	estimate    captions.EstimateOptions
	concurrency int
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTranscriber sets the service that times captions from the narration.
// Without one, captions are always estimated from the script.
func WithTranscriber(t provider.Transcriber) Option {
	return func(o *Orchestrator) {
		o.transcriber = t
	}
}

// WithProber sets the audio prober used to fit estimated captions to the
// narration length. temp receives the audio file while it is probed.
func WithProber(p audio.Prober, temp storage.TempStore) Option {
	return func(o *Orchestrator) {
		o.prober = p
		o.temp = temp
	}
}

// WithMaxConcurrentImages bounds parallel image requests.
func WithMaxConcurrentImages(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithEstimateOptions sets the fallback caption pacing.
func WithEstimateOptions(opts captions.EstimateOptions) Option {
	return func(o *Orchestrator) {
		o.estimate = opts
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(repo video.Repository, blobs storage.BlobStore, images provider.ImageGenerator, speech provider.SpeechSynthesizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		repo:        repo,
		blobs:       blobs,
		images:      images,
		speech:      speech,
		estimate:    captions.DefaultEstimateOptions(),
		concurrency: DefaultMaxConcurrentImages,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EnsureAssets generates every missing or stale asset of the video and moves
// it to the status the outcome calls for. Asset failures are reported in the
// result; the returned error is reserved for problems with the record itself.
func (o *Orchestrator) EnsureAssets(ctx context.Context, videoID string) (Result, error) {
	v, err := o.repo.Get(ctx, videoID)
	if err != nil {
		return Result{}, err
	}
	if v.SceneCount() == 0 {
		return Result{}, ErrNoStoryboard
	}

	if v.AssetsComplete() {
		return o.settleComplete(ctx, v)
	}

	v, err = o.repo.Update(ctx, videoID, func(v *video.Video) error {
		if v.SceneCount() == 0 {
			return ErrNoStoryboard
		}
		if v.Status != video.StatusAssetsGenerating {
			if err := v.TransitionTo(video.StatusAssetsGenerating); err != nil {
				return err
			}
		}
		v.RecountImages()
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log := o.logger.With("video_id", videoID)
	log.Info("ensuring assets",
		"pending_images", len(v.PendingImages()),
		"audio_missing", v.AudioURL == "",
		"captions_missing", captionsNeeded(v),
	)

	p := &pass{}

	p.run(AssetAudio, -1, func() (bool, error) { return o.EnsureAudio(ctx, videoID) })

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, i := range v.PendingImages() {
		if p.stopped() {
			break
		}
		g.Go(func() error {
			if p.stopped() {
				return nil
			}
			p.run(AssetImage, i, func() (bool, error) { return o.EnsureSceneImage(ctx, videoID, i) })
			return nil
		})
	}
	_ = g.Wait()

	if !p.stopped() {
		p.run(AssetCaptions, -1, func() (bool, error) { return o.EnsureCaptions(ctx, videoID) })
	}

	return o.finish(ctx, videoID, p)
}

// settleComplete handles a pass with nothing to generate.
func (o *Orchestrator) settleComplete(ctx context.Context, v *video.Video) (Result, error) {
	if v.Status == video.StatusAssetsGenerating {
		var err error
		v, err = o.repo.Update(ctx, v.ID, func(v *video.Video) error {
			if v.Status != video.StatusAssetsGenerating || !v.AssetsComplete() {
				return nil
			}
			return v.TransitionTo(video.StatusAssetsGenerated)
		})
		if err != nil {
			return Result{}, err
		}
	}
	return Result{
		Ran:        Ran{Images: []int{}},
		URLs:       URLs{Audio: v.AudioURL, Captions: v.CaptionsURL},
		NextStatus: v.Status,
	}, nil
}

// finish records the outcome of a pass on the video.
func (o *Orchestrator) finish(ctx context.Context, videoID string, p *pass) (Result, error) {
	res := p.result()
	log := o.logger.With("video_id", videoID)

	v, err := o.repo.Update(ctx, videoID, func(v *video.Video) error {
		if v.Status == video.StatusCancelled {
			return nil
		}
		v.RecountImages()

		if msg := failureMessage(res.Failures); msg != "" {
			return v.Fail(video.StatusAssetsFailed, msg)
		}
		if v.AssetsComplete() && v.Status == video.StatusAssetsGenerating {
			return v.TransitionTo(video.StatusAssetsGenerated)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("assets: record outcome: %w", err)
	}

	res.URLs = URLs{Audio: v.AudioURL, Captions: v.CaptionsURL}
	res.NextStatus = v.Status

	switch v.Status {
	case video.StatusCancelled:
		res.Message = "video was cancelled"
		log.Info("asset pass stopped by cancellation")
	case video.StatusAssetsFailed:
		res.Message = v.ErrorMessage
		res.Outstanding = outstanding(v)
		log.Warn("asset pass failed", "error", v.ErrorMessage)
	case video.StatusAssetsGenerated:
		log.Info("assets complete", "images", len(res.Ran.Images), "audio", res.Ran.Audio, "captions", res.Ran.Captions)
	default:
		res.Outstanding = outstanding(v)
		res.Message = fmt.Sprintf("%d assets outstanding; retry to continue", len(res.Outstanding))
		log.Info("asset pass incomplete", "outstanding", strings.Join(res.Outstanding, ", "))
	}
	return res, nil
}

// pass collects the outcome of concurrent units.
type pass struct {
	mu       sync.Mutex
	ranAudio bool
	ranCapts bool
	images   []int
	failures []Failure
	stop     atomic.Bool
}

func (p *pass) stopped() bool {
	return p.stop.Load()
}

// run executes one unit and records what it did. Quota, credential and
// cancellation outcomes stop further dispatches.
func (p *pass) run(asset string, scene int, fn func() (bool, error)) {
	if p.stopped() {
		return
	}
	ran, err := fn()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrVideoCancelled) {
			p.stop.Store(true)
			return
		}
		if errors.Is(err, ErrAudioRequired) {
			return
		}
		f := newFailure(asset, scene, err)
		p.failures = append(p.failures, f)
		if f.Kind == provider.KindQuotaExceeded || f.Kind == provider.KindMissingCredentials {
			p.stop.Store(true)
		}
		return
	}
	if !ran {
		return
	}
	switch asset {
	case AssetAudio:
		p.ranAudio = true
	case AssetCaptions:
		p.ranCapts = true
	case AssetImage:
		p.images = append(p.images, scene)
	}
}

func (p *pass) result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	images := slices.Clone(p.images)
	slices.Sort(images)
	if images == nil {
		images = []int{}
	}
	failures := slices.Clone(p.failures)
	slices.SortFunc(failures, func(a, b Failure) int {
		if a.Asset != b.Asset {
			return strings.Compare(a.Asset, b.Asset)
		}
		return a.Scene - b.Scene
	})
	return Result{
		Ran:      Ran{Audio: p.ranAudio, Captions: p.ranCapts, Images: images},
		Failures: failures,
	}
}
