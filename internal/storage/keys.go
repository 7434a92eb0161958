package storage

import "fmt"

// Kind identifies an asset stored for a video.
type Kind string

// Asset kinds.
const (
	KindSceneImage Kind = "scene_image"
	KindAudio      Kind = "audio"
	KindCaptions   Kind = "captions"
	KindFinal      Kind = "final"
)

// VideoPrefix returns the prefix every asset of videoID is stored under.
func VideoPrefix(videoID string) string {
	return "videos/" + videoID + "/"
}

// Key returns the blob key of an asset. sceneIndex is zero-based and only
// used for KindSceneImage; scene files are numbered from 001.
func Key(videoID string, kind Kind, sceneIndex int) string {
	switch kind {
	case KindSceneImage:
		return fmt.Sprintf("%sscenes/%03d.png", VideoPrefix(videoID), sceneIndex+1)
	case KindAudio:
		return VideoPrefix(videoID) + "audio.mp3"
	case KindCaptions:
		return VideoPrefix(videoID) + "captions.srt"
	case KindFinal:
		return VideoPrefix(videoID) + "final.mp4"
	default:
		return VideoPrefix(videoID) + string(kind)
	}
}

// SceneImageKey returns the key of the image for the zero-based scene index.
func SceneImageKey(videoID string, sceneIndex int) string {
	return Key(videoID, KindSceneImage, sceneIndex)
}
