// Package httpapi provides an HTTP client for a JSON generation API offering
// speech synthesis, transcription and image generation behind one base URL.
package httpapi

// ImageOptions contains parameters sent with every image request.
type ImageOptions struct {
	Width  int    // Image width in pixels
	Height int    // Image height in pixels
	Style  string // Style suffix appended by the provider, e.g. "cinematic"
}

// DefaultImageOptions returns portrait options sized for a vertical frame.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Width:  1080,
		Height: 1920,
		Style:  "cinematic, high detail",
	}
}

// SpeechOptions contains parameters sent with every speech request.
type SpeechOptions struct {
	Voice  string // Provider voice identifier
	Format string // Audio container, "mp3" by default
	Speed  float64
}

// DefaultSpeechOptions returns the narration defaults.
func DefaultSpeechOptions() SpeechOptions {
	return SpeechOptions{
		Voice:  "narrator",
		Format: "mp3",
		Speed:  1.0,
	}
}

// speechRequest represents the request body for the /v1/speech endpoint.
type speechRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Format string  `json:"format"`
	Speed  float64 `json:"speed,omitempty"`
}

// imageRequest represents the request body for the /v1/images endpoint.
type imageRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Style  string `json:"style,omitempty"`
	Seed   uint32 `json:"seed"`
}

// imageResponse represents the response from the /v1/images endpoint.
type imageResponse struct {
	ImageBase64 string `json:"image_base64"`
}
