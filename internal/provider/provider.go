// Package provider defines the ports for the remote generation services
// (speech synthesis, transcription and image generation) and the fixed error
// taxonomy every adapter maps its failures into.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// SpeechSynthesizer turns narration text into audio bytes.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transcriber turns audio into WebVTT timed text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ImageGenerator turns a prompt into image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Kind is the category of a provider failure.
type Kind string

const (
	// KindTransient covers network errors, timeouts and temporary overload.
	KindTransient Kind = "transient"
	// KindQuotaExceeded covers exhausted billing or usage quotas.
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindInvalidInput covers requests the provider cannot process.
	KindInvalidInput Kind = "invalid_input"
	// KindPolicyViolation covers content refused by the provider's policy.
	KindPolicyViolation Kind = "policy_violation"
	// KindMissingCredentials covers absent or rejected API keys.
	KindMissingCredentials Kind = "missing_credentials"
)

// Retryable reports whether an automatic retry may succeed.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// Op names the remote operation that failed.
type Op string

const (
	OpSpeech     Op = "speech synthesis"
	OpTranscribe Op = "transcription"
	OpImage      Op = "image generation"
)

// Error is the classified failure returned by every adapter.
type Error struct {
	Kind     Kind
	Provider string
	Op       Op
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error.
func NewError(kind Kind, providerName string, op Op, err error) *Error {
	return &Error{Kind: kind, Provider: providerName, Op: op, Err: err}
}

// KindOf extracts the kind from err. Context deadlines count as transient.
// Unclassified errors return false.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient, true
	}
	return "", false
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// UserMessage renders err as a human-actionable sentence. Raw provider text
// never reaches the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if !errors.As(err, &pe) {
		if errors.Is(err, context.DeadlineExceeded) {
			return "a remote service timed out; retry later"
		}
		return "an unexpected internal error occurred; retry or contact support"
	}
	name := pe.Provider
	if name == "" {
		name = "the provider"
	}
	switch pe.Kind {
	case KindMissingCredentials:
		return fmt.Sprintf("%s credentials are missing or were rejected during %s; configure a valid API key and retry", name, pe.Op)
	case KindQuotaExceeded:
		return fmt.Sprintf("%s quota exceeded during %s; check the account's billing or wait for the quota to reset, then retry", name, pe.Op)
	case KindInvalidInput:
		return fmt.Sprintf("%s rejected the %s request as invalid; edit the content and retry", name, pe.Op)
	case KindPolicyViolation:
		return fmt.Sprintf("%s refused the %s request under its content policy; change the text and retry", name, pe.Op)
	default:
		return fmt.Sprintf("%s was temporarily unavailable during %s; retry later", name, pe.Op)
	}
}
