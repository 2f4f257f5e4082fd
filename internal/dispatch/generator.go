package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

// ErrBackendUnavailable is returned by generators that have no backend behind
// them.
var ErrBackendUnavailable = errors.New("generation backend not configured")

// ImageRequest asks for Count images from a prompt, optionally conditioned on
// reference images.
type ImageRequest struct {
	Prompt      string
	Model       string
	InputImages []string
	AspectRatio string
	Resolution  string
	Count       int
}

// VideoRequest asks for Count videos. StartImage, VideoInput and
// ReferenceImages are set according to Mode.
type VideoRequest struct {
	Prompt          string
	Model           string
	AspectRatio     string
	Resolution      string
	Count           int
	Mode            document.VideoGenerationMode
	StartImage      string
	VideoInput      string
	ReferenceImages []string
}

// VideoResult is a generated video. FallbackImage is set when the backend
// could only produce a still preview, in which case URI is an image.
type VideoResult struct {
	URI           string
	URIs          []string
	Metadata      json.RawMessage
	FallbackImage bool
}

// ChatMessage is one turn of an assistant conversation.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Generator is the AI backend. Implementations must be safe for concurrent
// use; every call honours ctx cancellation.
type Generator interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]string, error)
	GenerateVideo(ctx context.Context, req VideoRequest) (VideoResult, error)
	GenerateAudio(ctx context.Context, prompt string) (string, error)
	AnalyzeVideo(ctx context.Context, video, prompt, model string) (string, error)
	EditImage(ctx context.Context, image, prompt, model string) (string, error)
	PlanStoryboard(ctx context.Context, prompt, background string) ([]string, error)
	Chat(ctx context.Context, history []ChatMessage, message string) (string, error)
}

// Unconfigured fails every request with ErrBackendUnavailable.
type Unconfigured struct{}

var _ Generator = Unconfigured{}

func (Unconfigured) GenerateImage(context.Context, ImageRequest) ([]string, error) {
	return nil, ErrBackendUnavailable
}

func (Unconfigured) GenerateVideo(context.Context, VideoRequest) (VideoResult, error) {
	return VideoResult{}, ErrBackendUnavailable
}

func (Unconfigured) GenerateAudio(context.Context, string) (string, error) {
	return "", ErrBackendUnavailable
}

func (Unconfigured) AnalyzeVideo(context.Context, string, string, string) (string, error) {
	return "", ErrBackendUnavailable
}

func (Unconfigured) EditImage(context.Context, string, string, string) (string, error) {
	return "", ErrBackendUnavailable
}

func (Unconfigured) PlanStoryboard(context.Context, string, string) ([]string, error) {
	return nil, ErrBackendUnavailable
}

func (Unconfigured) Chat(context.Context, []ChatMessage, string) (string, error) {
	return "", ErrBackendUnavailable
}
