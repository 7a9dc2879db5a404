package mock

import (
	"context"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

// imageResult is the fixed payload returned for every image.
var imageResult = domain.Result{
	Authenticity: 0.23, // 0 is fake, 1 is authentic
	Confidence:   0.89,
	ManipulatedAreas: []domain.ManipulatedArea{
		{X: 0.3, Y: 0.4, Width: 0.2, Height: 0.1, Confidence: 0.92, Type: "face_swap"},
		{X: 0.5, Y: 0.5, Width: 0.1, Height: 0.1, Confidence: 0.78, Type: "texture"},
	},
	Metadata: domain.ResultMetadata{
		Inconsistencies:    []string{"lighting", "shadows", "noise_patterns"},
		TechniquesDetected: []string{"gan_generated", "face_swap"},
		OriginalDetected:   false,
	},
}

// audioResult is the fixed payload returned for every audio file.
var audioResult = domain.Result{
	Authenticity: 0.18,
	Confidence:   0.92,
	ManipulatedSegments: []domain.ManipulatedSegment{
		{Start: 2.4, End: 5.7, Confidence: 0.95, Type: "voice_synthesis"},
		{Start: 10.2, End: 12.8, Confidence: 0.88, Type: "content_splicing"},
	},
	Metadata: domain.ResultMetadata{
		Inconsistencies:    []string{"frequency_artifacts", "unnatural_pauses", "voice_timbre"},
		TechniquesDetected: []string{"neural_voice", "audio_splicing"},
		OriginalDetected:   false,
	},
}

// MockImageProvider never looks at the file.
type MockImageProvider struct{}

func (MockImageProvider) Detect(ctx context.Context, _ domain.SubmittedFile, _ domain.Preview) (domain.Result, error) {
	return imageResult.Clone(), nil
}

// MockAudioProvider never looks at the file.
type MockAudioProvider struct{}

func (MockAudioProvider) Detect(ctx context.Context, _ domain.SubmittedFile, _ domain.Preview) (domain.Result, error) {
	return audioResult.Clone(), nil
}

// Providers returns the mock provider set keyed by media kind.
func Providers() domain.Providers {
	return domain.Providers{
		domain.KindImage: MockImageProvider{},
		domain.KindAudio: MockAudioProvider{},
	}
}
