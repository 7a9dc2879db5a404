package prompt

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

// GetSystemPrompt returns the instruction that pins the model to the result JSON shape.
func GetSystemPrompt() string {
	return strings.TrimSpace(`
You are an image forensics analyst. Decide whether the supplied image is authentic,
manipulated or AI generated. Respond with a single JSON object and nothing else:

{
  "authenticity": number between 0 (fake) and 1 (authentic),
  "confidence": number between 0 and 1,
  "manipulatedAreas": [
    {"x": 0-1, "y": 0-1, "width": 0-1, "height": 0-1, "confidence": 0-1, "type": "face_swap|texture|inpainting|gan_generated|other"}
  ],
  "metadata": {
    "inconsistencies": ["lighting", "shadows", "noise_patterns", ...],
    "techniquesDetected": ["gan_generated", "face_swap", ...],
    "originalDetected": boolean
  }
}

Coordinates are fractions of the image width/height measured from the top-left corner.
Use snake_case tags. Return an empty manipulatedAreas array when nothing is flagged.
`)
}

// GetUserPrompt is the text part sent alongside the image.
func GetUserPrompt(fileName string) string {
	if fileName == "" {
		return "Analyze this image for signs of deepfake manipulation."
	}
	return fmt.Sprintf("Analyze the image %q for signs of deepfake manipulation.", fileName)
}

// ParseResult decodes the model reply into a Result, tolerating code fences and
// clamping every score into [0,1].
func ParseResult(raw string) (domain.Result, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '{'); i > 0 {
		s = s[i:]
	}
	if i := strings.LastIndexByte(s, '}'); i >= 0 && i < len(s)-1 {
		s = s[:i+1]
	}

	var r domain.Result
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return domain.Result{}, fmt.Errorf("decode model reply: %w", err)
	}

	r.Authenticity = unit(r.Authenticity)
	r.Confidence = unit(r.Confidence)
	for i := range r.ManipulatedAreas {
		a := &r.ManipulatedAreas[i]
		a.X, a.Y = unit(a.X), unit(a.Y)
		a.Width, a.Height = unit(a.Width), unit(a.Height)
		a.Confidence = unit(a.Confidence)
		if a.Type == "" {
			a.Type = "other"
		}
	}
	if r.Metadata.Inconsistencies == nil {
		r.Metadata.Inconsistencies = []string{}
	}
	if r.Metadata.TechniquesDetected == nil {
		r.Metadata.TechniquesDetected = []string{}
	}
	return r, nil
}

func unit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
