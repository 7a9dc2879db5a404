package prompt

import (
	"strings"
	"testing"
)

func TestParseResultFencedAndClamped(t *testing.T) {
	raw := "Here you go:\n```json\n" + `{
  "authenticity": 1.7,
  "confidence": -0.2,
  "manipulatedAreas": [{"x": 0.1, "y": 2, "width": 0.3, "height": 0.3, "confidence": 0.8}],
  "metadata": {"techniquesDetected": ["gan_generated"], "originalDetected": true}
}` + "\n```"

	r, err := ParseResult(raw)
	if err != nil {
		t.Fatal(err)
	}
	if r.Authenticity != 1 || r.Confidence != 0 {
		t.Fatalf("scores not clamped: %+v", r)
	}
	if len(r.ManipulatedAreas) != 1 || r.ManipulatedAreas[0].Y != 1 || r.ManipulatedAreas[0].Type != "other" {
		t.Fatalf("areas = %+v", r.ManipulatedAreas)
	}
	if r.Metadata.Inconsistencies == nil || len(r.Metadata.Inconsistencies) != 0 {
		t.Fatalf("inconsistencies = %#v", r.Metadata.Inconsistencies)
	}
	if !r.Metadata.OriginalDetected {
		t.Fatal("originalDetected lost")
	}
}

func TestParseResultRejectsGarbage(t *testing.T) {
	if _, err := ParseResult("I cannot analyze this image."); err == nil {
		t.Fatal("expected error")
	}
}

func TestPrompts(t *testing.T) {
	if !strings.Contains(GetSystemPrompt(), `"manipulatedAreas"`) {
		t.Fatal("system prompt must describe the result shape")
	}
	if !strings.Contains(GetUserPrompt("cat.png"), `"cat.png"`) {
		t.Fatal("user prompt should name the file")
	}
}
