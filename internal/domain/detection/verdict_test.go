package detection

import (
	"strings"
	"testing"
)

func TestVerdictThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0.0, "strong signs"},
		{0.29, "strong signs"},
		{0.3, "some signs"},
		{0.69, "some signs"},
		{0.7, "appears to be authentic"},
		{1.0, "appears to be authentic"},
	}
	for _, tc := range cases {
		got := Result{Authenticity: tc.score}.Verdict(KindImage)
		if !strings.Contains(got, tc.want) || !strings.HasPrefix(got, "This image") {
			t.Errorf("Verdict(%v) = %q", tc.score, got)
		}
	}
	if got := (Result{Authenticity: 0.18}).Verdict(KindAudio); !strings.HasPrefix(got, "This audio") {
		t.Errorf("audio verdict = %q", got)
	}
}

func TestDescribeIssues(t *testing.T) {
	r := Result{Metadata: ResultMetadata{Inconsistencies: []string{"noise_patterns", "odd_thing"}}}
	issues := r.DescribeIssues(KindImage)
	if len(issues) != 2 {
		t.Fatalf("issues = %+v", issues)
	}
	if issues[0].Label != "noise patterns" || issues[0].Description == "" {
		t.Errorf("known tag = %+v", issues[0])
	}
	if issues[1].Label != "odd thing" || issues[1].Description != "" {
		t.Errorf("unknown tag = %+v", issues[1])
	}
}

func TestFormatTimestamp(t *testing.T) {
	for in, want := range map[float64]string{0: "0:00", 2.4: "0:02", 65.9: "1:05", 600: "10:00", -3: "0:00"} {
		if got := FormatTimestamp(in); got != want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSegmentLabels(t *testing.T) {
	r := Result{ManipulatedSegments: []ManipulatedSegment{
		{Start: 2.4, End: 5.7, Confidence: 0.95, Type: "voice_synthesis"},
		{Start: 61, End: 72.8, Confidence: 0.88, Type: "content_splicing"},
	}}
	got := r.SegmentLabels()
	if len(got) != 2 {
		t.Fatalf("labels = %+v", got)
	}
	if got[0].Start != "0:02" || got[0].End != "0:05" || got[0].Label != "voice synthesis" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Start != "1:01" || got[1].End != "1:12" || got[1].Confidence != 0.88 {
		t.Errorf("second = %+v", got[1])
	}
	if labels := (Result{}).SegmentLabels(); labels == nil || len(labels) != 0 {
		t.Errorf("empty result labels = %#v", labels)
	}
}

func TestResultCloneIsDeep(t *testing.T) {
	r := Result{
		ManipulatedAreas: []ManipulatedArea{{Type: "face_swap"}},
		Metadata:         ResultMetadata{Inconsistencies: []string{"lighting"}},
	}
	c := r.Clone()
	c.ManipulatedAreas[0].Type = "changed"
	c.Metadata.Inconsistencies[0] = "changed"
	if r.ManipulatedAreas[0].Type != "face_swap" || r.Metadata.Inconsistencies[0] != "lighting" {
		t.Fatal("clone shares memory with original")
	}
}
