package detection

import (
	"fmt"
	"math"
	"strings"
)

// Verdict turns the authenticity score into the sentence shown under the scores.
func (r Result) Verdict(kind MediaKind) string {
	switch {
	case r.Authenticity < 0.3:
		return fmt.Sprintf("This %s shows strong signs of manipulation or AI generation.", kind)
	case r.Authenticity < 0.7:
		return fmt.Sprintf("This %s shows some signs of potential manipulation.", kind)
	default:
		return fmt.Sprintf("This %s appears to be authentic.", kind)
	}
}

var issueDescriptions = map[MediaKind]map[string]string{
	KindImage: {
		"lighting":       "Inconsistent lighting patterns detected across the image.",
		"shadows":        "Shadow directions don't match the light sources in the image.",
		"noise_patterns": "Unusual noise patterns detected that differ from natural camera noise.",
	},
	KindAudio: {
		"frequency_artifacts": "Unusual frequency patterns detected that are typical of AI-generated audio.",
		"unnatural_pauses":    "Speech rhythm contains unnatural pauses or transitions between words.",
		"voice_timbre":        "Voice characteristics show inconsistencies in timbre and resonance.",
	},
}

// Issue is an inconsistency tag with its human-readable explanation.
type Issue struct {
	Tag         string `json:"tag"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// DescribeIssues expands the inconsistency tags of a result.
func (r Result) DescribeIssues(kind MediaKind) []Issue {
	out := make([]Issue, 0, len(r.Metadata.Inconsistencies))
	for _, tag := range r.Metadata.Inconsistencies {
		out = append(out, Issue{
			Tag:         tag,
			Label:       HumanizeTag(tag),
			Description: issueDescriptions[kind][tag],
		})
	}
	return out
}

// HumanizeTag turns "noise_patterns" into "noise patterns".
func HumanizeTag(tag string) string {
	return strings.ReplaceAll(tag, "_", " ")
}

// FormatTimestamp renders seconds as m:ss.
func FormatTimestamp(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	total := int(math.Floor(sec))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// SegmentLabel is a flagged audio segment as shown on the timeline.
type SegmentLabel struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Type       string  `json:"type"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// SegmentLabels renders the manipulated segments with m:ss bounds.
func (r Result) SegmentLabels() []SegmentLabel {
	out := make([]SegmentLabel, 0, len(r.ManipulatedSegments))
	for _, seg := range r.ManipulatedSegments {
		out = append(out, SegmentLabel{
			Start:      FormatTimestamp(seg.Start),
			End:        FormatTimestamp(seg.End),
			Type:       seg.Type,
			Label:      HumanizeTag(seg.Type),
			Confidence: seg.Confidence,
		})
	}
	return out
}
