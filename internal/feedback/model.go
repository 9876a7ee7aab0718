// Package feedback models the scored review returned by the AI provider.
package feedback

import "math"

// TipType is either good or improve.
type TipType string

const (
	TipGood    TipType = "good"
	TipImprove TipType = "improve"
)

// Tip is one observation in a section.
type Tip struct {
	Type        TipType `json:"type"`
	Tip         string  `json:"tip"`
	Explanation string  `json:"explanation,omitempty"`
}

// Section is a scored category with ordered tips.
type Section struct {
	Score float64 `json:"score"`
	Tips  []Tip   `json:"tips"`
}

// Feedback is the full review of one resume.
type Feedback struct {
	OverallScore float64 `json:"overallScore"`
	ATS          Section `json:"ATS"`
	ToneAndStyle Section `json:"toneAndStyle"`
	Content      Section `json:"content"`
	Structure    Section `json:"structure"`
	Skills       Section `json:"skills"`
}

// NamedSection pairs a section with its labels.
type NamedSection struct {
	Key     string
	Label   string
	Heading string
	Section Section
}

// Sections returns the five categories in display order.
func (f Feedback) Sections() []NamedSection {
	return []NamedSection{
		{Key: "ATS", Label: "ATS", Heading: "ATS Suggestions", Section: f.ATS},
		{Key: "toneAndStyle", Label: "Tone & Style", Heading: "Tone & Style", Section: f.ToneAndStyle},
		{Key: "content", Label: "Content", Heading: "Content", Section: f.Content},
		{Key: "structure", Label: "Structure", Heading: "Structure", Section: f.Structure},
		{Key: "skills", Label: "Skills", Heading: "Skills", Section: f.Skills},
	}
}

// Display rounds a score and bounds it to [0,100].
func Display(score float64) int {
	if math.IsNaN(score) {
		return 0
	}
	v := math.Round(score)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}
