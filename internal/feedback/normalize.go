package feedback

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotObject is returned when the raw feedback is not a JSON object.
var ErrNotObject = errors.New("feedback must be a JSON object")

// Normalize coerces loosely shaped provider output into a Feedback. Unknown
// tip types become improve, missing or non-numeric scores become 0, non-array
// tip lists become empty, and ATS tips carry no explanation.
func Normalize(raw []byte) (Feedback, error) {
	var root any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback: %w", err)
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return Feedback{}, ErrNotObject
	}

	ats := section(obj["ATS"])
	for i := range ats.Tips {
		ats.Tips[i].Explanation = ""
	}
	return Feedback{
		OverallScore: number(obj["overallScore"]),
		ATS:          ats,
		ToneAndStyle: section(obj["toneAndStyle"]),
		Content:      section(obj["content"]),
		Structure:    section(obj["structure"]),
		Skills:       section(obj["skills"]),
	}, nil
}

func section(v any) Section {
	m, _ := v.(map[string]any)
	out := Section{Score: number(m["score"]), Tips: []Tip{}}
	list, ok := m["tips"].([]any)
	if !ok {
		return out
	}
	for _, item := range list {
		t, _ := item.(map[string]any)
		tip := Tip{Type: TipImprove, Tip: text(t["tip"]), Explanation: text(t["explanation"])}
		if s, ok := t["type"].(string); ok && s == string(TipGood) {
			tip.Type = TipGood
		}
		out.Tips = append(out.Tips, tip)
	}
	return out
}

func number(v any) float64 {
	var f float64
	switch x := v.(type) {
	case json.Number:
		f, _ = x.Float64()
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if x {
			return 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
