package layout

import "strings"

// MeasureFunc returns the rendered width of s in points.
type MeasureFunc func(s string) (float64, error)

// Wrap breaks text into lines no wider than maxWidth. Lines break at single
// spaces; runs of spaces inside a line are kept as written and the spaces at
// a break are dropped. Words wider than a line are split by rune. Explicit
// newlines start a new line. Empty text yields a single empty line.
func Wrap(text string, maxWidth float64, measure MeasureFunc) ([]string, error) {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		current := ""
		open, wrapped := false, false
		for _, word := range strings.Split(para, " ") {
			if !open && wrapped && word == "" {
				continue
			}
			candidate := word
			if open {
				candidate = current + " " + word
			}
			w, err := measure(candidate)
			if err != nil {
				return nil, err
			}
			if w <= maxWidth {
				current, open = candidate, true
				continue
			}
			if open {
				if line := strings.TrimRight(current, " "); line != "" {
					lines = append(lines, line)
				}
				current, open, wrapped = "", false, true
			}
			if word == "" {
				continue
			}
			ww, err := measure(word)
			if err != nil {
				return nil, err
			}
			if ww <= maxWidth {
				current, open = word, true
				continue
			}
			parts, rest, err := splitWord(word, maxWidth, measure)
			if err != nil {
				return nil, err
			}
			lines = append(lines, parts...)
			current, open, wrapped = rest, true, true
		}
		lines = append(lines, current)
	}
	return lines, nil
}

// splitWord cuts word into full-width chunks and returns the trailing piece.
func splitWord(word string, maxWidth float64, measure MeasureFunc) ([]string, string, error) {
	var parts []string
	chunk := []rune{}
	for _, r := range word {
		next := string(append(chunk, r))
		w, err := measure(next)
		if err != nil {
			return nil, "", err
		}
		if w > maxWidth && len(chunk) > 0 {
			parts = append(parts, string(chunk))
			chunk = []rune{r}
			continue
		}
		chunk = append(chunk, r)
	}
	return parts, string(chunk), nil
}
