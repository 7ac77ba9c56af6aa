package ideas

import (
	"regexp"
	"strconv"
	"strings"
)

// Grade is the numeric reading of a free-text grade.
type Grade struct {
	// Labels maps each lowercased label to its value on a 0-10 scale.
	Labels map[string]float64

	// Score is the overall score on a 0-10 scale.
	Score float64

	// Found reports whether any label: value line was present.
	Found bool
}

var gradeLine = regexp.MustCompile(`(?i)^[\s#*>\-]*([a-z][a-z _\-]*?)[\s*]*[:=][\s*]*(-?\d+(?:\.\d+)?)\s*(?:/\s*(\d+(?:\.\d+)?)|%)?`)

// overallLabels are tried in order when picking Score.
var overallLabels = []string{"overall score", "overall", "final score", "score", "final grade", "grade", "rating"}

// ParseGrade reads label: value lines such as "Feasibility: 7" or
// "Overall score: 8.5/10". Fractions and percentages are scaled to 0-10.
// Score is the first overall label present, else the mean of all labels.
func ParseGrade(text string) Grade {
	g := Grade{Labels: make(map[string]float64)}
	for _, line := range strings.Split(text, "\n") {
		m := gradeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(m[1], "_", " "))), " ")
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		switch {
		case m[3] != "":
			d, err := strconv.ParseFloat(m[3], 64)
			if err != nil || d == 0 {
				continue
			}
			v = v / d * 10
		case strings.HasSuffix(strings.TrimSpace(m[0]), "%"):
			v /= 10
		}
		if _, dup := g.Labels[label]; !dup {
			g.Labels[label] = clamp(v)
		}
	}
	if len(g.Labels) == 0 {
		return g
	}
	g.Found = true

	for _, l := range overallLabels {
		if v, ok := g.Labels[l]; ok {
			g.Score = v
			return g
		}
	}
	var sum float64
	for _, v := range g.Labels {
		sum += v
	}
	g.Score = sum / float64(len(g.Labels))
	return g
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	default:
		return v
	}
}
