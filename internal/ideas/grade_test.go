package ideas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGrade(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		score  float64
		found  bool
		labels map[string]float64
	}{
		{
			name:   "overall wins",
			text:   "Feasibility: 6\nOriginality: 9\nOverall score: 7.5",
			score:  7.5,
			found:  true,
			labels: map[string]float64{"feasibility": 6, "originality": 9, "overall score": 7.5},
		},
		{
			name:   "fraction scaled",
			text:   "**Grade**: 4/5\nThe answer was mostly right.",
			score:  8,
			found:  true,
			labels: map[string]float64{"grade": 8},
		},
		{
			name:   "percentage scaled",
			text:   "- Score: 85%",
			score:  8.5,
			found:  true,
			labels: map[string]float64{"score": 8.5},
		},
		{
			name:   "mean without overall label",
			text:   "Clarity: 6\nDepth: 8",
			score:  7,
			found:  true,
			labels: map[string]float64{"clarity": 6, "depth": 8},
		},
		{
			name:   "clamped",
			text:   "Score: 42",
			score:  10,
			found:  true,
			labels: map[string]float64{"score": 10},
		},
		{
			name:   "letter grade ignored",
			text:   "Grade: B\nGood effort.",
			labels: map[string]float64{},
		},
		{
			name:   "first occurrence kept",
			text:   "Score: 3\nScore: 9",
			score:  3,
			found:  true,
			labels: map[string]float64{"score": 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := ParseGrade(tt.text)
			assert.Equal(t, tt.found, g.Found)
			assert.InDelta(t, tt.score, g.Score, 1e-9)
			assert.Equal(t, tt.labels, g.Labels)
		})
	}
}
