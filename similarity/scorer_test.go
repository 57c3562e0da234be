package similarity_test

import (
	"testing"

	"emwananchi-core/similarity"

	"github.com/stretchr/testify/assert"
)

func TestTokenOverlapScore(t *testing.T) {
	s := similarity.TokenOverlapScorer{}

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{
			name: "identical text",
			a:    "Burst water pipe flooding the road",
			b:    "Burst water pipe flooding the road",
			want: 1,
		},
		{
			name: "stopwords and punctuation ignored",
			a:    "Burst water pipe, flooding the road!",
			b:    "burst WATER pipe flooding a road",
			want: 1,
		},
		{
			name: "no overlap",
			a:    "Broken street light",
			b:    "Burst water pipe",
			want: 0,
		},
		{
			name: "empty input",
			a:    "",
			b:    "Burst water pipe",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Score(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTokenOverlapMonotonic(t *testing.T) {
	s := similarity.TokenOverlapScorer{}

	base := "pothole kenyatta avenue junction crossing"
	// Each step shares one more meaningful token with base over the same
	// total vocabulary size.
	less := s.Score(base, "pothole sidewalk gravel drainage ditch")
	mid := s.Score(base, "pothole kenyatta gravel drainage ditch")
	more := s.Score(base, "pothole kenyatta avenue drainage ditch")

	assert.Less(t, less, mid)
	assert.Less(t, mid, more)
}

func TestTokenOverlapDeterministic(t *testing.T) {
	s := similarity.TokenOverlapScorer{}
	a := "Streetlight flickering at Ngong Road roundabout"
	b := "Flickering streetlight near Ngong Road"

	first := s.Score(a, b)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(a, b))
	}
}
