package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		s1       string
		s2       string
		minScore int
	}{
		{
			name:     "identical strings",
			s1:       "Kanal Eins",
			s2:       "Kanal Eins",
			minScore: 100,
		},
		{
			name:     "case insensitive",
			s1:       "Kanal Eins",
			s2:       "KANAL EINS",
			minScore: 100,
		},
		{
			name:     "punctuation ignored",
			s1:       "Das.Erste",
			s2:       "Das Erste",
			minScore: 100,
		},
		{
			name:     "hd suffix",
			s1:       "Kanal Eins",
			s2:       "Kanal Eins HD",
			minScore: 70,
		},
		{
			name:     "ampersand vs and",
			s1:       "Film & Serien",
			s2:       "Film and Serien",
			minScore: 100,
		},
		{
			name:     "accented names",
			s1:       "Télé Cinq",
			s2:       "Tele Cinq",
			minScore: 100,
		},
		{
			name:     "unrelated names stay low",
			s1:       "Sport Arena",
			s2:       "Kinderkanal",
			minScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.s1, tt.s2)
			assert.GreaterOrEqual(t, got, tt.minScore)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestScoreUnrelatedBelowFloor(t *testing.T) {
	// Completely different names must never clear the suggestion floor.
	assert.Less(t, Score("Sport Arena", "Kinderkanal"), 70)
	assert.Less(t, Score("News 24", "Music Hits"), 70)
}

func TestTopRanksExactMatchFirst(t *testing.T) {
	corpus := []string{"Kanal Zwei", "Kanal Eins HD", "Kanal Eins", "Sport Arena"}
	m := NewMatcher(corpus)

	matches := m.Top("Kanal Eins", 5)
	require.NotEmpty(t, matches)

	assert.Equal(t, "Kanal Eins", matches[0].Name)
	assert.Equal(t, 100, matches[0].Score)
	assert.Equal(t, 2, matches[0].Index)

	// The HD variant should follow as a tentative match.
	require.Greater(t, len(matches), 1)
	assert.Equal(t, "Kanal Eins HD", matches[1].Name)
	assert.GreaterOrEqual(t, matches[1].Score, 70)
}

func TestTopRespectsK(t *testing.T) {
	corpus := []string{"News One", "News Two", "News Three", "News Four", "News Five", "News Six"}
	m := NewMatcher(corpus)

	matches := m.Top("News", 3)
	assert.LessOrEqual(t, len(matches), 3)

	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestTopEmptyInputs(t *testing.T) {
	m := NewMatcher([]string{"Kanal Eins"})
	assert.Empty(t, m.Top("", 5))
	assert.Empty(t, m.Top("   ", 5))

	empty := NewMatcher(nil)
	assert.Empty(t, empty.Top("Kanal Eins", 5))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "kanal eins hd", Normalize("Kanal.Eins-HD"))
	assert.Equal(t, "law and order", Normalize("Law & Order"))
	assert.Equal(t, "", Normalize("!!!"))
}
