package similarity

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

const (
	// DefaultMinGram and DefaultMaxGram bound the n-gram sizes used for
	// candidate prefiltering.
	DefaultMinGram = 2
	DefaultMaxGram = 3

	// DefaultTopK is the number of candidates returned by Top.
	DefaultTopK = 5
)

// Match is a scored candidate from the matcher's corpus.
type Match struct {
	Index int    // position in the corpus slice passed to NewMatcher
	Name  string // original (un-normalized) corpus name
	Score int    // 0-100, 100 meaning an exact normalized match
}

type entry struct {
	name  string
	norm  string
	grams map[string]struct{}
}

// Matcher scores a query name against a fixed corpus of channel names.
// It is stateless once built; rebuild it when the corpus changes.
type Matcher struct {
	minGram int
	maxGram int
	entries []entry
}

// NewMatcher builds a matcher over the given corpus with default gram sizes.
func NewMatcher(corpus []string) *Matcher {
	return NewMatcherWithGrams(corpus, DefaultMinGram, DefaultMaxGram)
}

// NewMatcherWithGrams builds a matcher with an explicit gram size range.
func NewMatcherWithGrams(corpus []string, minGram, maxGram int) *Matcher {
	if minGram < 1 {
		minGram = DefaultMinGram
	}
	if maxGram < minGram {
		maxGram = minGram
	}

	m := &Matcher{
		minGram: minGram,
		maxGram: maxGram,
		entries: make([]entry, 0, len(corpus)),
	}
	for _, name := range corpus {
		norm := Normalize(name)
		m.entries = append(m.entries, entry{
			name:  name,
			norm:  norm,
			grams: ngrams(norm, minGram, maxGram),
		})
	}
	return m
}

// Top returns up to k candidates for the query, sorted descending by score.
// An empty query or empty corpus yields an empty result, never an error.
func (m *Matcher) Top(query string, k int) []Match {
	if k <= 0 {
		k = DefaultTopK
	}

	q := Normalize(query)
	if q == "" || len(m.entries) == 0 {
		return nil
	}
	qGrams := ngrams(q, m.minGram, m.maxGram)

	// Gram-overlap prefilter: keep a generous slice of the corpus so the
	// edit-distance refinement only runs on plausible candidates.
	type candidate struct {
		idx     int
		overlap float64
	}
	candidates := make([]candidate, 0, len(m.entries))
	for i, e := range m.entries {
		if e.norm == "" {
			continue
		}
		if e.norm == q {
			// Exact normalized match short-circuits refinement.
			candidates = append(candidates, candidate{idx: i, overlap: 2.0})
			continue
		}
		if ov := gramOverlap(qGrams, e.grams); ov > 0 {
			candidates = append(candidates, candidate{idx: i, overlap: ov})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].overlap == candidates[j].overlap {
			return candidates[i].idx < candidates[j].idx
		}
		return candidates[i].overlap > candidates[j].overlap
	})
	limit := 4 * k
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		e := m.entries[c.idx]
		matches = append(matches, Match{
			Index: c.idx,
			Name:  e.name,
			Score: scoreNormalized(q, e.norm),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Score returns the similarity of two names on a 0-100 scale.
func Score(a, b string) int {
	return scoreNormalized(Normalize(a), Normalize(b))
}

func scoreNormalized(a, b string) int {
	if a == b {
		if a == "" {
			return 0
		}
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	distance := levenshtein(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}

	score := int(100 * (1.0 - float64(distance)/float64(maxLen)))
	if score < 0 {
		score = 0
	}
	return score
}

// Normalize transliterates to ASCII, lowercases, converts "&" to "and",
// strips punctuation, and collapses whitespace.
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' || r == '/':
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// ngrams builds the set of character n-grams of sizes [minGram, maxGram]
// over the normalized string with spaces removed.
func ngrams(norm string, minGram, maxGram int) map[string]struct{} {
	compact := []rune(strings.ReplaceAll(norm, " ", ""))
	grams := make(map[string]struct{})
	for size := minGram; size <= maxGram; size++ {
		if len(compact) < size {
			break
		}
		for i := 0; i+size <= len(compact); i++ {
			grams[string(compact[i:i+size])] = struct{}{}
		}
	}
	return grams
}

// gramOverlap is the Sorensen-Dice coefficient of two gram sets.
func gramOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for g := range small {
		if _, ok := large[g]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}

// levenshtein calculates the edit distance between two strings.
func levenshtein(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = minInt(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
