package suggest

import (
	"log"
	"sync"

	"epgbridge/models"
	"epgbridge/services/store"
	"epgbridge/utils/similarity"
)

const (
	DefaultFloor     = 70
	DefaultConfident = 85
)

// Options tunes the engine's matcher and thresholds.
type Options struct {
	Floor     int // minimum score for a tentative suggestion
	Confident int // score at which one-click acceptance is offered
	MinGram   int
	MaxGram   int
	TopK      int
}

// Engine derives, for every unmapped streaming channel, the single best
// fuzzy candidate above the confidence floor. Output is advisory only; a
// suggestion is never applied without an explicit admin action.
type Engine struct {
	store *store.Store
	opts  Options

	mu          sync.RWMutex
	suggestions map[string]models.Suggestion // streamingID -> best candidate
}

// NewEngine creates an engine over the given store.
func NewEngine(st *store.Store, opts Options) *Engine {
	if opts.Floor <= 0 {
		opts.Floor = DefaultFloor
	}
	if opts.Confident <= 0 {
		opts.Confident = DefaultConfident
	}
	if opts.MinGram <= 0 {
		opts.MinGram = similarity.DefaultMinGram
	}
	if opts.MaxGram < opts.MinGram {
		opts.MaxGram = opts.MinGram
	}
	if opts.TopK <= 0 {
		opts.TopK = similarity.DefaultTopK
	}
	return &Engine{
		store:       st,
		opts:        opts,
		suggestions: make(map[string]models.Suggestion),
	}
}

// Generate recomputes the full suggestion map from scratch. Recomputation is
// cheap at this corpus size and only runs on data refresh, never per
// keystroke. Returns the number of suggestions retained.
func (e *Engine) Generate() int {
	epgChannels := e.store.EPGChannels()
	unmapped := e.store.UnmappedStreamingChannels()

	fresh := make(map[string]models.Suggestion)

	if len(epgChannels) > 0 && len(unmapped) > 0 {
		corpus := make([]string, len(epgChannels))
		for i, ch := range epgChannels {
			corpus[i] = ch.Label()
		}
		matcher := similarity.NewMatcherWithGrams(corpus, e.opts.MinGram, e.opts.MaxGram)

		for _, ch := range unmapped {
			matches := matcher.Top(ch.Name, e.opts.TopK)
			if len(matches) == 0 {
				continue
			}
			best := matches[0]
			if best.Score < e.opts.Floor {
				continue
			}
			epg := epgChannels[best.Index]
			fresh[ch.ID] = models.Suggestion{
				StreamingChannelID: ch.ID,
				EPGChannelID:       epg.ID,
				DisplayName:        epg.Label(),
				Score:              best.Score,
				Confident:          best.Score >= e.opts.Confident,
			}
		}
	}

	e.mu.Lock()
	e.suggestions = fresh
	e.mu.Unlock()

	log.Printf("[suggest] generated %d suggestions for %d unmapped channels", len(fresh), len(unmapped))
	return len(fresh)
}

// For returns the suggestion for a streaming channel. Mapped channels never
// have one: they are excluded at generation and invalidated on mapping.
func (e *Engine) For(streamingID string) (models.Suggestion, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.suggestions[streamingID]
	return s, ok
}

// All returns a copy of the current suggestion map.
func (e *Engine) All() map[string]models.Suggestion {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]models.Suggestion, len(e.suggestions))
	for k, v := range e.suggestions {
		out[k] = v
	}
	return out
}

// Count returns the number of current suggestions.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.suggestions)
}

// Invalidate drops the suggestion for a channel the instant it becomes
// mapped.
func (e *Engine) Invalidate(streamingID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.suggestions, streamingID)
}
