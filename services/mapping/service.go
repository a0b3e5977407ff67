package mapping

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"epgbridge/models"
	"epgbridge/services/dragdrop"
	"epgbridge/services/store"
	"epgbridge/services/suggest"
	"epgbridge/services/upstream"
)

// aliasTypeBackend is the alias_type recorded for mappings created here.
const aliasTypeBackend = "ultimate_backend"

var (
	ErrNoPendingMapping  = errors.New("no EPG channel selected; drag a channel first")
	ErrNoPendingUnmap    = errors.New("no unmap confirmation pending")
	ErrOperationInFlight = errors.New("another mapping operation is in progress")
	ErrLoadInProgress    = errors.New("a data load is already in progress")
	ErrNotMapped         = errors.New("channel has no alias")
	ErrNoSuggestion      = errors.New("channel has no suggestion")
)

// ConfirmRequiredError signals that the target channel already carries an
// alias and the caller must re-submit with explicit confirmation. It names
// both the existing and the proposed EPG channel so the confirmation can be
// meaningful.
type ConfirmRequiredError struct {
	StreamingID   string
	StreamingName string
	ExistingEPG   string
	ProposedEPG   string
}

func (e *ConfirmRequiredError) Error() string {
	return fmt.Sprintf("%s is already mapped to %s; confirm to replace with %s",
		e.StreamingName, e.ExistingEPG, e.ProposedEPG)
}

// Service sequences mapping operations: it validates a proposed mapping,
// gates overwrites behind confirmation, talks to the backend, and reconciles
// the store afterwards. The store is only mutated after the corresponding
// network call succeeded.
type Service struct {
	store    *store.Store
	client   *upstream.Client
	drag     *dragdrop.Controller
	suggest  *suggest.Engine
	fallback int // worker bound for per-channel alias loading

	mu           sync.Mutex
	inFlight     bool
	loading      bool
	pendingUnmap *models.PendingUnmap
}

// NewService wires the orchestrator.
func NewService(st *store.Store, client *upstream.Client, drag *dragdrop.Controller, sg *suggest.Engine, fallbackWorkers int) *Service {
	if fallbackWorkers <= 0 {
		fallbackWorkers = 4
	}
	return &Service{
		store:    st,
		client:   client,
		drag:     drag,
		suggest:  sg,
		fallback: fallbackWorkers,
	}
}

// begin claims the single in-flight slot. A second operation while one runs
// is rejected, not queued.
func (s *Service) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrOperationInFlight
	}
	s.inFlight = true
	return nil
}

func (s *Service) end() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// InFlight reports whether a mapping operation is currently running.
func (s *Service) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// HandleMapping applies the pending drag transaction to a streaming channel.
// When the channel already has an alias and confirmed is false, it returns a
// *ConfirmRequiredError and changes nothing; the caller re-invokes with
// confirmed set once the admin agreed.
func (s *Service) HandleMapping(ctx context.Context, streamingID string, confirmed bool) (models.AliasInfo, error) {
	if err := s.begin(); err != nil {
		return models.AliasInfo{}, err
	}
	defer s.end()

	pm, ok := s.drag.Pending()
	if !ok {
		return models.AliasInfo{}, ErrNoPendingMapping
	}

	ch, ok := s.store.StreamingChannel(streamingID)
	if !ok {
		return models.AliasInfo{}, store.ErrUnknownChannel
	}

	if existing, mapped := s.store.AliasInfo(streamingID); mapped {
		if !confirmed {
			existingName := existing.EPGChannelID
			if epg, ok := s.store.EPGChannel(existing.EPGChannelID); ok {
				existingName = epg.Label()
			}
			return models.AliasInfo{}, &ConfirmRequiredError{
				StreamingID:   streamingID,
				StreamingName: ch.Name,
				ExistingEPG:   existingName,
				ProposedEPG:   pm.EPGDisplayName,
			}
		}

		if err := s.client.DeleteAlias(ctx, existing.AliasID); err != nil {
			return models.AliasInfo{}, fmt.Errorf("remove existing alias: %w", err)
		}
		// The old alias is gone on the backend. If the create below fails
		// the channel stays unmapped; there is no rollback.
		s.store.RemoveAlias(streamingID)
	}

	created, err := s.client.CreateAlias(ctx, pm.EPGID, streamingID, aliasTypeBackend)
	if err != nil {
		return models.AliasInfo{}, fmt.Errorf("create alias: %w", err)
	}

	info := models.AliasInfo{
		AliasID:      created.ID,
		EPGChannelID: pm.EPGID,
		CreatedAt:    created.CreatedAt,
	}
	if err := s.store.AddAlias(streamingID, info); err != nil {
		return models.AliasInfo{}, err
	}

	s.drag.Cancel()
	s.suggest.Invalidate(streamingID)

	log.Printf("[mapping] mapped %s (%s) -> EPG %s", streamingID, ch.Name, pm.EPGID)
	return info, nil
}

// RequestUnmap stages the removal of a channel's alias. The returned pending
// unmap carries what the confirmation dialog needs; nothing is sent to the
// backend yet.
func (s *Service) RequestUnmap(streamingID string) (models.PendingUnmap, error) {
	ch, ok := s.store.StreamingChannel(streamingID)
	if !ok {
		return models.PendingUnmap{}, store.ErrUnknownChannel
	}
	info, ok := s.store.AliasInfo(streamingID)
	if !ok {
		return models.PendingUnmap{}, ErrNotMapped
	}

	pu := models.PendingUnmap{
		StreamingID:   streamingID,
		StreamingName: ch.Name,
		Alias:         info,
	}

	s.mu.Lock()
	s.pendingUnmap = &pu
	s.mu.Unlock()

	return pu, nil
}

// PendingUnmap returns the staged unmap, if any.
func (s *Service) PendingUnmap() (models.PendingUnmap, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingUnmap == nil {
		return models.PendingUnmap{}, false
	}
	return *s.pendingUnmap, true
}

// CancelUnmap discards the staged unmap.
func (s *Service) CancelUnmap() {
	s.mu.Lock()
	s.pendingUnmap = nil
	s.mu.Unlock()
}

// PerformUnmap executes the staged unmap: deletes the alias on the backend,
// then mirrors the removal in the store and regenerates suggestions for the
// freed channel.
func (s *Service) PerformUnmap(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	s.mu.Lock()
	pu := s.pendingUnmap
	s.mu.Unlock()
	if pu == nil {
		return ErrNoPendingUnmap
	}

	if err := s.client.DeleteAlias(ctx, pu.Alias.AliasID); err != nil {
		return fmt.Errorf("delete alias: %w", err)
	}

	s.store.RemoveAlias(pu.StreamingID)
	s.CancelUnmap()
	s.suggest.Generate()

	log.Printf("[mapping] unmapped %s (%s)", pu.StreamingID, pu.StreamingName)
	return nil
}

// AcceptSuggestion maps a channel to its current suggestion through the same
// orchestration path as a drag-drop, so every invariant holds. Only offered
// for unmapped channels, so no confirmation round-trip is needed.
func (s *Service) AcceptSuggestion(ctx context.Context, streamingID string) (models.AliasInfo, error) {
	sug, ok := s.suggest.For(streamingID)
	if !ok {
		return models.AliasInfo{}, ErrNoSuggestion
	}

	epg, ok := s.store.EPGChannel(sug.EPGChannelID)
	if !ok {
		return models.AliasInfo{}, fmt.Errorf("suggested EPG channel %s no longer exists", sug.EPGChannelID)
	}

	s.drag.Begin(epg.ID, epg.Label(), epg.Name)
	info, err := s.HandleMapping(ctx, streamingID, false)
	if err != nil {
		s.drag.Cancel()
		return models.AliasInfo{}, err
	}
	return info, nil
}

// LoadAll fetches providers and EPG channels, then reloads the selected
// provider's channels and aliases when one is selected. It is the explicit
// refresh path; there are no timers.
func (s *Service) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	providers, err := s.client.FetchProviders(ctx)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	s.store.SetProviders(providers)

	epgChannels, err := s.client.FetchEPGChannels(ctx)
	if err != nil {
		return fmt.Errorf("load EPG channels: %w", err)
	}
	s.store.SetEPGChannels(epgChannels)

	log.Printf("[mapping] loaded %d providers, %d EPG channels", len(providers), len(epgChannels))

	if providerID, ok := s.store.SelectedProvider(); ok {
		return s.loadProviderChannels(ctx, providerID)
	}
	return nil
}

// SelectProvider switches the mapping view to a provider and loads its
// channels and aliases.
func (s *Service) SelectProvider(ctx context.Context, providerID string) error {
	if err := s.store.SetSelectedProvider(providerID); err != nil {
		return err
	}
	return s.loadProviderChannels(ctx, providerID)
}

func (s *Service) loadProviderChannels(ctx context.Context, providerID string) error {
	channels, err := s.client.FetchStreamingChannels(ctx, providerID)
	if err != nil {
		return fmt.Errorf("load channels for %s: %w", providerID, err)
	}
	s.store.SetStreamingChannels(channels)

	if err := s.loadAliases(ctx); err != nil {
		return err
	}

	s.suggest.Generate()
	log.Printf("[mapping] provider %s: %d channels, %d mapped", providerID, len(channels), s.store.Stats().Mapped)
	return nil
}

// loadAliases populates the alias map from the bulk endpoint, falling back
// to per-EPG-channel lookups when the backend does not implement it. The
// fallback fan-out is bounded by a small worker pool instead of the full
// per-channel serialization the bulk-less path would otherwise force.
func (s *Service) loadAliases(ctx context.Context) error {
	aliases, err := s.client.FetchAliases(ctx)
	if err != nil {
		return fmt.Errorf("load aliases: %w", err)
	}

	if aliases == nil {
		log.Printf("[mapping] bulk alias endpoint absent, falling back to per-channel lookups")
		aliases, err = s.loadAliasesPerChannel(ctx)
		if err != nil {
			return err
		}
	}

	applied := 0
	for _, a := range aliases {
		info := models.AliasInfo{
			AliasID:      a.ID,
			EPGChannelID: a.ChannelID,
			CreatedAt:    a.CreatedAt,
		}
		// Aliases referencing channels outside the current provider are
		// skipped, not errors.
		if err := s.store.AddAlias(a.Alias, info); err == nil {
			applied++
		}
	}
	log.Printf("[mapping] applied %d of %d aliases", applied, len(aliases))
	return nil
}

func (s *Service) loadAliasesPerChannel(ctx context.Context) ([]upstream.Alias, error) {
	epgChannels := s.store.EPGChannels()

	var mu sync.Mutex
	var collected []upstream.Alias

	p := pool.New().WithMaxGoroutines(s.fallback).WithContext(ctx)
	for _, ch := range epgChannels {
		ch := ch
		p.Go(func(ctx context.Context) error {
			aliases, err := s.client.FetchChannelAliases(ctx, ch.ID)
			if err != nil {
				// One channel failing must not sink the whole load.
				log.Printf("[mapping] alias lookup for %s failed: %v", ch.ID, err)
				return nil
			}
			mu.Lock()
			collected = append(collected, aliases...)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return collected, nil
}

// Stats returns the dashboard counters, including the live suggestion count.
func (s *Service) Stats() models.MappingStats {
	stats := s.store.Stats()
	stats.Suggestions = s.suggest.Count()
	return stats
}

// NewLoadContext returns the context used for background data loads.
func NewLoadContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Minute)
}
