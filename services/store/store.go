package store

import (
	"errors"
	"strings"
	"sync"

	"epgbridge/models"
)

var (
	ErrUnknownProvider = errors.New("provider not found")
	ErrUnknownChannel  = errors.New("streaming channel not found")
)

// Store is the single mutable source of truth for the mapping screen: the
// current provider list, channel lists, alias map, and the lookup indices
// over them. All mutation happens under one lock so the indices never drift
// from the collections they cover. The store performs no I/O.
type Store struct {
	mu sync.RWMutex

	providers        []models.Provider
	selectedProvider string

	streaming     []models.StreamingChannel
	streamingByID map[string]models.StreamingChannel

	epg     []models.EPGChannel
	epgByID map[string]models.EPGChannel

	aliases      map[string]models.AliasInfo // streamingID -> alias
	streamsByEPG map[string][]string         // epgID -> streamingIDs (reverse index)
}

// New creates an empty store.
func New() *Store {
	return &Store{
		streamingByID: make(map[string]models.StreamingChannel),
		epgByID:       make(map[string]models.EPGChannel),
		aliases:       make(map[string]models.AliasInfo),
		streamsByEPG:  make(map[string][]string),
	}
}

// SetProviders replaces the provider list wholesale. A previously selected
// provider that is no longer present is deselected.
func (s *Store) SetProviders(list []models.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.providers = append([]models.Provider(nil), list...)

	if s.selectedProvider != "" {
		found := false
		for _, p := range s.providers {
			if p.ID == s.selectedProvider {
				found = true
				break
			}
		}
		if !found {
			s.selectedProvider = ""
		}
	}
}

// Providers returns a copy of the provider list.
func (s *Store) Providers() []models.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Provider(nil), s.providers...)
}

// SetSelectedProvider selects a provider from the known list.
func (s *Store) SetSelectedProvider(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.providers {
		if p.ID == id {
			s.selectedProvider = id
			return nil
		}
	}
	return ErrUnknownProvider
}

// SelectedProvider returns the currently selected provider id, if any.
func (s *Store) SelectedProvider() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedProvider, s.selectedProvider != ""
}

// SetStreamingChannels replaces the streaming channel list wholesale and
// rebuilds its index. The alias map is keyed by these channels, so it is
// cleared here; the caller reloads aliases right after a channel refresh.
func (s *Store) SetStreamingChannels(list []models.StreamingChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.streaming = append([]models.StreamingChannel(nil), list...)
	s.streamingByID = make(map[string]models.StreamingChannel, len(list))
	for _, ch := range list {
		s.streamingByID[ch.ID] = ch
	}

	s.aliases = make(map[string]models.AliasInfo)
	s.streamsByEPG = make(map[string][]string)
}

// StreamingChannels returns a copy of the streaming channel list.
func (s *Store) StreamingChannels() []models.StreamingChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.StreamingChannel(nil), s.streaming...)
}

// StreamingChannel looks up a streaming channel by id.
func (s *Store) StreamingChannel(id string) (models.StreamingChannel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.streamingByID[id]
	return ch, ok
}

// SetEPGChannels replaces the EPG channel list wholesale and rebuilds its
// index.
func (s *Store) SetEPGChannels(list []models.EPGChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epg = append([]models.EPGChannel(nil), list...)
	s.epgByID = make(map[string]models.EPGChannel, len(list))
	for _, ch := range list {
		s.epgByID[ch.ID] = ch
	}
}

// EPGChannels returns a copy of the EPG channel list.
func (s *Store) EPGChannels() []models.EPGChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.EPGChannel(nil), s.epg...)
}

// EPGChannel looks up an EPG channel by id.
func (s *Store) EPGChannel(id string) (models.EPGChannel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.epgByID[id]
	return ch, ok
}

// FilteredEPGChannels returns the EPG channels whose display name, technical
// name, or id contains the term, case-insensitively. An empty term returns
// the full list.
func (s *Store) FilteredEPGChannels(term string) []models.EPGChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]models.EPGChannel(nil), s.epg...)
	}

	var result []models.EPGChannel
	for _, ch := range s.epg {
		if strings.Contains(strings.ToLower(ch.DisplayName), term) ||
			strings.Contains(strings.ToLower(ch.Name), term) ||
			strings.Contains(strings.ToLower(ch.ID), term) {
			result = append(result, ch)
		}
	}
	return result
}

// AddAlias records an alias for a streaming channel, updating the forward
// map and the reverse index in the same critical section. An existing alias
// for the channel is replaced.
func (s *Store) AddAlias(streamingID string, info models.AliasInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.streamingByID[streamingID]; !ok {
		return ErrUnknownChannel
	}

	if old, ok := s.aliases[streamingID]; ok {
		s.dropReverseLocked(old.EPGChannelID, streamingID)
	}

	s.aliases[streamingID] = info
	s.streamsByEPG[info.EPGChannelID] = append(s.streamsByEPG[info.EPGChannelID], streamingID)
	return nil
}

// RemoveAlias deletes the alias of a streaming channel from both directions.
// It reports whether an alias existed.
func (s *Store) RemoveAlias(streamingID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.aliases[streamingID]
	if !ok {
		return false
	}
	delete(s.aliases, streamingID)
	s.dropReverseLocked(info.EPGChannelID, streamingID)
	return true
}

func (s *Store) dropReverseLocked(epgID, streamingID string) {
	ids := s.streamsByEPG[epgID]
	for i, id := range ids {
		if id == streamingID {
			s.streamsByEPG[epgID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.streamsByEPG[epgID]) == 0 {
		delete(s.streamsByEPG, epgID)
	}
}

// IsChannelMapped reports whether the streaming channel has an alias.
func (s *Store) IsChannelMapped(streamingID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.aliases[streamingID]
	return ok
}

// AliasInfo returns the alias of a streaming channel, if one exists.
func (s *Store) AliasInfo(streamingID string) (models.AliasInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.aliases[streamingID]
	return info, ok
}

// MappedStreamingIDs returns the streaming channels aliased to an EPG
// channel. Multiple streaming channels may share one EPG identity.
func (s *Store) MappedStreamingIDs(epgID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.streamsByEPG[epgID]...)
}

// UnmappedStreamingChannels returns the streaming channels without an alias,
// in list order.
func (s *Store) UnmappedStreamingChannels() []models.StreamingChannel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.StreamingChannel
	for _, ch := range s.streaming {
		if _, ok := s.aliases[ch.ID]; !ok {
			result = append(result, ch)
		}
	}
	return result
}

// Stats summarises the current mapping state. The suggestion count is filled
// in by the caller.
func (s *Store) Stats() models.MappingStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.streaming)
	mapped := 0
	for _, ch := range s.streaming {
		if _, ok := s.aliases[ch.ID]; ok {
			mapped++
		}
	}
	return models.MappingStats{
		TotalChannels: total,
		Mapped:        mapped,
		Unmapped:      total - mapped,
	}
}
