package models

import "time"

// Provider is an upstream streaming source configured on the EPG backend.
// The provider list is replaced wholesale on refresh, never edited in place.
type Provider struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// StreamingChannel is a channel exposed by the currently selected provider.
// The ID is canonical: heterogeneous backend id fields are normalized once
// at ingestion in the upstream client.
type StreamingChannel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
}

// EPGChannel is a channel known to the EPG backend, independent of any
// provider.
type EPGChannel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// Label returns the name shown to the admin: the display name when the
// backend provides one, otherwise the technical name.
func (c EPGChannel) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// AliasInfo records an existing mapping of a streaming channel onto an EPG
// channel. A streaming channel holds at most one alias at any time.
type AliasInfo struct {
	AliasID      string    `json:"aliasId"`
	EPGChannelID string    `json:"epgChannelId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Suggestion is a derived fuzzy-match candidate for an unmapped streaming
// channel. Suggestions are advisory decoration and are never applied without
// an explicit admin action.
type Suggestion struct {
	StreamingChannelID string `json:"streamingChannelId"`
	EPGChannelID       string `json:"epgChannelId"`
	DisplayName        string `json:"displayName"`
	Score              int    `json:"score"`
	Confident          bool   `json:"confident"`
}

// PendingMapping is the drag transaction captured when the admin picks up an
// EPG channel card. It exists only between drag start and drop (or cancel).
type PendingMapping struct {
	Token          string    `json:"token"`
	EPGID          string    `json:"epgId"`
	EPGDisplayName string    `json:"epgDisplayName"`
	EPGTechName    string    `json:"epgTechName"`
	StartedAt      time.Time `json:"startedAt"`
}

// PendingUnmap exists only while an unmap confirmation is outstanding.
type PendingUnmap struct {
	StreamingID   string    `json:"streamingId"`
	StreamingName string    `json:"streamingName"`
	Alias         AliasInfo `json:"alias"`
}

// MappingStats summarises the mapping screen for the dashboard header.
type MappingStats struct {
	TotalChannels int `json:"totalChannels"`
	Mapped        int `json:"mapped"`
	Unmapped      int `json:"unmapped"`
	Suggestions   int `json:"suggestions"`
}
