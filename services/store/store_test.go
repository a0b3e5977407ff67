package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epgbridge/models"
	"epgbridge/services/store"
)

func seeded() *store.Store {
	s := store.New()
	s.SetProviders([]models.Provider{
		{ID: "providera", Label: "ProviderA"},
		{ID: "providerb", Label: "ProviderB"},
	})
	s.SetStreamingChannels([]models.StreamingChannel{
		{ID: "sc1", Name: "Kanal Eins"},
		{ID: "sc2", Name: "Sport Arena"},
	})
	s.SetEPGChannels([]models.EPGChannel{
		{ID: "42", Name: "ch_42", DisplayName: "Kanal Eins HD"},
		{ID: "7", Name: "ch_7", DisplayName: "Sport Arena"},
	})
	return s
}

func TestAddAndRemoveAliasAreInverse(t *testing.T) {
	s := seeded()

	info := models.AliasInfo{AliasID: "a1", EPGChannelID: "42", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.AddAlias("sc1", info))

	got, ok := s.AliasInfo("sc1")
	require.True(t, ok)
	assert.Equal(t, info, got)
	assert.True(t, s.IsChannelMapped("sc1"))
	assert.Equal(t, []string{"sc1"}, s.MappedStreamingIDs("42"))

	assert.True(t, s.RemoveAlias("sc1"))
	_, ok = s.AliasInfo("sc1")
	assert.False(t, ok)
	assert.False(t, s.IsChannelMapped("sc1"))
	assert.Empty(t, s.MappedStreamingIDs("42"))

	// Removing again is a no-op.
	assert.False(t, s.RemoveAlias("sc1"))
}

func TestAddAliasReplacesExisting(t *testing.T) {
	s := seeded()

	require.NoError(t, s.AddAlias("sc1", models.AliasInfo{AliasID: "a1", EPGChannelID: "7"}))
	require.NoError(t, s.AddAlias("sc1", models.AliasInfo{AliasID: "a2", EPGChannelID: "42"}))

	got, ok := s.AliasInfo("sc1")
	require.True(t, ok)
	assert.Equal(t, "42", got.EPGChannelID)

	// The reverse index must follow the replacement in the same operation.
	assert.Empty(t, s.MappedStreamingIDs("7"))
	assert.Equal(t, []string{"sc1"}, s.MappedStreamingIDs("42"))
}

func TestAddAliasUnknownChannel(t *testing.T) {
	s := seeded()
	err := s.AddAlias("missing", models.AliasInfo{AliasID: "a1", EPGChannelID: "42"})
	assert.ErrorIs(t, err, store.ErrUnknownChannel)
}

func TestMultipleStreamsMayShareEPGChannel(t *testing.T) {
	s := seeded()

	require.NoError(t, s.AddAlias("sc1", models.AliasInfo{AliasID: "a1", EPGChannelID: "42"}))
	require.NoError(t, s.AddAlias("sc2", models.AliasInfo{AliasID: "a2", EPGChannelID: "42"}))

	assert.ElementsMatch(t, []string{"sc1", "sc2"}, s.MappedStreamingIDs("42"))
}

func TestSetStreamingChannelsClearsAliases(t *testing.T) {
	s := seeded()
	require.NoError(t, s.AddAlias("sc1", models.AliasInfo{AliasID: "a1", EPGChannelID: "42"}))

	s.SetStreamingChannels([]models.StreamingChannel{{ID: "sc9", Name: "New Channel"}})

	assert.False(t, s.IsChannelMapped("sc1"))
	assert.Empty(t, s.MappedStreamingIDs("42"))
}

func TestFilteredEPGChannels(t *testing.T) {
	s := seeded()

	all := s.FilteredEPGChannels("")
	assert.Len(t, all, 2)

	byDisplay := s.FilteredEPGChannels("kanal eins")
	require.Len(t, byDisplay, 1)
	assert.Equal(t, "42", byDisplay[0].ID)

	byTechName := s.FilteredEPGChannels("CH_7")
	require.Len(t, byTechName, 1)
	assert.Equal(t, "7", byTechName[0].ID)

	byID := s.FilteredEPGChannels("42")
	require.Len(t, byID, 1)
	assert.Equal(t, "42", byID[0].ID)

	assert.Empty(t, s.FilteredEPGChannels("no such channel"))
}

func TestSelectedProvider(t *testing.T) {
	s := seeded()

	require.NoError(t, s.SetSelectedProvider("providera"))
	id, ok := s.SelectedProvider()
	require.True(t, ok)
	assert.Equal(t, "providera", id)

	assert.ErrorIs(t, s.SetSelectedProvider("nope"), store.ErrUnknownProvider)

	// Replacing providers without the selected one deselects it.
	s.SetProviders([]models.Provider{{ID: "providerb", Label: "ProviderB"}})
	_, ok = s.SelectedProvider()
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	s := seeded()
	require.NoError(t, s.AddAlias("sc1", models.AliasInfo{AliasID: "a1", EPGChannelID: "42"}))

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalChannels)
	assert.Equal(t, 1, stats.Mapped)
	assert.Equal(t, 1, stats.Unmapped)
}

func TestUnmappedStreamingChannels(t *testing.T) {
	s := seeded()
	require.NoError(t, s.AddAlias("sc1", models.AliasInfo{AliasID: "a1", EPGChannelID: "42"}))

	unmapped := s.UnmappedStreamingChannels()
	require.Len(t, unmapped, 1)
	assert.Equal(t, "sc2", unmapped[0].ID)
}
