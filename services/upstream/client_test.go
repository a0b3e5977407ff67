package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"epgbridge/services/upstream"
)

func newClient(t *testing.T, handler http.Handler) *upstream.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return upstream.NewClient(server.URL, 5*time.Second)
}

func TestFetchProvidersUnwrapsEnvelope(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/mapping/providers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"providers": []map[string]string{
				{"id": "providera", "label": "ProviderA"},
				{"name": "legacy-source"}, // keyed by name, no label
			},
		})
	}))

	providers, err := c.FetchProviders(context.Background())
	if err != nil {
		t.Fatalf("FetchProviders failed: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0].ID != "providera" || providers[0].Label != "ProviderA" {
		t.Fatalf("unexpected provider: %+v", providers[0])
	}
	// Name stands in for the id, and the id stands in for the label.
	if providers[1].ID != "legacy-source" || providers[1].Label != "legacy-source" {
		t.Fatalf("unexpected legacy provider normalization: %+v", providers[1])
	}
}

func TestFetchProvidersEnvelopeFailure(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "providers unavailable",
		})
	}))

	_, err := c.FetchProviders(context.Background())
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "providers unavailable" {
		t.Fatalf("expected server message, got %q", apiErr.Message)
	}
}

func TestFetchStreamingChannelsNormalizesIDs(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"channels": []map[string]string{
				{"Id": "cap-id", "name": "Caps"},
				{"channel_id": "snake-id", "name": "Snake"},
				{"id": "low-id", "name": "Low"},
				{"name": "Only Name"},
				{"logo": ""}, // no usable id at all
			},
		})
	}))

	channels, err := c.FetchStreamingChannels(context.Background(), "providera")
	if err != nil {
		t.Fatalf("FetchStreamingChannels failed: %v", err)
	}

	want := []string{"cap-id", "snake-id", "low-id", "Only Name"}
	if len(channels) != len(want) {
		t.Fatalf("expected %d channels, got %d", len(want), len(channels))
	}
	for i, id := range want {
		if channels[i].ID != id {
			t.Fatalf("channel %d: expected id %q, got %q", i, id, channels[i].ID)
		}
	}
}

func TestFetchEPGChannelsBareArray(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "42", "name": "ch_42", "displayName": "Kanal Eins HD"},
			{"id": "7", "name": "ch_7", "display_name": "Sport Arena"},
		})
	}))

	channels, err := c.FetchEPGChannels(context.Background())
	if err != nil {
		t.Fatalf("FetchEPGChannels failed: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(channels))
	}
	if channels[0].DisplayName != "Kanal Eins HD" {
		t.Fatalf("camelCase display name not picked up: %+v", channels[0])
	}
	if channels[1].DisplayName != "Sport Arena" {
		t.Fatalf("snake_case display name not picked up: %+v", channels[1])
	}
}

func TestFetchAliasesAbsentEndpoint(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	aliases, err := c.FetchAliases(context.Background())
	if err != nil {
		t.Fatalf("a missing bulk endpoint must not be an error, got %v", err)
	}
	if aliases != nil {
		t.Fatalf("expected nil aliases to signal fallback, got %v", aliases)
	}
}

func TestFetchAliasesServerError(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "database on fire"})
	}))

	_, err := c.FetchAliases(context.Background())
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "database on fire" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestCreateAlias(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/mapping/create-alias" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["channel_identifier"] != "42" || body["alias"] != "sc1" || body["alias_type"] != "ultimate_backend" {
			t.Errorf("unexpected body: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"alias":   map[string]string{"id": "a1"},
		})
	}))

	created, err := c.CreateAlias(context.Background(), "42", "sc1", "ultimate_backend")
	if err != nil {
		t.Fatalf("CreateAlias failed: %v", err)
	}
	if created.ID != "a1" || created.ChannelID != "42" || created.Alias != "sc1" {
		t.Fatalf("unexpected alias: %+v", created)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be filled in")
	}
}

func TestDeleteAliasAcceptsNoContent(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNoContent} {
		c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("unexpected method %s", r.Method)
			}
			w.WriteHeader(status)
		}))

		if err := c.DeleteAlias(context.Background(), "a1"); err != nil {
			t.Fatalf("DeleteAlias with status %d failed: %v", status, err)
		}
	}
}

func TestDeleteAliasFailure(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	err := c.DeleteAlias(context.Background(), "a1")
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", apiErr.StatusCode)
	}
}
