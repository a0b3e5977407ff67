package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"epgbridge/models"
)

const defaultTimeout = 30 * time.Second

// APIError is a failure reported by the EPG backend: a non-2xx status or a
// success:false envelope. Message carries the server-reported error when one
// was present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Alias is the wire representation of a channel alias on the backend.
type Alias struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"` // EPG channel the alias points at
	Alias     string    `json:"alias"`      // streaming channel identifier
	AliasType string    `json:"alias_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Client wraps the EPG backend REST API. It performs network I/O only and
// never touches application state.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// providerPayload tolerates backends that key providers by id or by name.
type providerPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

func (p providerPayload) toModel() models.Provider {
	id := p.ID
	if id == "" {
		id = p.Name
	}
	label := p.Label
	if label == "" {
		label = id
	}
	return models.Provider{ID: id, Label: label}
}

// channelPayload normalizes the heterogeneous id fields seen across backend
// versions ("Id", "channel_id", "id") into one canonical identifier. The
// normalization happens here, once, at ingestion.
type channelPayload struct {
	CapID     string `json:"Id"`
	ChannelID string `json:"channel_id"`
	LowID     string `json:"id"`
	Name      string `json:"name"`
	Logo      string `json:"logo"`
	LogoURL   string `json:"logoUrl"`
}

func (c channelPayload) canonicalID() string {
	for _, id := range []string{c.CapID, c.ChannelID, c.LowID, c.Name} {
		if id != "" {
			return id
		}
	}
	return ""
}

func (c channelPayload) toModel() models.StreamingChannel {
	logo := c.LogoURL
	if logo == "" {
		logo = c.Logo
	}
	return models.StreamingChannel{
		ID:      c.canonicalID(),
		Name:    c.Name,
		LogoURL: logo,
	}
}

type epgChannelPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	SnakeDisplay string `json:"display_name"`
	Logo         string `json:"logo"`
	LogoURL      string `json:"logoUrl"`
}

func (c epgChannelPayload) toModel() models.EPGChannel {
	display := c.DisplayName
	if display == "" {
		display = c.SnakeDisplay
	}
	logo := c.LogoURL
	if logo == "" {
		logo = c.Logo
	}
	return models.EPGChannel{
		ID:          c.ID,
		Name:        c.Name,
		DisplayName: display,
		LogoURL:     logo,
	}
}

// FetchProviders lists the providers configured on the backend.
// GET /api/mapping/providers -> {success, providers}
func (c *Client) FetchProviders(ctx context.Context) ([]models.Provider, error) {
	var resp struct {
		Success   bool              `json:"success"`
		Error     string            `json:"error"`
		Providers []providerPayload `json:"providers"`
	}
	if err := c.getJSON(ctx, "/api/mapping/providers", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: envelopeError(resp.Error)}
	}

	providers := make([]models.Provider, 0, len(resp.Providers))
	for _, p := range resp.Providers {
		providers = append(providers, p.toModel())
	}
	return providers, nil
}

// FetchStreamingChannels lists the streaming channels of one provider.
// GET /api/mapping/channels/{providerId} -> {success, channels}
func (c *Client) FetchStreamingChannels(ctx context.Context, providerID string) ([]models.StreamingChannel, error) {
	var resp struct {
		Success  bool             `json:"success"`
		Error    string           `json:"error"`
		Channels []channelPayload `json:"channels"`
	}
	path := "/api/mapping/channels/" + url.PathEscape(providerID)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: envelopeError(resp.Error)}
	}

	channels := make([]models.StreamingChannel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		m := ch.toModel()
		if m.ID == "" {
			continue
		}
		channels = append(channels, m)
	}
	return channels, nil
}

// FetchEPGChannels lists all channels known to the EPG backend.
// GET /api/channels -> bare array, no envelope
func (c *Client) FetchEPGChannels(ctx context.Context) ([]models.EPGChannel, error) {
	var payload []epgChannelPayload
	if err := c.getJSON(ctx, "/api/channels", &payload); err != nil {
		return nil, err
	}

	channels := make([]models.EPGChannel, 0, len(payload))
	for _, ch := range payload {
		if ch.ID == "" {
			continue
		}
		channels = append(channels, ch.toModel())
	}
	return channels, nil
}

// FetchAliases returns the bulk alias list, or (nil, nil) when the backend
// does not implement the endpoint — the caller then falls back to per-channel
// lookups.
func (c *Client) FetchAliases(ctx context.Context) ([]Alias, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/aliases", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch aliases: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readAPIError(resp)
	}

	var body struct {
		Aliases []Alias `json:"aliases"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode aliases: %w", err)
	}
	return body.Aliases, nil
}

// FetchChannelAliases lists the aliases of a single EPG channel.
// GET /api/channels/{epgId}/aliases -> bare array
func (c *Client) FetchChannelAliases(ctx context.Context, epgID string) ([]Alias, error) {
	var aliases []Alias
	path := "/api/channels/" + url.PathEscape(epgID) + "/aliases"
	if err := c.getJSON(ctx, path, &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}

// CreateAlias creates an alias pointing channelID (EPG) at alias (streaming).
// POST /api/mapping/create-alias -> {success, alias:{id}}
func (c *Client) CreateAlias(ctx context.Context, channelID, alias, aliasType string) (Alias, error) {
	payload := map[string]string{
		"channel_identifier": channelID,
		"alias":              alias,
		"alias_type":         aliasType,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Alias{}, fmt.Errorf("marshal create-alias request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/mapping/create-alias", bytes.NewReader(body))
	if err != nil {
		return Alias{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Alias{}, fmt.Errorf("create alias: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Alias{}, readAPIError(resp)
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Alias   Alias  `json:"alias"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Alias{}, fmt.Errorf("decode create-alias response: %w", err)
	}
	if !result.Success {
		return Alias{}, &APIError{StatusCode: resp.StatusCode, Message: envelopeError(result.Error)}
	}

	created := result.Alias
	if created.ChannelID == "" {
		created.ChannelID = channelID
	}
	if created.Alias == "" {
		created.Alias = alias
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	return created, nil
}

// DeleteAlias removes an alias. 200 and 204 both count as success; no body
// parsing is required.
func (c *Client) DeleteAlias(ctx context.Context, aliasID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/aliases/"+url.PathEscape(aliasID), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete alias: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return readAPIError(resp)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readAPIError extracts the server-reported message from an error response
// body, falling back to the HTTP status text.
func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(body) > 0 {
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
			apiErr.Message = envelope.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func envelopeError(msg string) string {
	if msg != "" {
		return msg
	}
	return "backend reported failure"
}
