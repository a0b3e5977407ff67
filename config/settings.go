package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Upstream UpstreamSettings `json:"upstream"`
	Matching MatchingSettings `json:"matching"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	PINHash string `json:"pinHash,omitempty"` // bcrypt hash of the admin PIN
}

// UpstreamSettings points at the EPG backend this service talks to.
type UpstreamSettings struct {
	BaseURL    string `json:"baseUrl"`
	TimeoutSec int    `json:"timeoutSec"`
}

// MatchingSettings tunes the fuzzy matcher and suggestion engine.
type MatchingSettings struct {
	SuggestionFloor    int `json:"suggestionFloor"`    // minimum score (0-100) for a tentative match
	ConfidentThreshold int `json:"confidentThreshold"` // score for one-click acceptance eligibility
	MinGram            int `json:"minGram"`
	MaxGram            int `json:"maxGram"`
	TopK               int `json:"topK"`
	FallbackWorkers    int `json:"fallbackWorkers"` // bound on concurrent per-channel alias lookups
}

// LogConfig represents file logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8394,
		},
		Upstream: UpstreamSettings{
			BaseURL:    "http://127.0.0.1:8080",
			TimeoutSec: 30,
		},
		Matching: MatchingSettings{
			SuggestionFloor:    70,
			ConfidentThreshold: 85,
			MinGram:            2,
			MaxGram:            3,
			TopK:               5,
			FallbackWorkers:    4,
		},
		Log: LogConfig{
			File:       "",
			MaxSize:    10,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and saves the settings file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures the parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	// Decode into a raw map first so legacy field names can be migrated.
	var raw map[string]interface{}
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return Settings{}, err
	}

	// Migrate the legacy flat "backendUrl" key into the upstream section.
	if legacyURL, ok := raw["backendUrl"].(string); ok && legacyURL != "" {
		if up, ok := raw["upstream"].(map[string]interface{}); ok {
			if existing, _ := up["baseUrl"].(string); existing == "" {
				up["baseUrl"] = legacyURL
			}
		} else {
			raw["upstream"] = map[string]interface{}{"baseUrl": legacyURL}
		}
		delete(raw, "backendUrl")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, err
	}

	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}

	// Clamp matcher settings back to sane values if the file was hand-edited.
	if s.Matching.MinGram < 1 {
		s.Matching.MinGram = 2
	}
	if s.Matching.MaxGram < s.Matching.MinGram {
		s.Matching.MaxGram = s.Matching.MinGram
	}
	if s.Matching.TopK <= 0 {
		s.Matching.TopK = 5
	}
	if s.Matching.FallbackWorkers <= 0 {
		s.Matching.FallbackWorkers = 4
	}
	if s.Upstream.TimeoutSec <= 0 {
		s.Upstream.TimeoutSec = 30
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
