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
	Server    ServerSettings   `json:"server"`
	Storage   StorageSettings  `json:"storage"`
	Subtitles SubtitleSettings `json:"subtitles"`
	Scanner   ScannerSettings  `json:"scanner"`
	Log       LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StorageSettings holds the root directory for the library database, payload
// files and the ledger.
type StorageSettings struct {
	Directory string `json:"directory"`
}

type SubtitleSettings struct {
	APIKey   string `json:"apiKey"`
	Language string `json:"language"`
	BaseURL  string `json:"baseUrl,omitempty"`
}

// ScannerSettings configures page scanning. ProxyURL, when set, is prepended
// to the URL-encoded target page to work around cross-origin restrictions.
type ScannerSettings struct {
	ProxyURL      string `json:"proxyUrl"`
	MaxConcurrent int    `json:"maxConcurrent"`
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
			Port: 8480,
		},
		Storage: StorageSettings{
			Directory: "cache",
		},
		Subtitles: SubtitleSettings{
			Language: "en",
		},
		Scanner: ScannerSettings{
			MaxConcurrent: 4,
		},
		Log: LogConfig{
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
		},
	}
}

// Manager loads and persists settings at a fixed path.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk, creating defaults if the file is missing.
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

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	if s.Server.Port == 0 {
		s.Server.Port = DefaultSettings().Server.Port
	}
	if s.Storage.Directory == "" {
		s.Storage.Directory = DefaultSettings().Storage.Directory
	}
	if s.Subtitles.Language == "" {
		s.Subtitles.Language = "en"
	}
	if s.Scanner.MaxConcurrent <= 0 {
		s.Scanner.MaxConcurrent = DefaultSettings().Scanner.MaxConcurrent
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
