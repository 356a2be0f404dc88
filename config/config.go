package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const appName = "calcat"

// Config holds the application configuration. It is loaded once and passed by value.
type Config struct {
	CalendarID string `toml:"calendar_id"`
	Model      string `toml:"model"`
	Timezone   string `toml:"timezone"`
	SessionTTL string `toml:"session_ttl"`
	ExportDir  string `toml:"export_dir"`
	LogFile    string `toml:"log_file"`

	// GeminiAPIKey only ever comes from the environment.
	GeminiAPIKey string `toml:"-"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		CalendarID: "primary",
		Model:      "gemini-1.5-pro-latest",
		Timezone:   "UTC",
		SessionTTL: "1h",
		ExportDir:  ".",
		LogFile:    filepath.Join(xdg.StateHome, appName, appName+".log"),
	}
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("time.LoadLocation(%s): %w", c.Timezone, err)
	}
	return loc, nil
}

// TTL parses SessionTTL, falling back to one hour.
func (c Config) TTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// Loader defines methods to load configuration and the OAuth client credentials.
type Loader interface {
	LoadConfig() (Config, error)
	LoadCredentials() ([]byte, error)
}

// TokenStore reads and writes the serialized OAuth token.
type TokenStore interface {
	LoadToken() ([]byte, error)
	SaveToken(token []byte) error
}

// ErrNoToken is returned by a TokenStore that holds no token yet.
var ErrNoToken = errors.New("no token stored")

// FileLoader implements Loader and TokenStore by reading from the filesystem.
type FileLoader struct {
	configDir string
	getenv    func(string) string
}

// NewFileLoader initializes a FileLoader rooted in the XDG config directory.
// A .env file in the working directory is loaded first; it never overrides
// variables that are already set.
func NewFileLoader() (*FileLoader, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("godotenv.Load: %w", err)
	}
	return &FileLoader{
		configDir: filepath.Join(xdg.ConfigHome, appName),
		getenv:    os.Getenv,
	}, nil
}

// Dir returns the directory holding config.toml, credentials.json and token.json.
func (f *FileLoader) Dir() string {
	return f.configDir
}

// LoadConfig reads config.toml on top of the defaults. A missing file is not an error.
func (f *FileLoader) LoadConfig() (Config, error) {
	cfg := Default()
	configPath := filepath.Join(f.configDir, "config.toml")
	b, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("os.ReadFile(%s): %w", configPath, err)
	default:
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return Config{}, fmt.Errorf("toml.Decode(%s): %w", configPath, err)
		}
	}

	cfg.GeminiAPIKey = f.getenv("GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = f.getenv("GOOGLE_API_KEY")
	}
	return cfg, nil
}

// LoadToken reads the token.json file.
func (f *FileLoader) LoadToken() ([]byte, error) {
	tokenPath := filepath.Join(f.configDir, "token.json")
	bytes, err := os.ReadFile(tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s): %w", tokenPath, err)
	}
	return bytes, nil
}

// SaveToken writes the token.json file.
func (f *FileLoader) SaveToken(token []byte) error {
	return f.writePrivate("token.json", token)
}

func (f *FileLoader) writePrivate(name string, data []byte) error {
	if err := os.MkdirAll(f.configDir, 0o700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}
	p := filepath.Join(f.configDir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("unable to write %s: %w", p, err)
	}
	return nil
}

// MemoryTokenStore keeps the token in memory.
type MemoryTokenStore struct {
	Token []byte
	Saves int
}

func (m *MemoryTokenStore) LoadToken() ([]byte, error) {
	if len(m.Token) == 0 {
		return nil, ErrNoToken
	}
	return m.Token, nil
}

func (m *MemoryTokenStore) SaveToken(token []byte) error {
	m.Token = append([]byte(nil), token...)
	m.Saves++
	return nil
}

// installedClient mirrors the client_secret.json layout Google hands out for desktop apps.
type installedClient struct {
	Installed clientSecret `json:"installed"`
}

type clientSecret struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}
