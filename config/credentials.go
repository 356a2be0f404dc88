package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	credentialsFile = "credentials.json"

	// EnvClientSecret holds a complete client_secret.json document.
	EnvClientSecret = "CALCAT_CLIENT_SECRET"
)

// LoadCredentials returns the OAuth client configuration. The secret store
// (environment) wins over the file on disk; whatever it yields is materialized
// to credentials.json so later runs find it even without the environment.
func (f *FileLoader) LoadCredentials() ([]byte, error) {
	doc, err := f.credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	if doc != nil {
		if err := f.writePrivate(credentialsFile, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}

	credentialsPath := filepath.Join(f.configDir, credentialsFile)
	bytes, err := os.ReadFile(credentialsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no OAuth client configured: set %s, or GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET, or place %s",
			EnvClientSecret, credentialsPath)
	}
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile(%s): %w", credentialsPath, err)
	}
	return bytes, nil
}

func (f *FileLoader) credentialsFromEnv() ([]byte, error) {
	if raw := f.getenv(EnvClientSecret); raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("%s is not valid JSON", EnvClientSecret)
		}
		return []byte(raw), nil
	}

	id, secret := f.getenv("GOOGLE_CLIENT_ID"), f.getenv("GOOGLE_CLIENT_SECRET")
	if id == "" || secret == "" {
		return nil, nil
	}
	doc, err := json.MarshalIndent(installedClient{Installed: clientSecret{
		ClientID:     id,
		ClientSecret: secret,
		AuthURI:      "https://accounts.google.com/o/oauth2/auth",
		TokenURI:     "https://oauth2.googleapis.com/token",
		RedirectURIs: []string{"http://localhost"},
	}}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json.MarshalIndent: %w", err)
	}
	return doc, nil
}
