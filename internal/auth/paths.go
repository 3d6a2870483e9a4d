package auth

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName       = "safe-gmail-mcp"
	keyFileName         = "gcp-oauth.keys.json"
	credentialsFileName = "credentials.json"
)

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user config directory: %w", err)
	}
	return filepath.Join(base, configDirName), nil
}

// DefaultKeyFilePath returns the default location of the OAuth client
// key file, typically ~/.config/safe-gmail-mcp/gcp-oauth.keys.json.
func DefaultKeyFilePath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, keyFileName), nil
}

// DefaultCredentialsPath returns the default location of the credential
// record file, typically ~/.config/safe-gmail-mcp/credentials.json.
func DefaultCredentialsPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, credentialsFileName), nil
}
