package auth

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail_v1 "google.golang.org/api/gmail/v1"
)

// Scopes is the fixed scope set requested during authorization.
// gmail.modify covers read, label changes and archiving without
// granting send or account-settings access.
var Scopes = []string{gmail_v1.GmailModifyScope}

// KeyMaterial holds the statically provisioned OAuth client identity
// read from the Google Cloud key file. It never changes at runtime;
// re-provisioning means replacing the file and restarting.
type KeyMaterial struct {
	ClientID     string
	ClientSecret string
	RedirectURIs []string

	// Source names the key file object the material came from,
	// "installed" or "web".
	Source string
}

type keyFileSection struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

type keyFile struct {
	Installed *keyFileSection `json:"installed"`
	Web       *keyFileSection `json:"web"`
}

// LoadKeyMaterial reads and validates the OAuth client key file at
// path. A missing file yields ErrKeyFileMissing; unparseable content
// or a file without a usable client object yields ErrKeyFileMalformed.
func LoadKeyMaterial(path string) (*KeyMaterial, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyFileMissing, path)
		}
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFileMalformed, err)
	}

	section := kf.Installed
	source := "installed"
	if section == nil {
		section = kf.Web
		source = "web"
	}
	if section == nil {
		return nil, fmt.Errorf("%w: neither %q nor %q object present", ErrKeyFileMalformed, "installed", "web")
	}
	if section.ClientID == "" || section.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", ErrKeyFileMalformed)
	}

	return &KeyMaterial{
		ClientID:     section.ClientID,
		ClientSecret: section.ClientSecret,
		RedirectURIs: section.RedirectURIs,
		Source:       source,
	}, nil
}

// Config builds the oauth2 client configuration for this key material.
// The redirect URL must match the bound callback listener exactly; it
// may be empty for refresh-only use where no redirect happens.
func (k *KeyMaterial) Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     k.ClientID,
		ClientSecret: k.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}
