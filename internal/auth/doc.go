// Package auth implements the OAuth2 credential lifecycle for the
// Gmail MCP server: loading the provisioned client key material,
// selecting a loopback callback port, running the one-shot interactive
// grant flow, persisting the resulting credential record, and deciding
// when a stored record needs a silent refresh.
//
// The package is deliberately transport-free. The MCP server layer and
// the CLI commands compose these pieces; nothing here knows about MCP
// or Gmail beyond the requested scopes.
//
// # Credential file
//
// Credentials are persisted as a single JSON file with an epoch
// millisecond expiry:
//
//	{
//	  "access_token": "ya29...",
//	  "refresh_token": "1//...",
//	  "expiry_date": 1767225600000,
//	  "scope": "https://www.googleapis.com/auth/gmail.modify",
//	  "token_type": "Bearer"
//	}
//
// A record without an expiry_date is treated as already expired, never
// as valid forever. The directory is created with mode 0700 and the
// file is written with mode 0600 via a temp file and rename, so a
// crash mid-write leaves the previous record intact.
//
// # Error classification
//
// All failure modes are exposed as sentinel errors so callers can
// decide between "run the interactive flow again" (ErrNoCredentials,
// ErrRefreshTokenMissing, ErrRefreshFailed) and "fix the environment"
// (ErrKeyFileMissing, ErrNoPortAvailable). Wrap checks go through
// errors.Is.
package auth
