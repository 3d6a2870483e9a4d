package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/mbaselga/safe-gmail-mcp/internal/logging"
)

// RefreshWindow is how far ahead of the recorded expiry a record is
// already treated as stale. Refreshing before the token actually
// expires keeps in-flight API calls from racing the expiry.
const RefreshWindow = 5 * time.Minute

// Gate decides whether the stored credential record is usable as-is,
// can be refreshed silently, or requires the interactive flow again.
// It is the only writer of the credential file outside the
// Authenticator.
type Gate struct {
	Keys  *KeyMaterial
	Store *Store

	// Endpoint overrides the provider endpoint, for tests.
	Endpoint oauth2.Endpoint

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// NeedsRefresh reports whether the record is expired or expires within
// the refresh window. A record without a recorded expiry is always
// treated as expired.
func (g *Gate) NeedsRefresh(c *Credentials) bool {
	if c.ExpiryDate == 0 {
		return true
	}
	return !c.Expiry().After(g.now().Add(RefreshWindow))
}

// EnsureFresh loads the stored record and refreshes it when needed,
// persisting the updated record before returning. It reports true when
// a refreshed record was written and false when the stored one was
// still fresh.
//
// Every returned error means Gmail access is not possible right now:
// ErrNoCredentials and ErrRefreshTokenMissing require the interactive
// flow, ErrRefreshFailed means the refresh token was revoked and the
// interactive flow is required as well.
func (g *Gate) EnsureFresh(ctx context.Context) (bool, error) {
	creds, err := g.Store.Load()
	if err != nil {
		if errors.Is(err, ErrCorruptCredentials) {
			// An unreadable record is an empty session, not a crash.
			g.logger().Warn("credential file corrupt, re-authorization required", logging.Err(err))
			return false, fmt.Errorf("%w: %v", ErrNoCredentials, err)
		}
		return false, err
	}
	if creds == nil || creds.AccessToken == "" {
		return false, ErrNoCredentials
	}

	if !g.NeedsRefresh(creds) {
		return false, nil
	}
	if creds.RefreshToken == "" {
		return false, ErrRefreshTokenMissing
	}

	conf := g.Keys.Config("")
	if g.Endpoint.AuthURL != "" || g.Endpoint.TokenURL != "" {
		conf.Endpoint = g.Endpoint
	}

	// Passing only the refresh token forces TokenSource to hit the
	// token endpoint instead of reusing the stale access token.
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	record := CredentialsFromToken(token)
	if record.RefreshToken == "" {
		record.RefreshToken = creds.RefreshToken
	}
	if record.Scope == "" {
		record.Scope = creds.Scope
	}

	if err := g.Store.Save(record); err != nil {
		return false, err
	}

	g.logger().Info("access token refreshed", "expiry", record.Expiry())
	return true, nil
}
