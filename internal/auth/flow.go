package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mbaselga/safe-gmail-mcp/internal/logging"
)

const (
	// CallbackPath is the only path the listener treats as protocol
	// input. Requests to any other path (favicons, probes) get a 404
	// and do not affect the flow.
	CallbackPath = "/oauth2callback"

	// DefaultTimeout bounds how long the listener waits for the
	// provider redirect before the attempt is abandoned.
	DefaultTimeout = 5 * time.Minute

	exchangeTimeout = 30 * time.Second
	shutdownGrace   = 5 * time.Second
)

// Authenticator runs one interactive browser grant flow: it binds a
// loopback callback listener, hands the consent URL to the user,
// waits for exactly one terminal outcome, exchanges the authorization
// code and persists the resulting credential record.
//
// A flow resolves exactly once. Competing outcomes (a callback racing
// the deadline, duplicate redirects) are serialized so the first one
// wins and the rest are dropped.
type Authenticator struct {
	Keys  *KeyMaterial
	Store *Store

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration

	// Endpoint overrides the provider endpoint. The zero value means
	// the Google endpoint from the key material. Tests point this at a
	// local token server.
	Endpoint oauth2.Endpoint

	// OpenURL is invoked with the consent URL once the listener is
	// bound and ready. Nil means the URL is only logged; the caller is
	// expected to present it some other way.
	OpenURL func(url string) error

	Logger *slog.Logger
}

// outcome is the single terminal result of one flow: either an
// authorization code or the error that ended the attempt.
type outcome struct {
	code string
	err  error
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Authenticator) timeout() time.Duration {
	if a.Timeout > 0 {
		return a.Timeout
	}
	return DefaultTimeout
}

func (a *Authenticator) config(redirectURL string) *oauth2.Config {
	conf := a.Keys.Config(redirectURL)
	if a.Endpoint.AuthURL != "" || a.Endpoint.TokenURL != "" {
		conf.Endpoint = a.Endpoint
	}
	return conf
}

// Run executes one grant flow on the given port. It returns nil after
// a credential record has been persisted, or one of ErrPortInUse,
// ErrAuthDenied, ErrMalformedCallback, ErrAuthTimeout,
// ErrListenerFailed or ErrExchangeFailed. The listener is released
// before Run returns on every path.
func (a *Authenticator) Run(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("%w: port %d: %v", ErrPortInUse, port, err)
	}

	redirectURL := fmt.Sprintf("http://localhost:%d%s", port, CallbackPath)
	conf := a.config(redirectURL)

	state, err := randomState()
	if err != nil {
		ln.Close()
		return err
	}

	// The flow resolves exactly once. resolve may be called from the
	// callback handler, the listener goroutine, the deadline and the
	// context path; every call after the first is dropped.
	outcomes := make(chan outcome, 1)
	var once sync.Once
	resolve := func(o outcome) {
		once.Do(func() { outcomes <- o })
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			writeCallbackPage(w, http.StatusOK, "Authorization denied",
				"Access was not granted. You can close this window and return to the terminal.")
			resolve(outcome{err: fmt.Errorf("%w: %s", ErrAuthDenied, q.Get("error"))})
		case q.Get("code") != "" && q.Get("state") == state:
			writeCallbackPage(w, http.StatusOK, "Authorization complete",
				"You can close this window and return to the terminal.")
			resolve(outcome{code: q.Get("code")})
		default:
			writeCallbackPage(w, http.StatusBadRequest, "Invalid callback",
				"The redirect did not carry a valid authorization response.")
			resolve(outcome{err: ErrMalformedCallback})
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			resolve(outcome{err: fmt.Errorf("%w: %v", ErrListenerFailed, err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	a.logger().Info("waiting for authorization callback",
		"port", port,
		"timeout", a.timeout(),
	)
	if a.OpenURL != nil {
		if err := a.OpenURL(authURL); err != nil {
			a.logger().Warn("failed to open consent URL", logging.Err(err))
		}
	}

	timer := time.NewTimer(a.timeout())
	defer timer.Stop()

	var res outcome
	select {
	case res = <-outcomes:
	case <-timer.C:
		// The deadline may race a callback that resolved first; reading
		// the channel after resolve returns whichever outcome won.
		resolve(outcome{err: ErrAuthTimeout})
		res = <-outcomes
	case <-ctx.Done():
		resolve(outcome{err: ctx.Err()})
		res = <-outcomes
	}

	if res.err != nil {
		return res.err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	token, err := conf.Exchange(exchangeCtx, res.code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	record := CredentialsFromToken(token)
	// Google omits the refresh token when consent was granted before;
	// only then does the previously stored one carry over.
	if record.RefreshToken == "" {
		if prev, err := a.Store.Load(); err == nil && prev != nil {
			record.RefreshToken = prev.RefreshToken
		}
	}
	if record.Scope == "" {
		record.Scope = strings.Join(conf.Scopes, " ")
	}

	if err := a.Store.Save(record); err != nil {
		return err
	}

	a.logger().Info("authorization complete",
		"expiry", record.Expiry(),
		"refresh_token", logging.SanitizeToken(record.RefreshToken),
	)
	return nil
}

func randomState() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

func writeCallbackPage(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
		title, title, detail)
}
