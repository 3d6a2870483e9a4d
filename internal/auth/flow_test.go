package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"
)

// flowFixture wires an Authenticator against a local token server and
// captures the consent URL the flow produces.
type flowFixture struct {
	auth   *Authenticator
	port   int
	urlCh  chan string
	doneCh chan error
}

func newFlowFixture(t *testing.T, tokenHandler http.HandlerFunc) *flowFixture {
	t.Helper()

	ports, release := freePorts(t, 1)
	release()

	_, endpoint := newTokenServer(t, tokenHandler)
	urlCh := make(chan string, 1)

	f := &flowFixture{
		port:  ports[0],
		urlCh: urlCh,
		auth: &Authenticator{
			Keys:     &KeyMaterial{ClientID: "id", ClientSecret: "secret"},
			Store:    NewStore(filepath.Join(t.TempDir(), "credentials.json")),
			Timeout:  5 * time.Second,
			Endpoint: endpoint,
			OpenURL: func(u string) error {
				urlCh <- u
				return nil
			},
		},
	}
	return f
}

// start runs the flow in the background and returns the parsed consent
// URL once the listener is ready.
func (f *flowFixture) start(t *testing.T, ctx context.Context) *url.URL {
	t.Helper()
	f.doneCh = make(chan error, 1)
	go func() {
		f.doneCh <- f.auth.Run(ctx, f.port)
	}()

	select {
	case raw := <-f.urlCh:
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("consent URL does not parse: %v", err)
		}
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("flow never produced a consent URL")
		return nil
	}
}

func (f *flowFixture) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-f.doneCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("flow did not terminate")
		return nil
	}
}

// callback simulates the provider redirect hitting the listener.
func (f *flowFixture) callback(t *testing.T, query string) *http.Response {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s?%s", f.port, CallbackPath, query))
	if err != nil {
		t.Fatalf("callback request failed: %v", err)
	}
	resp.Body.Close()
	return resp
}

func TestRunGrantSuccess(t *testing.T) {
	f := newFlowFixture(t, tokenResponse("granted-access", "granted-refresh", 3600))
	consent := f.start(t, context.Background())

	state := consent.Query().Get("state")
	if state == "" {
		t.Fatal("consent URL carries no state")
	}
	if consent.Query().Get("access_type") != "offline" {
		t.Error("consent URL must request offline access for a refresh token")
	}
	if consent.Query().Get("prompt") != "consent" {
		t.Error("consent URL must force the consent screen so a refresh token is issued")
	}

	f.callback(t, "code=the-code&state="+state)

	if err := f.wait(t); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	got, err := f.auth.Store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "granted-access" || got.RefreshToken != "granted-refresh" {
		t.Errorf("stored record = %+v", got)
	}
	wantExpiry := time.Now().Add(time.Hour)
	if diff := time.UnixMilli(got.ExpiryDate).Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("ExpiryDate = %v, want about %v", time.UnixMilli(got.ExpiryDate), wantExpiry)
	}
	if got.Scope == "" {
		t.Error("stored record has no scope")
	}
}

func TestRunDenied(t *testing.T) {
	f := newFlowFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("exchange must not happen for a denied grant")
	})
	f.start(t, context.Background())

	f.callback(t, "error=access_denied")

	if err := f.wait(t); !errors.Is(err, ErrAuthDenied) {
		t.Fatalf("Run() error = %v, want ErrAuthDenied", err)
	}

	creds, err := f.auth.Store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Errorf("denied flow wrote credentials: %+v", creds)
	}
}

func TestRunMalformedCallback(t *testing.T) {
	tests := []struct {
		name  string
		query func(state string) string
	}{
		{name: "no parameters", query: func(string) string { return "" }},
		{name: "unrelated parameters", query: func(string) string { return "foo=bar" }},
		{name: "code with wrong state", query: func(string) string { return "code=x&state=forged" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFlowFixture(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("exchange must not happen for a malformed callback")
			})
			consent := f.start(t, context.Background())

			resp := f.callback(t, tt.query(consent.Query().Get("state")))
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("callback status = %d, want 400", resp.StatusCode)
			}

			if err := f.wait(t); !errors.Is(err, ErrMalformedCallback) {
				t.Fatalf("Run() error = %v, want ErrMalformedCallback", err)
			}
		})
	}
}

func TestRunTimeout(t *testing.T) {
	f := newFlowFixture(t, nil)
	f.auth.Timeout = 100 * time.Millisecond
	f.start(t, context.Background())

	if err := f.wait(t); !errors.Is(err, ErrAuthTimeout) {
		t.Fatalf("Run() error = %v, want ErrAuthTimeout", err)
	}

	// The listener must be released once the flow is over.
	deadline := time.Now().Add(2 * time.Second)
	for {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", f.port))
		if err == nil {
			ln.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("callback port still bound after timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunContextCancelled(t *testing.T) {
	f := newFlowFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.start(t, ctx)

	cancel()

	if err := f.wait(t); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunDuplicateCallbackResolvesOnce(t *testing.T) {
	// A slow exchange keeps the listener alive while the duplicate
	// redirect arrives; only the first resolution may count.
	f := newFlowFixture(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		tokenResponse("first-access", "first-refresh", 3600)(w, r)
	})
	consent := f.start(t, context.Background())
	state := consent.Query().Get("state")

	f.callback(t, "code=first&state="+state)
	f.callback(t, "error=access_denied")

	if err := f.wait(t); err != nil {
		t.Fatalf("Run() error = %v, want success from the first callback", err)
	}

	got, err := f.auth.Store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "first-access" {
		t.Errorf("stored AccessToken = %q, want the first grant's token", got.AccessToken)
	}
}

func TestRunIgnoresUnrelatedPaths(t *testing.T) {
	f := newFlowFixture(t, tokenResponse("a", "r", 3600))
	consent := f.start(t, context.Background())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/favicon.ico", f.port))
	if err != nil {
		t.Fatalf("unrelated request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unrelated path status = %d, want 404", resp.StatusCode)
	}

	f.callback(t, "code=x&state="+consent.Query().Get("state"))
	if err := f.wait(t); err != nil {
		t.Fatalf("Run() error after unrelated request = %v", err)
	}
}

func TestRunExchangeFailure(t *testing.T) {
	f := newFlowFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	})
	consent := f.start(t, context.Background())

	f.callback(t, "code=bad&state="+consent.Query().Get("state"))

	if err := f.wait(t); !errors.Is(err, ErrExchangeFailed) {
		t.Fatalf("Run() error = %v, want ErrExchangeFailed", err)
	}
}

func TestRunPreservesStoredRefreshToken(t *testing.T) {
	f := newFlowFixture(t, tokenResponse("re-granted", "", 3600))
	if err := f.auth.Store.Save(&Credentials{AccessToken: "old", RefreshToken: "long-lived"}); err != nil {
		t.Fatal(err)
	}
	consent := f.start(t, context.Background())

	f.callback(t, "code=x&state="+consent.Query().Get("state"))
	if err := f.wait(t); err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}

	got, err := f.auth.Store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.RefreshToken != "long-lived" {
		t.Errorf("RefreshToken = %q, want the stored token preserved", got.RefreshToken)
	}
	if got.AccessToken != "re-granted" {
		t.Errorf("AccessToken = %q", got.AccessToken)
	}
}

func TestRunPortInUse(t *testing.T) {
	ports, release := freePorts(t, 1)
	defer release()

	a := &Authenticator{
		Keys:  &KeyMaterial{ClientID: "id", ClientSecret: "secret"},
		Store: NewStore(filepath.Join(t.TempDir(), "credentials.json")),
	}
	err := a.Run(context.Background(), ports[0])
	if !errors.Is(err, ErrPortInUse) {
		t.Fatalf("Run() error = %v, want ErrPortInUse", err)
	}
}
