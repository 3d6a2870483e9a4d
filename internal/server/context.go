package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/mbaselga/safe-gmail-mcp/internal/auth"
	"github.com/mbaselga/safe-gmail-mcp/internal/gmail"
	"github.com/mbaselga/safe-gmail-mcp/internal/instrumentation"
)

// ServerContext carries the state shared by all tool handlers: the
// provisioned key material, the credential store and refresh gate, and
// the lazily built Gmail client. Instrumentation hooks are optional
// and nil when observability is disabled.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	keys  *auth.KeyMaterial
	store *auth.Store
	gate  *auth.Gate

	mu          sync.RWMutex
	gmailClient *gmail.Client
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	shutdown    bool
}

// NewServerContext creates the shared server state. keys may be nil
// when no Gmail access is needed (documentation generation); the
// Gmail client then fails on first use instead of at startup.
func NewServerContext(ctx context.Context, keys *auth.KeyMaterial, store *auth.Store) *ServerContext {
	ctx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    ctx,
		cancel: cancel,
		keys:   keys,
		store:  store,
	}
	if keys != nil && store != nil {
		sc.gate = &auth.Gate{Keys: keys, Store: store}
	}
	return sc
}

// Keys returns the provisioned OAuth key material.
func (sc *ServerContext) Keys() *auth.KeyMaterial {
	return sc.keys
}

// Store returns the credential store.
func (sc *ServerContext) Store() *auth.Store {
	return sc.store
}

// Gate returns the refresh gate, or nil when the context was built
// without key material.
func (sc *ServerContext) Gate() *auth.Gate {
	return sc.gate
}

// GmailClient returns the shared Gmail client, building it on first
// use. The stored credentials pass through the refresh gate first, so
// the client always starts from a fresh record; refresh outcomes are
// recorded as OAuth metrics when instrumentation is configured.
func (sc *ServerContext) GmailClient(ctx context.Context) (*gmail.Client, error) {
	sc.mu.RLock()
	client := sc.gmailClient
	sc.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.gmailClient != nil {
		return sc.gmailClient, nil
	}
	if sc.shutdown {
		return nil, fmt.Errorf("server context is shut down")
	}
	if sc.gate == nil {
		return nil, auth.ErrNoCredentials
	}

	refreshed, err := sc.gate.EnsureFresh(ctx)
	if sc.metrics != nil && (refreshed || err != nil) {
		result := instrumentation.OAuthResultSuccess
		if err != nil {
			result = instrumentation.OAuthResultFailure
		}
		sc.metrics.RecordOAuthTokenRefresh(ctx, result)
	}
	if err != nil {
		return nil, err
	}

	creds, err := sc.store.Load()
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, auth.ErrNoCredentials
	}

	client, err = gmail.NewClient(sc.ctx, sc.keys, creds)
	if err != nil {
		return nil, err
	}
	sc.gmailClient = client
	return client, nil
}

// SetGmailClient replaces the cached Gmail client. Tests use this to
// inject a client without touching the credential store.
func (sc *ServerContext) SetGmailClient(client *gmail.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gmailClient = client
}

// Metrics returns the metrics recorder, or nil when not configured.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetMetrics sets the metrics recorder used by tool handlers.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// AuditLogger returns the audit logger, or nil when not configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// SetAuditLogger sets the audit logger used by tool handlers.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// Shutdown releases the context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.gmailClient = nil
	sc.cancel()
	return nil
}

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}
