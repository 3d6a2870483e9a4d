// Package server holds the shared runtime state of the MCP server:
// the credential store and refresh gate, the lazily built Gmail
// client, and the instrumentation hooks tool handlers record through.
// It also provides the dedicated Prometheus metrics listener used when
// the server runs with observability enabled.
package server
