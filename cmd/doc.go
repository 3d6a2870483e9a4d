// Package cmd implements the command-line interface for safe-gmail-mcp.
//
// This package provides the following commands:
//   - auth: Run the interactive OAuth2 authorization flow and store credentials
//   - serve: Start the MCP server to provide Gmail tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// serve never runs the authorization flow itself; it only refreshes
// credentials that auth has stored.
package cmd
