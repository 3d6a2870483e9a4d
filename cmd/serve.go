package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mbaselga/safe-gmail-mcp/internal/auth"
	"github.com/mbaselga/safe-gmail-mcp/internal/instrumentation"
	"github.com/mbaselga/safe-gmail-mcp/internal/logging"
	"github.com/mbaselga/safe-gmail-mcp/internal/server"
	"github.com/mbaselga/safe-gmail-mcp/internal/tools/gmail_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// applyMetricsEnv overlays METRICS_ENABLED and METRICS_ADDR from the
// environment onto flag values still at their defaults.
func applyMetricsEnv(cfg MetricsConfig) MetricsConfig {
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = parsed
		}
	}
	if addr := os.Getenv("METRICS_ADDR"); addr != "" && (cfg.Addr == "" || cfg.Addr == server.DefaultMetricsAddr) {
		cfg.Addr = addr
	}
	return cfg
}

func newServeCmd() *cobra.Command {
	var (
		debugMode       bool
		yolo            bool
		keyFile         string
		credentialsFile string
		metricsEnabled  bool
		metricsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server on stdio transport,
exposing a restricted set of Gmail tools for AI assistants.

The server only ever offers non-destructive operations: searching and
reading threads, messages and attachments, and listing labels. Sending,
trashing and deleting are not implemented at any layer.

Safety Mode:
  By default the server additionally runs in read-only mode and does not
  register the label tools (archive, mark read, modify labels). Use
  --yolo to enable them.

Authorization:
  The server never runs the interactive authorization flow itself. Run
  'safe-gmail-mcp auth' first; serve only refreshes the stored
  credentials when they are about to expire.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsConfig := applyMetricsEnv(MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			})
			return runServe(debugMode, yolo, keyFile, credentialsFile, metricsConfig)
		},
	}

	defaultKeyFile, _ := auth.DefaultKeyFilePath()
	defaultCredentials, _ := auth.DefaultCredentialsPath()

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable label operations (archive, mark read, modify labels). Default is read-only mode.")
	cmd.Flags().StringVar(&keyFile, "key-file", defaultKeyFile, "Path to the OAuth client key file (JSON)")
	cmd.Flags().StringVar(&credentialsFile, "credentials-file", defaultCredentials, "Path to the stored credential record")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(debugMode bool, yolo bool, keyFile, credentialsFile string, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Stdout carries the MCP protocol, so all logging goes to stderr.
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			logger.Info("metrics server started", "addr", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Key material is optional at startup: without it every tool answers
	// with authorization guidance instead of the server refusing to run.
	keys, err := auth.LoadKeyMaterial(keyFile)
	if err != nil {
		logger.Warn("OAuth client key file not usable; Gmail tools will ask for authorization",
			"path", keyFile, logging.Err(err))
		keys = nil
	}

	store := auth.NewStore(credentialsFile)
	serverContext := server.NewServerContext(shutdownCtx, keys, store)

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging))
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("server context shutdown failed", logging.Err(err))
		}
	}()

	// Refresh stored credentials up front so the first tool call does not
	// pay for it. Failures are guidance, not fatal: the flow to fix them
	// is 'safe-gmail-mcp auth', which the serve command never runs itself.
	if gate := serverContext.Gate(); gate != nil {
		refreshed, err := gate.EnsureFresh(shutdownCtx)
		if refreshed || err != nil {
			result := instrumentation.OAuthResultSuccess
			if err != nil {
				result = instrumentation.OAuthResultFailure
			}
			if provider.Enabled() {
				provider.Metrics().RecordOAuthTokenRefresh(shutdownCtx, result)
			}
		}
		switch {
		case err == nil:
			if refreshed {
				logger.Info("stored credentials refreshed")
			}
		case errors.Is(err, auth.ErrNoCredentials):
			logger.Warn("no stored credentials; run 'safe-gmail-mcp auth' to authorize")
		case errors.Is(err, auth.ErrRefreshTokenMissing), errors.Is(err, auth.ErrRefreshFailed):
			logger.Warn("stored credentials cannot be refreshed; run 'safe-gmail-mcp auth' to authorize again",
				logging.Err(err))
		default:
			logger.Warn("credential refresh failed", logging.Err(err))
		}
	}

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("safe-gmail-mcp", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !yolo
	if readOnly {
		logger.Info("starting server in read-only mode (use --yolo to enable label operations)")
	} else {
		logger.Info("starting server with label operations enabled")
	}

	if err := gmail_tools.RegisterGmailTools(mcpSrv, serverContext, readOnly); err != nil {
		return fmt.Errorf("failed to register Gmail tools: %w", err)
	}

	return runStdioServer(mcpSrv)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}
