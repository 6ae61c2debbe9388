package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perfect-catch/pricebook-bridge/bridge"
	"github.com/perfect-catch/pricebook-bridge/mcpserver"
	"github.com/perfect-catch/pricebook-bridge/pricebook"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		Long:  "Serve speaks MCP on stdin/stdout so hosts like Claude Desktop can call pricebook tools. Logs go to stderr.",
		RunE:  runServe,
	}

	cmd.Flags().String("api-url", "", "Pricebook API base URL (default: http://localhost:3001)")
	cmd.Flags().String("session", "", "Chat session ID (default: mcp-session)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Backend request timeout")
	cmd.Flags().String("config", "", "Path to pricebook-bridge.yaml")
	cmd.Flags().String("journal-path", "", "Path to invocation journal (default: ~/.pricebook-bridge/journal.db)")
	cmd.Flags().Bool("no-journal", false, "Disable the invocation journal")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP endpoint for traces")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	if !flagChanged(cmd, "session") {
		if env := strings.TrimSpace(os.Getenv(bridge.EnvSessionID)); env != "" {
			s.sessionID = env
		}
	}

	client, err := pricebook.NewClient(pricebook.Config{
		BaseURL: s.apiURL,
		Timeout: s.timeout,
	})
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	dispatcher, err := bridge.NewDispatcher(bridge.Config{
		Client:    client,
		SessionID: s.sessionID,
	})
	if err != nil {
		return exitError(exitRuntime, "creating dispatcher: %v", err)
	}

	logger := newLogger(cmd)
	_, cleanupObservability, err := setupObservability(cmd.Context(), s, cmd.Root().Version, logger)
	if err != nil {
		return err
	}
	defer cleanupObservability()

	server, err := mcpserver.NewServer(mcpserver.Config{
		Dispatcher: dispatcher,
		Version:    cmd.Root().Version,
		Logger:     logger,
	})
	if err != nil {
		return exitError(exitRuntime, "creating MCP server: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mcp server starting", "backend", client.BaseURL(), "session", dispatcher.SessionID())
	if err := server.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return exitError(exitRuntime, "mcp server: %v", err)
	}
	return nil
}
