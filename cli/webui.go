package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perfect-catch/pricebook-bridge/pricebook"
	"github.com/perfect-catch/pricebook-bridge/webui"
)

// NewWebUICmd creates the "webui" subcommand.
func NewWebUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webui",
		Short: "Serve the Open WebUI tool endpoints over HTTP",
		RunE:  runWebUI,
	}

	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().IntP("port", "p", 8099, "Listen port")
	cmd.Flags().String("api-url", "", "Pricebook API base URL (default: http://localhost:3001)")
	cmd.Flags().String("session", "", "Chat session ID (default: openwebui)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Backend request timeout")
	cmd.Flags().Duration("status-timeout", webui.DefaultStatusTimeout, "Status endpoint timeout")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().String("config", "", "Path to pricebook-bridge.yaml")
	cmd.Flags().String("journal-path", "", "Path to invocation journal (default: ~/.pricebook-bridge/journal.db)")
	cmd.Flags().Bool("no-journal", false, "Disable the invocation journal")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP endpoint for traces")

	return cmd
}

func runWebUI(cmd *cobra.Command, _ []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	client, err := pricebook.NewClient(pricebook.Config{
		BaseURL: s.apiURL,
		Timeout: s.timeout,
	})
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}
	statusClient, err := pricebook.NewClient(pricebook.Config{
		BaseURL: client.BaseURL(),
		Timeout: s.statusTimeout,
	})
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	logger := newLogger(cmd)
	observer, cleanupObservability, err := setupObservability(cmd.Context(), s, cmd.Root().Version, logger)
	if err != nil {
		return err
	}
	defer cleanupObservability()

	server, err := webui.NewServer(webui.Config{
		Client:       client,
		StatusClient: statusClient,
		SessionID:    s.sessionID,
		Observer:     observer,
		MaxBody:      s.maxBody,
		Logger:       logger,
	})
	if err != nil {
		return exitError(exitRuntime, "creating tool server: %v", err)
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Pricebook tool server listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}
