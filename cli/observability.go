package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/perfect-catch/pricebook-bridge/bridge"
	"github.com/perfect-catch/pricebook-bridge/journal"
	bridgeotel "github.com/perfect-catch/pricebook-bridge/otel"
)

// setupObservability wires the OTLP trace pipeline, the metric/span
// observer, and the invocation journal, then installs the composed
// observer process-wide. The returned cleanup restores the global
// observer, closes the journal, and flushes pending spans.
func setupObservability(ctx context.Context, s settings, version string, logger *slog.Logger) (bridge.Observer, func(), error) {
	shutdownTracing, err := bridgeotel.SetupTracing(ctx, bridgeotel.TracingConfig{
		Endpoint:       s.otelEndpoint,
		ServiceVersion: version,
	})
	if err != nil {
		return nil, nil, exitError(exitRuntime, "%v", err)
	}

	observer, err := bridgeotel.NewBridgeObserver(
		otelapi.GetMeterProvider().Meter("pricebook-bridge"),
		otelapi.GetTracerProvider().Tracer("pricebook-bridge"),
	)
	if err != nil {
		return nil, nil, exitError(exitRuntime, "initializing observability: %v", err)
	}

	observers := []bridge.Observer{observer}
	var journalHandle *journal.Journal
	if !s.noJournal {
		path := s.journalPath
		if path == "" {
			if path, err = journal.DefaultPath(); err != nil {
				return nil, nil, exitError(exitRuntime, "%v", err)
			}
		}
		journalHandle, err = journal.Open(journal.Config{
			Path:           path,
			RetentionAge:   s.retentionAge,
			RetentionCount: s.retentionCount,
			Logger:         logger,
		})
		if err != nil {
			return nil, nil, exitError(exitRuntime, "opening journal: %v", err)
		}
		observers = append(observers, journalHandle)
	}

	composed := bridge.MultiObserver(observers...)
	bridge.SetObserver(composed)

	cleanup := func() {
		bridge.SetObserver(nil)
		if journalHandle != nil {
			_ = journalHandle.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}
	return composed, cleanup, nil
}

// newLogger builds the command logger on stderr, honoring --verbose.
// Stderr keeps the serve command's stdout clean for protocol frames.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
