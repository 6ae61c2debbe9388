// Package journal persists an audit trail of adapter invocations in
// SQLite. It observes the dispatch path without feeding back into it:
// nothing in the adapters ever reads the journal, so a broken or slow
// journal degrades to log noise instead of failed tool calls.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/perfect-catch/pricebook-bridge/bridge"
)

//go:embed schema.sql
var schema string

// Invocation kinds.
const (
	KindTool     = "tool"
	KindResource = "resource"
)

const (
	defaultDir      = ".pricebook-bridge"
	defaultDatabase = "journal.db"
)

// Config configures a journal.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// RetentionAge deletes invocations older than this (0 = no age pruning).
	RetentionAge time.Duration

	// RetentionCount keeps at most this many invocations (0 = no count pruning).
	RetentionCount int

	// PruneInterval is how often the background pruner runs (default 1 hour).
	PruneInterval time.Duration

	// Logger receives record failures from the observer path.
	Logger *slog.Logger
}

// Invocation is one recorded adapter call.
type Invocation struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Transport  string    `json:"transport"`
	Kind       string    `json:"kind"` // KindTool or KindResource
	Name       string    `json:"name"` // tool name or resource URI
	DurationMS int64     `json:"durationMs"`
	Success    bool      `json:"success"`
	ErrorCode  string    `json:"errorCode,omitempty"`
}

// Journal is a SQLite-backed invocation log. It satisfies
// bridge.Observer so serve commands can wire it directly.
type Journal struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
	stop   chan struct{}
	done   chan struct{}
}

// DefaultPath returns ~/.pricebook-bridge/journal.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("journal: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultDir, defaultDatabase), nil
}

// Open opens (or creates) a journal at cfg.Path.
func Open(cfg Config) (*Journal, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("journal: Config.Path is required")
	}
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("journal: create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	// WAL lets history queries run while a serve command is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	j := &Journal{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	if cfg.RetentionAge > 0 || cfg.RetentionCount > 0 {
		go j.pruneLoop()
	} else {
		close(j.done)
	}

	return j, nil
}

// RecordInvocation stores one invocation. A missing ID gets a fresh
// UUID; a zero Time gets the current UTC time.
func (j *Journal) RecordInvocation(ctx context.Context, inv Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Time.IsZero() {
		inv.Time = time.Now().UTC()
	}

	success := 0
	if inv.Success {
		success = 1
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO invocations (id, time, transport, kind, name, duration_ms, success, error_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.Time.UTC().Format(time.RFC3339Nano),
		inv.Transport,
		inv.Kind,
		inv.Name,
		inv.DurationMS,
		success,
		inv.ErrorCode,
	)
	if err != nil {
		return fmt.Errorf("journal: record invocation: %w", err)
	}
	return nil
}

// Recent returns invocations newest-first. name filters by tool name
// or resource URI when non-empty; limit <= 0 means no limit.
func (j *Journal) Recent(ctx context.Context, name string, limit int) ([]Invocation, error) {
	query := `SELECT id, time, transport, kind, name, duration_ms, success, error_code
	           FROM invocations`
	args := []any{}
	if name != "" {
		query += " WHERE name = ?"
		args = append(args, name)
	}
	query += " ORDER BY time DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	return scanInvocations(rows)
}

// CountByTool returns dispatch counts grouped by tool name. Resource
// reads are not included.
func (j *Journal) CountByTool(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT name, COUNT(*) FROM invocations WHERE kind = ? GROUP BY name`, KindTool)
	if err != nil {
		return nil, fmt.Errorf("journal: count by tool: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("journal: scan count: %w", err)
		}
		counts[name] = count
	}
	return counts, rows.Err()
}

// Prune runs a single retention pass. Exported for testing.
func (j *Journal) Prune(ctx context.Context) error {
	if j.cfg.RetentionAge > 0 {
		cutoff := time.Now().Add(-j.cfg.RetentionAge).UTC().Format(time.RFC3339Nano)
		if _, err := j.db.ExecContext(ctx,
			`DELETE FROM invocations WHERE time < ?`, cutoff,
		); err != nil {
			return fmt.Errorf("journal: prune by age: %w", err)
		}
	}

	if j.cfg.RetentionCount > 0 {
		if _, err := j.db.ExecContext(ctx,
			`DELETE FROM invocations WHERE id NOT IN (
				SELECT id FROM invocations ORDER BY time DESC LIMIT ?
			)`, j.cfg.RetentionCount,
		); err != nil {
			return fmt.Errorf("journal: prune by count: %w", err)
		}
	}

	return nil
}

// Close stops the background pruner and closes the database.
func (j *Journal) Close() error {
	select {
	case <-j.stop:
		// Already closed.
	default:
		close(j.stop)
	}
	<-j.done
	return j.db.Close()
}

func (j *Journal) pruneLoop() {
	defer close(j.done)

	ticker := time.NewTicker(j.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			if err := j.Prune(context.Background()); err != nil {
				j.logger.Warn("journal prune failed", "error", err)
			}
		}
	}
}

// ObserveDispatch records a tool dispatch. Failures are logged, never
// propagated: the journal must not fail a tool call.
func (j *Journal) ObserveDispatch(observation bridge.DispatchObservation) {
	err := j.RecordInvocation(context.Background(), Invocation{
		Transport:  string(observation.Transport),
		Kind:       KindTool,
		Name:       observation.Tool,
		DurationMS: observation.DurationMS,
		Success:    observation.Success,
		ErrorCode:  observation.ErrorCode,
	})
	if err != nil {
		j.logger.Warn("recording dispatch", "tool", observation.Tool, "error", err)
	}
}

// ObserveResource records a resource read.
func (j *Journal) ObserveResource(observation bridge.ResourceObservation) {
	err := j.RecordInvocation(context.Background(), Invocation{
		Transport:  string(observation.Transport),
		Kind:       KindResource,
		Name:       observation.URI,
		DurationMS: observation.DurationMS,
		Success:    observation.Success,
		ErrorCode:  observation.ErrorCode,
	})
	if err != nil {
		j.logger.Warn("recording resource read", "uri", observation.URI, "error", err)
	}
}

func scanInvocations(rows *sql.Rows) ([]Invocation, error) {
	var invocations []Invocation
	for rows.Next() {
		var (
			inv     Invocation
			timeStr string
			success int
		)
		if err := rows.Scan(
			&inv.ID,
			&timeStr,
			&inv.Transport,
			&inv.Kind,
			&inv.Name,
			&inv.DurationMS,
			&success,
			&inv.ErrorCode,
		); err != nil {
			return nil, fmt.Errorf("journal: scan invocation: %w", err)
		}

		t, err := time.Parse(time.RFC3339Nano, timeStr)
		if err != nil {
			return nil, fmt.Errorf("journal: parse time %q: %w", timeStr, err)
		}
		inv.Time = t
		inv.Success = success != 0

		invocations = append(invocations, inv)
	}
	return invocations, rows.Err()
}

// Compile-time interface check.
var _ bridge.Observer = (*Journal)(nil)
