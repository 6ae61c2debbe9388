package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/perfect-catch/pricebook-bridge/bridge"
)

func newTestJournal(t *testing.T, cfg ...Config) *Journal {
	t.Helper()
	var c Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	if c.Path == "" {
		c.Path = filepath.Join(t.TempDir(), "journal.db")
	}
	j, err := Open(c)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func makeInvocation(name string, at time.Time) Invocation {
	return Invocation{
		Time:       at,
		Transport:  "mcp",
		Kind:       KindTool,
		Name:       name,
		DurationMS: 12,
		Success:    true,
	}
}

func TestJournalRecordAndRecent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		inv := makeInvocation(fmt.Sprintf("tool-%d", i), base.Add(time.Duration(i)*time.Second))
		if err := j.RecordInvocation(ctx, inv); err != nil {
			t.Fatalf("RecordInvocation(%d): %v", i, err)
		}
	}

	invocations, err := j.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(invocations) != 5 {
		t.Fatalf("got %d invocations, want 5", len(invocations))
	}

	// Newest first.
	if invocations[0].Name != "tool-4" {
		t.Errorf("first invocation = %q, want tool-4", invocations[0].Name)
	}
	if invocations[4].Name != "tool-0" {
		t.Errorf("last invocation = %q, want tool-0", invocations[4].Name)
	}

	// Round-trip fidelity.
	inv := invocations[0]
	if inv.ID == "" {
		t.Error("ID is empty, want generated UUID")
	}
	if !inv.Time.Equal(base.Add(4 * time.Second)) {
		t.Errorf("Time = %v, want %v", inv.Time, base.Add(4*time.Second))
	}
	if inv.Transport != "mcp" {
		t.Errorf("Transport = %q, want mcp", inv.Transport)
	}
	if inv.Kind != KindTool {
		t.Errorf("Kind = %q, want %q", inv.Kind, KindTool)
	}
	if inv.DurationMS != 12 {
		t.Errorf("DurationMS = %d, want 12", inv.DurationMS)
	}
	if !inv.Success {
		t.Error("Success = false, want true")
	}
}

func TestJournalRecordFailure(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	inv := makeInvocation("trigger_sync", time.Now().UTC())
	inv.Success = false
	inv.ErrorCode = "status"
	if err := j.RecordInvocation(ctx, inv); err != nil {
		t.Fatalf("RecordInvocation: %v", err)
	}

	invocations, err := j.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if invocations[0].Success {
		t.Error("Success = true, want false")
	}
	if invocations[0].ErrorCode != "status" {
		t.Errorf("ErrorCode = %q, want status", invocations[0].ErrorCode)
	}
}

func TestJournalRecentLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		j.RecordInvocation(ctx, makeInvocation(fmt.Sprintf("tool-%d", i), base.Add(time.Duration(i)*time.Second)))
	}

	invocations, err := j.Recent(ctx, "", 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(invocations) != 3 {
		t.Fatalf("got %d invocations, want 3", len(invocations))
	}
	if invocations[0].Name != "tool-9" {
		t.Errorf("first invocation = %q, want tool-9", invocations[0].Name)
	}
}

func TestJournalRecentFilterByName(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	j.RecordInvocation(ctx, makeInvocation("search_pricebook", base))
	j.RecordInvocation(ctx, makeInvocation("get_materials", base.Add(time.Second)))
	j.RecordInvocation(ctx, makeInvocation("search_pricebook", base.Add(2*time.Second)))

	invocations, err := j.Recent(ctx, "search_pricebook", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(invocations) != 2 {
		t.Fatalf("got %d invocations, want 2", len(invocations))
	}
	for _, inv := range invocations {
		if inv.Name != "search_pricebook" {
			t.Errorf("Name = %q, want search_pricebook", inv.Name)
		}
	}
}

func TestJournalCountByTool(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	j.RecordInvocation(ctx, makeInvocation("search_pricebook", now))
	j.RecordInvocation(ctx, makeInvocation("search_pricebook", now.Add(time.Second)))
	j.RecordInvocation(ctx, makeInvocation("chat", now.Add(2*time.Second)))

	resource := makeInvocation("pricebook://status", now.Add(3*time.Second))
	resource.Kind = KindResource
	j.RecordInvocation(ctx, resource)

	counts, err := j.CountByTool(ctx)
	if err != nil {
		t.Fatalf("CountByTool: %v", err)
	}
	if counts["search_pricebook"] != 2 {
		t.Errorf("search_pricebook count = %d, want 2", counts["search_pricebook"])
	}
	if counts["chat"] != 1 {
		t.Errorf("chat count = %d, want 1", counts["chat"])
	}
	if _, ok := counts["pricebook://status"]; ok {
		t.Error("resource reads should not appear in tool counts")
	}
}

func TestJournalPruneByAge(t *testing.T) {
	j := newTestJournal(t, Config{
		Path:         filepath.Join(t.TempDir(), "journal.db"),
		RetentionAge: time.Hour,
	})
	ctx := context.Background()

	j.RecordInvocation(ctx, makeInvocation("old-tool", time.Now().UTC().Add(-2*time.Hour)))
	j.RecordInvocation(ctx, makeInvocation("fresh-tool", time.Now().UTC()))

	if err := j.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	invocations, err := j.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(invocations) != 1 {
		t.Fatalf("after prune got %d invocations, want 1", len(invocations))
	}
	if invocations[0].Name != "fresh-tool" {
		t.Errorf("remaining invocation = %q, want fresh-tool", invocations[0].Name)
	}
}

func TestJournalPruneByCount(t *testing.T) {
	j := newTestJournal(t, Config{
		Path:           filepath.Join(t.TempDir(), "journal.db"),
		RetentionCount: 3,
	})
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		j.RecordInvocation(ctx, makeInvocation(fmt.Sprintf("tool-%d", i), base.Add(time.Duration(i)*time.Second)))
	}

	if err := j.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	invocations, err := j.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(invocations) != 3 {
		t.Fatalf("after prune got %d invocations, want 3", len(invocations))
	}
	// The newest three survive.
	if invocations[0].Name != "tool-6" {
		t.Errorf("first remaining = %q, want tool-6", invocations[0].Name)
	}
	if invocations[2].Name != "tool-4" {
		t.Errorf("last remaining = %q, want tool-4", invocations[2].Name)
	}
}

func TestJournalObserver(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.ObserveDispatch(bridge.DispatchObservation{
		Tool:       "search_pricebook",
		Transport:  bridge.TransportMCP,
		DurationMS: 40,
		Success:    true,
	})
	j.ObserveResource(bridge.ResourceObservation{
		URI:        "pricebook://status",
		Transport:  bridge.TransportMCP,
		DurationMS: 15,
		Success:    false,
		ErrorCode:  "connection",
	})

	invocations, err := j.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(invocations) != 2 {
		t.Fatalf("got %d invocations, want 2", len(invocations))
	}

	byName := map[string]Invocation{}
	for _, inv := range invocations {
		byName[inv.Name] = inv
	}
	dispatch := byName["search_pricebook"]
	if dispatch.Kind != KindTool || !dispatch.Success || dispatch.DurationMS != 40 {
		t.Errorf("dispatch record = %+v, want tool/success/40ms", dispatch)
	}
	resource := byName["pricebook://status"]
	if resource.Kind != KindResource || resource.Success || resource.ErrorCode != "connection" {
		t.Errorf("resource record = %+v, want resource/failed/connection", resource)
	}
}

func TestJournalPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j1, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("open first journal: %v", err)
	}
	j1.RecordInvocation(ctx, makeInvocation("search_pricebook", time.Now().UTC()))
	if err := j1.Close(); err != nil {
		t.Fatalf("close first journal: %v", err)
	}

	j2, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j2.Close()

	invocations, err := j2.Recent(ctx, "", 0)
	if err != nil {
		t.Fatalf("Recent after reopen: %v", err)
	}
	if len(invocations) != 1 || invocations[0].Name != "search_pricebook" {
		t.Fatalf("after reopen got %+v, want the recorded invocation", invocations)
	}
}

func TestJournalCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	j, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open with nested path: %v", err)
	}
	defer j.Close()

	if err := j.RecordInvocation(context.Background(), makeInvocation("chat", time.Now().UTC())); err != nil {
		t.Fatalf("RecordInvocation: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatal("Open() error = nil, want path requirement")
	}
}
