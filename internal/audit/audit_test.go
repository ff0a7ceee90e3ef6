package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "wabbabot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{Driver: ""}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil store when disabled")
	}
	st, err = Open(Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("expected disabled store, got %v %v", st, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestSQLiteReleaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	entries := []ReleaseEntry{
		{ModlistID: "wj", AuthorID: "100", Attempted: 3, Succeeded: 2, Failed: 1},
		{ModlistID: "lotus", AuthorID: "200", Attempted: 1, Succeeded: 0, Failed: 1, Error: "delivery failed"},
	}
	for _, e := range entries {
		if err := st.AppendRelease(ctx, e); err != nil {
			t.Fatalf("AppendRelease: %v", err)
		}
	}

	got, err := st.RecentReleases(ctx, 10)
	if err != nil {
		t.Fatalf("RecentReleases: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	// Newest first.
	if got[0].ModlistID != "lotus" || got[0].Error != "delivery failed" {
		t.Fatalf("unexpected newest entry: %+v", got[0])
	}
	if got[1].ModlistID != "wj" || got[1].Succeeded != 2 {
		t.Fatalf("unexpected entry: %+v", got[1])
	}
	if got[0].At.IsZero() {
		t.Fatalf("timestamp not persisted")
	}
}
