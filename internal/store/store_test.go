package store

import (
	"os"
	"path/filepath"
	"testing"
)

type rec struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestLoadMissingFile(t *testing.T) {
	s, err := New[rec](filepath.Join(t.TempDir(), "db", "recs.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty collection, got %d records", len(got))
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recs.json")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := New[rec](path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty collection, got %d records", len(got))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := New[rec](filepath.Join(t.TempDir(), "recs.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []rec{{ID: "a", Name: "first"}, {ID: "b", Name: "second"}}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSaveDoesNotClobberOnFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "recs.json")
	s, err := New[rec](path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Save([]rec{{ID: "keep"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Make the directory unwritable so the temp file cannot be created.
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	defer os.Chmod(dir, 0o755)

	if err := s.Save([]rec{{ID: "lost"}}); err == nil {
		t.Fatalf("expected save failure on read-only dir")
	}

	if err := os.Chmod(dir, 0o755); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "keep" {
		t.Fatalf("prior content lost: %+v", got)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := New[rec](path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Load(); err == nil {
		t.Fatalf("expected decode error")
	}
}
