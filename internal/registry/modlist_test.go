package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"wabbabot/internal/store"
	logx "wabbabot/pkg/logx"
)

func newModlistRegistry(t *testing.T) *ModlistRegistry {
	t.Helper()
	st, err := store.New[Modlist](filepath.Join(t.TempDir(), "modlists.json"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	r, err := NewModlistRegistry(st, logx.Nop())
	if err != nil {
		t.Fatalf("NewModlistRegistry: %v", err)
	}
	return r
}

func TestAddThenGetByID(t *testing.T) {
	r := newModlistRegistry(t)
	want := Modlist{ID: "wj", AuthorID: "100", Title: "Wildlander"}
	if _, err := r.Add(want); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := r.GetByID("wj")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestAddDuplicate(t *testing.T) {
	r := newModlistRegistry(t)
	if _, err := r.Add(Modlist{ID: "wj", AuthorID: "100"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, err := r.Add(Modlist{ID: "wj", AuthorID: "999"})
	if !errors.Is(err, ErrDuplicateModlist) {
		t.Fatalf("expected ErrDuplicateModlist, got %v", err)
	}
	if n := len(r.List()); n != 1 {
		t.Fatalf("expected exactly one record, got %d", n)
	}
}

func TestDelete(t *testing.T) {
	r := newModlistRegistry(t)
	if _, err := r.Add(Modlist{ID: "wj", AuthorID: "100"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	removed, err := r.Delete("wj")
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	if _, err := r.GetByID("wj"); !errors.Is(err, ErrModlistNotFound) {
		t.Fatalf("expected ErrModlistNotFound, got %v", err)
	}

	// Deleting a nonexistent id is a reported no-op, not an error.
	removed, err = r.Delete("wj")
	if err != nil {
		t.Fatalf("Delete nonexistent: %v", err)
	}
	if removed {
		t.Fatalf("expected removed=false for nonexistent id")
	}
}

func TestGetByAuthorFirstMatch(t *testing.T) {
	r := newModlistRegistry(t)
	first := Modlist{ID: "a", AuthorID: "100"}
	if _, err := r.Add(first); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Add(Modlist{ID: "b", AuthorID: "100"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := r.GetByAuthor("100")
	if err != nil {
		t.Fatalf("GetByAuthor: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected first match %q, got %q", first.ID, got.ID)
	}
	if _, err := r.GetByAuthor("nobody"); !errors.Is(err, ErrModlistNotFound) {
		t.Fatalf("expected ErrModlistNotFound, got %v", err)
	}
}

func TestModlistPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modlists.json")
	st, err := store.New[Modlist](path)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	r, err := NewModlistRegistry(st, logx.Nop())
	if err != nil {
		t.Fatalf("NewModlistRegistry: %v", err)
	}
	want := Modlist{ID: "wj", AuthorID: "100", Title: "Wildlander", Version: "1.2.0", RoleID: "555"}
	if _, err := r.Add(want); err != nil {
		t.Fatalf("Add: %v", err)
	}

	st2, err := store.New[Modlist](path)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	r2, err := NewModlistRegistry(st2, logx.Nop())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := r2.GetByID("wj")
	if err != nil {
		t.Fatalf("GetByID after reload: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: expected %+v, got %+v", want, got)
	}
}

func TestUpdateMetadata(t *testing.T) {
	r := newModlistRegistry(t)
	if _, err := r.Add(Modlist{ID: "wj", AuthorID: "100"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := r.UpdateMetadata("wj", ModlistMeta{Title: "Wildlander", Version: "1.3.0", ImageLink: "https://img"})
	if err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}
	if got.Title != "Wildlander" || got.Version != "1.3.0" || got.ImageLink != "https://img" {
		t.Fatalf("metadata not applied: %+v", got)
	}
	if got.AuthorID != "100" {
		t.Fatalf("author must survive metadata refresh, got %q", got.AuthorID)
	}
	if _, err := r.UpdateMetadata("nope", ModlistMeta{}); !errors.Is(err, ErrModlistNotFound) {
		t.Fatalf("expected ErrModlistNotFound, got %v", err)
	}
}
