package migration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDiscover_OrdersAndNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0002_add_books.js", "")
	writeFile(t, dir, "0001_initial.js", "")
	writeFile(t, dir, "0010.js", "")
	writeFile(t, dir, "README.md", "")
	writeFile(t, dir, "001_short.js", "")
	writeFile(t, dir, "0003_notes.txt", "")
	if err := os.Mkdir(filepath.Join(dir, "0004_dir.js"), 0o755); err != nil {
		t.Fatal(err)
	}

	ms, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []struct{ id, name string }{{"0001", "initial"}, {"0002", "add_books"}, {"0010", ""}}
	if len(ms) != len(want) {
		t.Fatalf("expected %d migrations, got %+v", len(want), ms)
	}
	for i, w := range want {
		if ms[i].ID != w.id || ms[i].Name != w.name {
			t.Fatalf("migration %d: got %s/%q, want %s/%q", i, ms[i].ID, ms[i].Name, w.id, w.name)
		}
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	ms, err := Discover(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(ms) != 0 {
		t.Fatalf("expected empty result, got %v %v", ms, err)
	}
}

func TestLoad_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0001_a.js", "")
	writeFile(t, dir, "0001_b.js", "")
	_, err := Load(dir)
	if !IsUsage(err) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg, err := NewRegistry([]Migration{{ID: "0002"}, {ID: "0001"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.IDs(); len(got) != 2 || got[0] != "0001" || got[1] != "0002" {
		t.Fatalf("unexpected ids %v", got)
	}
	if latest, _ := reg.Latest(); latest != "0002" {
		t.Fatalf("latest = %s", latest)
	}
	if !reg.Has("0001") || reg.Has("0003") {
		t.Fatal("Has mismatch")
	}
	if _, ok := reg.Get("0002"); !ok {
		t.Fatal("Get(0002) not found")
	}

	empty, _ := NewRegistry(nil)
	if _, err := empty.Latest(); !errors.Is(err, ErrNoMigrations) {
		t.Fatalf("expected ErrNoMigrations, got %v", err)
	}
}

func TestNextID(t *testing.T) {
	got, err := NextID([]string{"0001", "0002", "0003"})
	if err != nil || got != "0004" {
		t.Fatalf("NextID = %q, %v", got, err)
	}
	got, err = NextID([]string{"0009", "0002"})
	if err != nil || got != "0010" {
		t.Fatalf("NextID with gaps = %q, %v", got, err)
	}

	_, err = NextID(nil)
	if !errors.Is(err, ErrNoMigrations) || !IsUsage(err) {
		t.Fatalf("expected wrapped ErrNoMigrations, got %v", err)
	}
	if _, err := NextID([]string{"9999"}); !IsUsage(err) {
		t.Fatalf("expected overflow usage error, got %v", err)
	}
	if _, err := NextID([]string{"12"}); !IsUsage(err) {
		t.Fatalf("expected invalid id usage error, got %v", err)
	}
}
