package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loykin/migrado/internal/schema"
	"github.com/loykin/migrado/internal/script"
)

func TestInit_Template(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	mig, err := Init(context.Background(), InitOptions{Dir: dir})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if filepath.Base(mig.Path) != "0001_initial.js" {
		t.Fatalf("unexpected path %s", mig.Path)
	}
	b, err := os.ReadFile(mig.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != script.Template {
		t.Fatalf("expected plain template, got:\n%s", b)
	}
	info, _ := os.Stat(mig.Path)
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("expected executable file, got %v", info.Mode())
	}

	again, err := Init(context.Background(), InitOptions{Dir: dir, SchemaFile: "ignored.yml"})
	if !errors.Is(err, ErrInitialExists) || IsUsage(err) {
		t.Fatalf("second init should report the existing migration, got %v", err)
	}
	if again.Path != mig.Path {
		t.Fatalf("existing path = %s, want %s", again.Path, mig.Path)
	}
	if b2, _ := os.ReadFile(mig.Path); string(b2) != script.Template {
		t.Fatal("existing migration must not be rewritten")
	}
}

func TestInit_ExistingNumberedMigration(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "0001_bootstrap.js")
	if err := os.WriteFile(existing, []byte(script.Template), 0o600); err != nil {
		t.Fatal(err)
	}
	mig, err := Init(context.Background(), InitOptions{Dir: dir})
	if !errors.Is(err, ErrInitialExists) || mig.Path != existing {
		t.Fatalf("got %+v, %v", mig, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "0001_initial.js")); !os.IsNotExist(err) {
		t.Fatalf("0001_initial.js must not be created, stat err = %v", err)
	}
}

func TestInit_FromSchemaFile(t *testing.T) {
	tmp := t.TempDir()
	schemaFile := filepath.Join(tmp, "schema.yml")
	writeFile(t, tmp, "schema.yml", "collections:\n  books:\n  authors:\nedge_collections:\n  author_of:\n")
	dir := filepath.Join(tmp, "migrations")

	mig, err := Init(context.Background(), InitOptions{Dir: dir, SchemaFile: schemaFile})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	src, err := mig.Source()
	if err != nil {
		t.Fatal(err)
	}
	fwd, ok := script.Extract(src, script.Forward)
	if !ok {
		t.Fatalf("generated migration has no forward:\n%s", src)
	}
	for _, want := range []string{`db._create("authors", {})`, `db._create("books", {})`, `db._create("author_of", {}, "edge")`} {
		if !strings.Contains(fwd, want) {
			t.Fatalf("forward missing %s:\n%s", want, fwd)
		}
	}
	desc, err := script.ExtractSchema(fwd)
	if err != nil || desc == nil || !desc.Has("author_of") {
		t.Fatalf("forward schema literal: %+v %v", desc, err)
	}
	rev, _ := script.Extract(src, script.Reverse)
	if !strings.Contains(rev, `db._drop("books")`) {
		t.Fatalf("reverse missing drop:\n%s", rev)
	}
	if err := script.Check("fwd", fwd); err != nil {
		t.Fatalf("generated forward does not compile: %v", err)
	}
}

func TestInit_InferWritesState(t *testing.T) {
	db, st := newFakeDB(), newMemStore()
	db.collections["books"] = true
	db.collections["author_of"] = true
	dir := t.TempDir()

	_, err := Init(context.Background(), InitOptions{
		Dir: dir, Infer: true, Inspector: db, Store: st, StateCollection: "migrado",
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if st.state != "0001" {
		t.Fatalf("expected state 0001, got %s", st.state)
	}
	if st.schema == nil || !st.schema.Has("books") || st.schema.Has("migrado") || st.schema.Has("_users") {
		t.Fatalf("unexpected stored schema %+v", st.schema)
	}
	if _, ok := st.schema.EdgeCollections["author_of"]; !ok {
		t.Fatalf("author_of should be an edge collection: %+v", st.schema)
	}
}

func TestInit_InferEmptyDatabaseLeavesState(t *testing.T) {
	db, st := newFakeDB(), newMemStore()
	if _, err := Init(context.Background(), InitOptions{Dir: t.TempDir(), Infer: true, Inspector: db, Store: st}); err != nil {
		t.Fatal(err)
	}
	if len(st.writes) != 0 || st.schema != nil {
		t.Fatal("an empty inferred schema must not be stored")
	}
}

func TestInit_UsageErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Init(ctx, InitOptions{Dir: t.TempDir(), SchemaFile: "x.yml", Infer: true}); !IsUsage(err) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, err := Init(ctx, InitOptions{Dir: t.TempDir(), Infer: true}); !IsUsage(err) {
		t.Fatalf("expected usage error without a connection, got %v", err)
	}
	if _, err := Init(ctx, InitOptions{Dir: t.TempDir(), SchemaFile: filepath.Join(t.TempDir(), "missing.yml")}); !IsUsage(err) {
		t.Fatalf("expected usage error for missing schema file, got %v", err)
	}
}

func TestMake_Template(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	if _, err := Make(ctx, MakeOptions{Dir: dir}); !IsUsage(err) {
		t.Fatalf("make without migrations should be a usage error, got %v", err)
	}

	writeFile(t, dir, "0001_initial.js", script.Template)
	mig, err := Make(ctx, MakeOptions{Dir: dir, Name: "add_books"})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(mig.Path) != "0002_add_books.js" || mig.ID != "0002" {
		t.Fatalf("unexpected migration %+v", mig)
	}
	mig, err = Make(ctx, MakeOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(mig.Path) != "0003.js" {
		t.Fatalf("unexpected path %s", mig.Path)
	}
	if _, err := Make(ctx, MakeOptions{Dir: dir, Name: "bad name"}); !IsUsage(err) {
		t.Fatalf("expected usage error for name, got %v", err)
	}
}

func TestMake_DiffAgainstStoredSchema(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0001_initial.js", script.Template)
	writeFile(t, dir, "schema.yml", "collections:\n  books:\n  authors:\n")

	st := newMemStore()
	prev := schema.Empty()
	prev.Collections["books"] = nil
	prev.Collections["old"] = nil
	st.schema = &prev

	mig, err := Make(context.Background(), MakeOptions{
		Dir: dir, SchemaFile: filepath.Join(dir, "schema.yml"), Store: st,
	})
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	src, _ := mig.Source()
	fwd, _ := script.Extract(src, script.Forward)
	rev, _ := script.Extract(src, script.Reverse)

	for _, want := range []string{`db._create("authors", {})`, `db._collection("books").properties({})`, `db._drop("old")`} {
		if !strings.Contains(fwd, want) {
			t.Fatalf("forward missing %s:\n%s", want, fwd)
		}
	}
	for _, want := range []string{`db._drop("authors")`, `db._create("old", {})`} {
		if !strings.Contains(rev, want) {
			t.Fatalf("reverse missing %s:\n%s", want, rev)
		}
	}
	revSchema, err := script.ExtractSchema(rev)
	if err != nil || revSchema == nil || !revSchema.Has("old") || revSchema.Has("authors") {
		t.Fatalf("reverse must embed the previous schema, got %+v %v", revSchema, err)
	}
}

func TestMake_InfersWhenNothingStored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0001_initial.js", script.Template)
	writeFile(t, dir, "schema.yml", "collections:\n  books:\n")
	db := newFakeDB()
	db.collections["books"] = true

	mig, err := Make(context.Background(), MakeOptions{
		Dir: dir, SchemaFile: filepath.Join(dir, "schema.yml"), Store: newMemStore(), Inspector: db, StateCollection: "migrado",
	})
	if err != nil {
		t.Fatal(err)
	}
	src, _ := mig.Source()
	if strings.Contains(src, `db._create("books"`) {
		t.Fatalf("books exists in the live database and must not be created:\n%s", src)
	}
}
