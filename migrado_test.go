package migrado

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/loykin/migrado/internal/arango"
	"github.com/loykin/migrado/internal/store"
)

// docServer fakes the ArangoDB endpoints used by the engine with the
// default arango state store.
type docServer struct {
	mu    sync.Mutex
	colls map[string]bool
	docs  map[string]json.RawMessage
	tx    []map[string]any
}

func (s *docServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notFound := func() {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":true,"code":404,"errorNum":1203,"errorMessage":"not found"}`)
	}
	path := strings.TrimPrefix(r.URL.Path, "/_db/app/_api/")
	parts := strings.Split(path, "/")
	switch {
	case parts[0] == "transaction":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.tx = append(s.tx, body)
		_, _ = io.WriteString(w, `{"error":false,"result":null}`)
	case parts[0] == "collection" && len(parts) == 1 && r.Method == http.MethodGet:
		var result []map[string]any
		for n := range s.colls {
			result = append(result, map[string]any{"name": n, "type": 2})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	case parts[0] == "collection" && len(parts) == 1 && r.Method == http.MethodPost:
		var body struct{ Name string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.colls[body.Name] = true
		_, _ = io.WriteString(w, `{}`)
	case parts[0] == "collection" && len(parts) == 2:
		if !s.colls[parts[1]] {
			notFound()
			return
		}
		_, _ = io.WriteString(w, `{}`)
	case parts[0] == "document" && r.Method == http.MethodGet:
		doc, ok := s.docs[parts[1]+"/"+parts[2]]
		if !ok {
			notFound()
			return
		}
		_, _ = w.Write(doc)
	case parts[0] == "document" && r.Method == http.MethodPost:
		raw, _ := io.ReadAll(r.Body)
		var doc struct {
			Key string `json:"_key"`
		}
		_ = json.Unmarshal(raw, &doc)
		s.docs[parts[1]+"/"+doc.Key] = raw
		_, _ = io.WriteString(w, `{}`)
	default:
		notFound()
	}
}

func startDocServer(t *testing.T) (*docServer, arango.Config) {
	t.Helper()
	s := &docServer{colls: map[string]bool{}, docs: map[string]json.RawMessage{}}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	return s, arango.Config{Host: u.Hostname(), Port: port, Database: "app"}
}

const txMigration = `// write books
function forward() {
    var db = require("@arangodb").db
    db.books.save({ title: "Dune" })
}

function reverse() {
    var db = require("@arangodb").db
    db.books.truncate()
}
`

func TestOpen_Validation(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); !IsUsage(err) {
		t.Fatalf("expected usage error without a database, got %v", err)
	}
	_, err := Open(context.Background(), Config{Database: arango.Config{Database: "x"}, Auth: AuthConfig{Type: "kerberos"}})
	if !IsUsage(err) {
		t.Fatalf("expected usage error for unknown auth, got %v", err)
	}
}

func TestEngine_RunWithArangoStore(t *testing.T) {
	srv, db := startDocServer(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "0001_books.js"), []byte(txMigration), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	e, err := Open(ctx, Config{Database: db, MigrationsPath: dir, Tx: TxOptions{IntermediateCommitCount: 10}})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = e.Close() }()

	rep, err := e.Run(ctx, "", "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.State != "0001" || len(srv.tx) != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	tx := srv.tx[0]
	if tx["waitForSync"] != true || tx["intermediateCommitCount"] != float64(10) {
		t.Fatalf("transaction options not passed: %v", tx)
	}
	if !srv.colls["migrado"] {
		t.Fatal("state collection should have been created")
	}
	if !strings.Contains(string(srv.docs["migrado/state"]), `"0001"`) {
		t.Fatalf("state document %s", srv.docs["migrado/state"])
	}

	in, err := e.Inspect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if in.State != "0001" || in.Latest != "0001" || in.Runs != nil {
		t.Fatalf("unexpected inspection %+v", in)
	}
}

func TestEngine_SchemaInferredThenStored(t *testing.T) {
	srv, db := startDocServer(t)
	srv.colls["books"] = true
	ctx := context.Background()
	e, err := Open(ctx, Config{Database: db, MigrationsPath: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = e.Close() }()

	d, err := e.Schema(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Has("books") || d.Has("migrado") {
		t.Fatalf("unexpected inferred schema %+v", d)
	}

	want := Schema{Collections: map[string]Rule{"authors": nil}, EdgeCollections: map[string]Rule{}}
	if err := e.Store.WriteSchema(ctx, want); err != nil {
		t.Fatal(err)
	}
	d, err = e.Schema(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Has("authors") || d.Has("books") {
		t.Fatalf("stored schema must win over inference, got %+v", d)
	}
}

func TestEngine_InitInferAndMake(t *testing.T) {
	srv, db := startDocServer(t)
	srv.colls["books"] = true
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "m")
	e, err := Open(ctx, Config{
		Database:       db,
		MigrationsPath: dir,
		Store: store.Config{
			Driver:       DriverSqlite,
			DriverConfig: &store.SqliteConfig{Path: filepath.Join(t.TempDir(), "s.db")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = e.Close() }()

	if _, err := e.Init(ctx, "", true, ""); err != nil {
		t.Fatalf("init: %v", err)
	}
	if s, _ := e.Store.ReadState(ctx); s != "0001" {
		t.Fatalf("state = %s", s)
	}
	d, err := e.Schema(ctx, "")
	if err != nil || !d.Has("books") {
		t.Fatalf("stored schema %+v %v", d, err)
	}

	schemaFile := filepath.Join(t.TempDir(), "schema.yml")
	if err := os.WriteFile(schemaFile, []byte("collections:\n  books:\n  authors:\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := e.Make(ctx, "authors", schemaFile, "")
	if err != nil {
		t.Fatal(err)
	}
	src, _ := m.Source()
	if !strings.Contains(src, `db._create("authors", {})`) || strings.Contains(src, `db._create("books"`) {
		t.Fatalf("unexpected generated migration:\n%s", src)
	}
}
