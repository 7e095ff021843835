package migration

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/loykin/migrado/internal/schema"
	"github.com/loykin/migrado/internal/store"
)

// fakeDB models the collections of a database. Transactions reject
// collection DDL the way ArangoDB does.
type fakeDB struct {
	mu          sync.Mutex
	collections map[string]bool
	txCalls     []txCall
	scriptCalls []string
	scriptErr   error
	txErr       error
}

type txCall struct {
	body  string
	write []string
	opts  TxOptions
}

func newFakeDB() *fakeDB { return &fakeDB{collections: map[string]bool{}} }

var (
	createRe = regexp.MustCompile(`db\._create\("([\w-]+)"`)
	dropRe   = regexp.MustCompile(`db\._drop\("([\w-]+)"\)`)
)

func (f *fakeDB) ExecuteTransaction(_ context.Context, body string, write []string, opts TxOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls = append(f.txCalls, txCall{body: body, write: write, opts: opts})
	if f.txErr != nil {
		return f.txErr
	}
	if createRe.MatchString(body) || dropRe.MatchString(body) {
		return errors.New("collection operations are not supported in transactions")
	}
	return nil
}

func (f *fakeDB) RunScript(_ context.Context, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scriptCalls = append(f.scriptCalls, body)
	if f.scriptErr != nil {
		return "JavaScript exception: boom", f.scriptErr
	}
	for _, m := range createRe.FindAllStringSubmatch(body, -1) {
		f.collections[m[1]] = true
	}
	for _, m := range dropRe.FindAllStringSubmatch(body, -1) {
		delete(f.collections, m[1])
	}
	return "", nil
}

func (f *fakeDB) Collections(_ context.Context, _ bool) ([]schema.CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []schema.CollectionInfo{{Name: "_users", System: true}, {Name: "migrado"}}
	names := make([]string, 0, len(f.collections))
	for n := range f.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		out = append(out, schema.CollectionInfo{Name: n, Edge: strings.HasSuffix(n, "_of")})
	}
	return out, nil
}

// memStore is an in-memory state store that also keeps run history.
type memStore struct {
	state     string
	schema    *schema.Description
	writes    []string
	runs      []store.Run
	failWrite bool
}

func newMemStore() *memStore { return &memStore{state: store.InitialState} }

func (s *memStore) ReadState(context.Context) (string, error) { return s.state, nil }

func (s *memStore) WriteState(_ context.Context, id string) error {
	if s.failWrite {
		return errors.New("store unavailable")
	}
	s.state = id
	s.writes = append(s.writes, id)
	return nil
}

func (s *memStore) ReadSchema(context.Context) (*schema.Description, error) { return s.schema, nil }

func (s *memStore) WriteSchema(_ context.Context, d schema.Description) error {
	s.schema = &d
	return nil
}

func (s *memStore) RecordRun(_ context.Context, r store.Run) error {
	s.runs = append(s.runs, r)
	return nil
}

func (s *memStore) ListRuns(context.Context) ([]store.Run, error) { return s.runs, nil }

func (s *memStore) Close() error { return nil }
