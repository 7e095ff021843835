package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/loykin/migrado/internal/constants"
	"github.com/loykin/migrado/internal/util"
)

var migrationFileRegex = regexp.MustCompile(`^(\d{4}).*\.js$`)

// Migration is one migration file on disk.
type Migration struct {
	ID   string
	Name string
	Path string
}

// FileName returns the base name of the migration file.
func (m Migration) FileName() string { return filepath.Base(m.Path) }

// Source reads the migration script.
func (m Migration) Source() (string, error) {
	// #nosec G304 -- path comes from a listing of the migrations directory
	b, err := os.ReadFile(filepath.Clean(m.Path))
	if err != nil {
		return "", fmt.Errorf("read migration %s: %w", m.ID, err)
	}
	return string(b), nil
}

// Discover lists the migrations in dir ordered by id. A missing directory
// holds no migrations.
func Discover(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		m := migrationFileRegex.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		label := strings.TrimSuffix(strings.TrimPrefix(name[len(m[1]):], "_"), constants.MigrationExtension)
		out = append(out, Migration{ID: m[1], Name: label, Path: filepath.Join(dir, name)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Registry is the ordered, addressable set of migrations.
type Registry struct {
	migrations []Migration
	byID       map[string]Migration
}

// NewRegistry indexes migrations by id; two files sharing an id are a
// usage error.
func NewRegistry(migrations []Migration) (*Registry, error) {
	r := &Registry{byID: make(map[string]Migration, len(migrations))}
	for _, m := range migrations {
		if prev, dup := r.byID[m.ID]; dup {
			return nil, Usagef("duplicate migration id %s: %s and %s", m.ID, prev.FileName(), m.FileName())
		}
		r.byID[m.ID] = m
		r.migrations = append(r.migrations, m)
	}
	sort.SliceStable(r.migrations, func(i, j int) bool { return r.migrations[i].ID < r.migrations[j].ID })
	return r, nil
}

// Load discovers and indexes the migrations in dir.
func Load(dir string) (*Registry, error) {
	ms, err := Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("list migrations in %s: %w", dir, err)
	}
	return NewRegistry(ms)
}

func (r *Registry) Len() int { return len(r.migrations) }

// IDs returns ids in ascending order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.migrations))
	for i, m := range r.migrations {
		ids[i] = m.ID
	}
	return ids
}

func (r *Registry) Migrations() []Migration {
	return append([]Migration(nil), r.migrations...)
}

func (r *Registry) Get(id string) (Migration, bool) {
	m, ok := r.byID[id]
	return m, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Latest returns the highest id, or ErrNoMigrations.
func (r *Registry) Latest() (string, error) {
	if len(r.migrations) == 0 {
		return "", &UsageError{Err: ErrNoMigrations}
	}
	return r.migrations[len(r.migrations)-1].ID, nil
}

// NextID returns the id following the largest of ids.
func NextID(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", &UsageError{Err: ErrNoMigrations}
	}
	highest := -1
	for _, id := range ids {
		if len(id) != constants.IDWidth || !util.IsDigits(id) {
			return "", Usagef("invalid migration id %q", id)
		}
		n, _ := strconv.Atoi(id)
		if n > highest {
			highest = n
		}
	}
	if highest+1 > constants.MaxID {
		return "", Usagef("migration id space exhausted after %s", util.ZeroPad(highest, constants.IDWidth))
	}
	return util.ZeroPad(highest+1, constants.IDWidth), nil
}

// ValidID reports whether id is a well-formed migration id.
func ValidID(id string) bool {
	return len(id) == constants.IDWidth && util.IsDigits(id)
}
