package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/constants"
	"github.com/loykin/migrado/internal/schema"
	"github.com/loykin/migrado/internal/script"
	"github.com/loykin/migrado/internal/store"
	"github.com/loykin/migrado/internal/util"
)

// Inspector lists the collections of the live database.
type Inspector interface {
	Collections(ctx context.Context, withRules bool) ([]schema.CollectionInfo, error)
}

// InferSchema builds a description of the live database, leaving out
// system collections and the state collection.
func InferSchema(ctx context.Context, in Inspector, stateCollection string, withRules bool) (schema.Description, error) {
	cols, err := in.Collections(ctx, withRules)
	if err != nil {
		return schema.Description{}, fmt.Errorf("list collections: %w", err)
	}
	return schema.Infer(cols, stateCollection, withRules), nil
}

const fileMode fs.FileMode = 0o755

var migrationNameRegex = regexp.MustCompile(`^[\w-]+$`)

// InitOptions configures Init.
type InitOptions struct {
	Dir        string
	SchemaFile string
	// Infer builds the initial schema from the live database and marks it
	// as applied.
	Infer           bool
	Level           schema.Level
	Inspector       Inspector
	Store           store.StateStore
	StateCollection string
}

// Init writes the first migration. With a schema file or inference the
// migration creates the described collections.
func Init(ctx context.Context, opts InitOptions) (Migration, error) {
	logger := common.GetLogger().WithComponent("author")
	if opts.SchemaFile != "" && opts.Infer {
		return Migration{}, Usagef("--schema and --infer cannot be combined")
	}
	if opts.Infer && (opts.Inspector == nil || opts.Store == nil) {
		return Migration{}, Usagef("inferring a schema requires a database connection")
	}

	id := util.ZeroPad(1, constants.IDWidth)
	mig := Migration{
		ID:   id,
		Name: constants.InitialMigrationName,
		Path: filepath.Join(opts.Dir, id+"_"+constants.InitialMigrationName+constants.MigrationExtension),
	}
	if _, err := os.Stat(mig.Path); err == nil {
		return mig, ErrInitialExists
	}
	if existing, err := Discover(opts.Dir); err == nil && len(existing) > 0 && existing[0].ID == id {
		return existing[0], ErrInitialExists
	}

	var desired *schema.Description
	switch {
	case opts.SchemaFile != "":
		d, err := schema.LoadFile(opts.SchemaFile)
		if err != nil {
			return Migration{}, &UsageError{Msg: "load schema", Err: err}
		}
		desired = &d
	case opts.Infer:
		d, err := InferSchema(ctx, opts.Inspector, opts.StateCollection, opts.Level != schema.LevelUnset)
		if err != nil {
			return Migration{}, err
		}
		desired = &d
	}

	text := script.Template
	if desired != nil {
		var err error
		text, err = renderDiff(schema.Empty(), *desired, opts.Level)
		if err != nil {
			return Migration{}, err
		}
	}

	// #nosec G301 -- migrations must be readable by arangosh
	if err := os.MkdirAll(opts.Dir, fileMode); err != nil {
		return Migration{}, fmt.Errorf("create %s: %w", opts.Dir, err)
	}
	if err := writeNew(mig.Path, text); err != nil {
		return Migration{}, err
	}
	logger.Info("created migration", "path", mig.Path)

	if opts.Infer && desired != nil && !desired.IsEmpty() {
		if err := opts.Store.WriteState(ctx, id); err != nil {
			return mig, fmt.Errorf("write state: %w", err)
		}
		if err := opts.Store.WriteSchema(ctx, *desired); err != nil {
			return mig, fmt.Errorf("write schema: %w", err)
		}
		logger.Info(fmt.Sprintf("State is now at %s.", id))
	}
	return mig, nil
}

// MakeOptions configures Make.
type MakeOptions struct {
	Dir  string
	Name string
	// SchemaFile generates the migration as a diff between the stored (or
	// inferred) schema and this file.
	SchemaFile      string
	Level           schema.Level
	Inspector       Inspector
	Store           store.StateStore
	StateCollection string
}

// Make writes the next migration in Dir.
func Make(ctx context.Context, opts MakeOptions) (Migration, error) {
	logger := common.GetLogger().WithComponent("author")
	if opts.Name != "" && !migrationNameRegex.MatchString(opts.Name) {
		return Migration{}, Usagef("invalid migration name %q, use letters, digits, _ and -", opts.Name)
	}
	existing, err := Discover(opts.Dir)
	if err != nil {
		return Migration{}, fmt.Errorf("list migrations in %s: %w", opts.Dir, err)
	}
	reg, err := NewRegistry(existing)
	if err != nil {
		return Migration{}, err
	}
	id, err := NextID(reg.IDs())
	if err != nil {
		return Migration{}, err
	}

	file := id
	if opts.Name != "" {
		file += "_" + opts.Name
	}
	mig := Migration{ID: id, Name: opts.Name, Path: filepath.Join(opts.Dir, file+constants.MigrationExtension)}

	text := script.Template
	if opts.SchemaFile != "" {
		desired, err := schema.LoadFile(opts.SchemaFile)
		if err != nil {
			return Migration{}, &UsageError{Msg: "load schema", Err: err}
		}
		previous, err := currentSchema(ctx, opts.Store, opts.Inspector, opts.StateCollection, opts.Level)
		if err != nil {
			return Migration{}, err
		}
		text, err = renderDiff(previous, desired, opts.Level)
		if err != nil {
			return Migration{}, err
		}
	}

	if err := writeNew(mig.Path, text); err != nil {
		return Migration{}, err
	}
	logger.Info("created migration", "path", mig.Path)
	return mig, nil
}

// currentSchema returns the stored schema, or the inferred one when none
// was stored.
func currentSchema(ctx context.Context, st store.StateStore, in Inspector, stateColl string, level schema.Level) (schema.Description, error) {
	if st == nil {
		return schema.Description{}, Usagef("generating a migration from a schema requires a database connection")
	}
	stored, err := st.ReadSchema(ctx)
	if err != nil {
		return schema.Description{}, fmt.Errorf("read schema: %w", err)
	}
	if stored != nil {
		return *stored, nil
	}
	if in == nil {
		return schema.Empty(), nil
	}
	return InferSchema(ctx, in, stateColl, level != schema.LevelUnset)
}

// renderDiff renders a migration moving previous to desired. Each function
// embeds the schema it leaves behind.
func renderDiff(previous, desired schema.Description, level schema.Level) (string, error) {
	d := schema.Diff(previous, desired)
	fwd, err := schema.Statements(schema.ForwardOps(d, level))
	if err != nil {
		return "", err
	}
	rev, err := schema.Statements(schema.ReverseOps(d, level))
	if err != nil {
		return "", err
	}
	desiredJSON, err := desired.Normalize().JSON()
	if err != nil {
		return "", err
	}
	previousJSON, err := previous.Normalize().JSON()
	if err != nil {
		return "", err
	}
	fwd = append([]string{script.SchemaStatement(desiredJSON)}, fwd...)
	rev = append([]string{script.SchemaStatement(previousJSON)}, rev...)
	return script.Render(fwd, rev), nil
}

func writeNew(path, text string) error {
	// #nosec G302 G304 -- migrations are executable arangosh scripts
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Usagef("Migration %s already exists", path)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// umask may have stripped the execute bits
	return os.Chmod(path, fileMode)
}
