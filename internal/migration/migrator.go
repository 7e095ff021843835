package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/schema"
	"github.com/loykin/migrado/internal/script"
	"github.com/loykin/migrado/internal/store"
)

// TxOptions are passed through verbatim to the transaction executor.
type TxOptions struct {
	MaxTransactionSize      int64
	IntermediateCommitSize  int64
	IntermediateCommitCount int64
	// Async disables waitForSync on commit.
	Async bool
}

// TransactionExecutor runs a function body atomically with write access to
// the named collections.
type TransactionExecutor interface {
	ExecuteTransaction(ctx context.Context, body string, write []string, opts TxOptions) error
}

// ScriptExecutor runs a function body out of band and returns its output.
type ScriptExecutor interface {
	RunScript(ctx context.Context, body string) (string, error)
}

// Phase names a step of applying one migration.
type Phase string

const (
	PhaseParse       Phase = "parse"
	PhaseTransaction Phase = "transaction"
	PhaseScript      Phase = "script"
	PhasePersist     Phase = "persist"
)

type outcomeKind int

const (
	outcomeApplied outcomeKind = iota
	outcomeRecoverable
	outcomeFatal
)

// outcome is the tagged result of one execution phase.
type outcome struct {
	kind   outcomeKind
	output string
	err    error
}

// Step is one migration prepared for a run.
type Step struct {
	Migration Migration
	Body      string
	Write     []string
	// Schema is the literal embedded in Body, nil when there is none.
	Schema *schema.Description
}

// Plan is the validated sequence of steps for a run.
type Plan struct {
	Direction Direction
	From      string
	Target    string
	Steps     []Step
}

// Applied records how one migration was applied.
type Applied struct {
	ID    string
	Phase Phase
}

// Report summarises a run. FailedID and FailedPhase are set when the run
// aborted.
type Report struct {
	Direction   Direction
	From        string
	Target      string
	State       string
	Applied     []Applied
	FailedID    string
	FailedPhase Phase
}

// Migrator applies migrations from a Registry and keeps the state store in
// step with what was applied.
type Migrator struct {
	Registry  *Registry
	Tx        TransactionExecutor
	Script    ScriptExecutor
	Store     store.StateStore
	TxOptions TxOptions
	Logger    *common.Logger
}

func (m *Migrator) logger() *common.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return common.GetLogger().WithComponent("migrator")
}

// Plan resolves the target and reads every selected migration. Nothing is
// executed or written; any error here leaves the database untouched.
func (m *Migrator) Plan(ctx context.Context, target, stateOverride string) (*Plan, error) {
	if m.Registry == nil || m.Registry.Len() == 0 {
		return nil, &UsageError{Err: ErrNoMigrations}
	}
	if target == "" {
		latest, err := m.Registry.Latest()
		if err != nil {
			return nil, err
		}
		target = latest
	}
	if target != store.InitialState && !m.Registry.Has(target) {
		return nil, Usagef("Target %s not found in migrations", target)
	}

	current := stateOverride
	if current == "" {
		if m.Store == nil {
			return nil, Usagef("no state store configured")
		}
		s, err := m.Store.ReadState(ctx)
		if err != nil {
			return nil, fmt.Errorf("read state: %w", err)
		}
		current = s
	} else if !ValidID(current) {
		return nil, Usagef("invalid state %q, expected a %d digit id", current, len(store.InitialState))
	}

	dir, ids := Select(current, target, m.Registry.IDs())
	p := &Plan{Direction: dir, From: current, Target: target}
	for _, id := range ids {
		mig, _ := m.Registry.Get(id)
		step, err := prepare(mig, dir)
		if err != nil {
			return nil, err
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func prepare(mig Migration, dir Direction) (Step, error) {
	src, err := mig.Source()
	if err != nil {
		return Step{}, err
	}
	body, ok := script.Extract(src, dir)
	if !ok {
		return Step{}, &script.ParseError{
			Name: mig.FileName(),
			Msg:  fmt.Sprintf("no %s function found, expected forward followed by reverse", dir),
		}
	}
	if err := script.Check(mig.FileName(), body); err != nil {
		return Step{}, err
	}
	desc, err := script.ExtractSchema(body)
	if err != nil {
		var pe *script.ParseError
		if errors.As(err, &pe) && pe.Name == "" {
			pe.Name = mig.FileName()
		}
		return Step{}, err
	}
	return Step{
		Migration: mig,
		Body:      body,
		Write:     script.ParseWriteCollections(src),
		Schema:    desc,
	}, nil
}

// Run moves the database from its current state (or stateOverride) to
// target, the latest migration when empty. State is written after every
// migration, so an aborted run leaves the last applied id in the store.
func (m *Migrator) Run(ctx context.Context, target, stateOverride string) (*Report, error) {
	logger := m.logger()
	if m.Store == nil {
		return nil, Usagef("no state store configured")
	}
	p, err := m.Plan(ctx, target, stateOverride)
	if err != nil {
		return nil, err
	}
	report := &Report{Direction: p.Direction, From: p.From, Target: p.Target, State: p.From}
	if p.Direction == DirectionNone || len(p.Steps) == 0 {
		logger.Info("nothing to do", "state", p.From, "target", p.Target)
		return report, nil
	}
	logger.Info("running migrations",
		"direction", string(p.Direction), "from", p.From, "target", p.Target, "count", len(p.Steps))

	for i, step := range p.Steps {
		id := step.Migration.ID
		phase, err := m.apply(ctx, p.Direction, step)
		if err != nil {
			report.FailedID = id
			report.FailedPhase = phase
			logger.WithMigration(id).WithDirection(string(p.Direction)).
				Error("migration failed", "phase", string(phase), "error", err)
			return report, err
		}

		next := nextState(p, i)
		if err := m.Store.WriteState(ctx, next); err != nil {
			report.FailedID = id
			report.FailedPhase = PhasePersist
			return report, fmt.Errorf("write state %s: %w", next, err)
		}
		report.State = next
		report.Applied = append(report.Applied, Applied{ID: id, Phase: phase})
		logger.WithMigration(id).Info(fmt.Sprintf("State is now at %s.", next))
	}
	return report, nil
}

// nextState is the state after step i: the step's own id going forward,
// and the next id down (or the target) going in reverse.
func nextState(p *Plan, i int) string {
	if p.Direction == DirectionForward {
		return p.Steps[i].Migration.ID
	}
	if i+1 < len(p.Steps) {
		return p.Steps[i+1].Migration.ID
	}
	return p.Target
}

// apply runs one step and reports the phase that decided its outcome.
func (m *Migrator) apply(ctx context.Context, dir Direction, step Step) (Phase, error) {
	id := step.Migration.ID
	logger := m.logger().WithMigration(id).WithDirection(string(dir))

	logger.Info(fmt.Sprintf("Running %s migration %s in transaction...", dir, id), "write", step.Write)
	tx := m.transaction(ctx, dir, step)
	m.record(ctx, id, dir, PhaseTransaction, tx)
	switch tx.kind {
	case outcomeApplied:
		return PhaseTransaction, nil
	case outcomeFatal:
		return PhaseTransaction, tx.err
	}
	logger.Warn("transaction failed, falling back to script", "error", tx.err)

	logger.Info(fmt.Sprintf("Running %s migration %s as schema migration...", dir, id))
	sc := m.script(ctx, dir, step)
	m.record(ctx, id, dir, PhaseScript, sc)
	if sc.kind != outcomeApplied {
		return PhaseScript, sc.err
	}
	if sc.output != "" {
		logger.Debug("script output", "output", logger.Masked(sc.output))
	}

	if step.Schema != nil {
		if err := m.Store.WriteSchema(ctx, *step.Schema); err != nil {
			return PhasePersist, fmt.Errorf("write schema for %s: %w", id, err)
		}
		logger.Info("Schema stored in database.")
	}
	return PhaseScript, nil
}

func (m *Migrator) transaction(ctx context.Context, dir Direction, step Step) outcome {
	if m.Tx == nil {
		return outcome{kind: outcomeRecoverable, err: errors.New("no transaction executor")}
	}
	err := m.Tx.ExecuteTransaction(ctx, step.Body, step.Write, m.TxOptions)
	switch {
	case err == nil:
		return outcome{kind: outcomeApplied}
	case ctx.Err() != nil:
		return outcome{kind: outcomeFatal, err: ctx.Err()}
	default:
		return outcome{kind: outcomeRecoverable, err: &TransactionExecutionError{ID: step.Migration.ID, Direction: dir, Err: err}}
	}
}

func (m *Migrator) script(ctx context.Context, dir Direction, step Step) outcome {
	if m.Script == nil {
		return outcome{kind: outcomeFatal, err: &ScriptExecutionError{
			ID: step.Migration.ID, Direction: dir, Err: errors.New("no script executor"),
		}}
	}
	out, err := m.Script.RunScript(ctx, step.Body)
	if err != nil {
		return outcome{kind: outcomeFatal, output: out, err: &ScriptExecutionError{
			ID: step.Migration.ID, Direction: dir, Output: strings.TrimSpace(out), Err: err,
		}}
	}
	return outcome{kind: outcomeApplied, output: out}
}

// record stores one history row when the store keeps run history. A
// failure to record never fails the migration.
func (m *Migrator) record(ctx context.Context, id string, dir Direction, phase Phase, o outcome) {
	rec, ok := m.Store.(store.RunRecorder)
	if !ok {
		return
	}
	output := o.output
	if o.err != nil && output == "" {
		output = o.err.Error()
	}
	run := store.Run{
		MigrationID: id,
		Direction:   string(dir),
		Phase:       string(phase),
		Failed:      o.kind != outcomeApplied,
		Output:      output,
		RanAt:       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := rec.RecordRun(ctx, run); err != nil {
		m.logger().Warn("failed to record run", "migration", id, "error", err)
	}
}
