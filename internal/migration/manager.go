package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tordrt/migracraft/internal/ddl"
	"github.com/tordrt/migracraft/internal/diff"
	"github.com/tordrt/migracraft/internal/schema"
)

var (
	// ErrNoChanges is returned when the declared schema matches the snapshot.
	ErrNoChanges = errors.New("no changes detected")
	// ErrNoMigrations is returned when a rollback is requested on an empty history.
	ErrNoMigrations = errors.New("no migrations to roll back")
)

// Manager creates migrations and rollbacks. It is the only writer of its
// stores and holds its Locker for the whole read-compute-write sequence.
type Manager struct {
	schemasDir       string
	snapshots        SnapshotStore
	migrations       MigrationStore
	locker           Locker
	logger           *slog.Logger
	now              func() time.Time
	lockTimeout      time.Duration
	allowDestructive bool
}

// DefaultLockTimeout bounds how long a run waits for another run's lock.
const DefaultLockTimeout = 30 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithLocker sets the Locker used to serialise runs.
func WithLocker(l Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// WithLockTimeout bounds the wait for the Locker. Zero or a negative value
// waits until the caller's context is done.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) { m.lockTimeout = d }
}

// WithClock overrides the time source used for migration ids.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAllowDestructive accepts changes the differ flags as destructive.
func WithAllowDestructive(allow bool) Option {
	return func(m *Manager) { m.allowDestructive = allow }
}

// NewManager creates a Manager reading declared schemas from schemasDir.
func NewManager(schemasDir string, snapshots SnapshotStore, migrations MigrationStore, opts ...Option) *Manager {
	m := &Manager{
		schemasDir:  schemasDir,
		snapshots:   snapshots,
		migrations:  migrations,
		locker:      noLock{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Proposal is a computed but not yet persisted migration.
type Proposal struct {
	Mode     ddl.Mode
	Previous *Snapshot // nil on the first run
	Current  *schema.Schema
	Diff     *diff.Diff
	Plan     *ddl.Plan
}

// ValidateOnly loads and validates the declared schemas without touching
// the stores.
func (m *Manager) ValidateOnly() (*schema.Schema, error) {
	s, _, err := schema.LoadDir(m.schemasDir)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("schemas are valid", "dir", m.schemasDir, "tables", len(s.Tables))
	return s, nil
}

// Plan computes the migration CreateMigration would write, without writing
// anything. Without a snapshot Full mode is used regardless of differential.
func (m *Manager) Plan(differential bool) (*Proposal, error) {
	previous, err := m.snapshots.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	current, renames, err := schema.LoadDir(m.schemasDir)
	if err != nil {
		return nil, err
	}

	mode := ddl.Differential
	if previous == nil || !differential {
		mode = ddl.Full
	}
	if previous == nil && differential {
		m.logger.Info("no snapshot found, generating full migration")
	}

	// Full mode starts from an empty database, so rename directives do
	// not apply.
	from := schema.Empty()
	if mode == ddl.Differential {
		from = previous.Schema
	} else {
		renames = nil
	}

	d := diff.Compute(from, current, renames)
	for _, note := range d.Ignored {
		m.logger.Warn("warning: ignoring rename directive", "detail", note)
	}

	plan, err := ddl.Generate(d, mode, ddl.Options{AllowDestructive: m.allowDestructive})
	if err != nil {
		return nil, err
	}

	if err := verify(from, current, plan); err != nil {
		return nil, err
	}

	return &Proposal{Mode: mode, Previous: previous, Current: current, Diff: d, Plan: plan}, nil
}

// CreateMigration computes, verifies and persists a migration and replaces
// the snapshot. It returns ErrNoChanges when there is nothing to migrate.
func (m *Manager) CreateMigration(ctx context.Context, name string, differential bool) (*Migration, error) {
	release, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			m.logger.Warn("warning: failed to release migration lock", "error", rerr)
		}
	}()

	p, err := m.Plan(differential)
	if err != nil {
		return nil, err
	}
	if p.Plan.Empty() {
		return nil, ErrNoChanges
	}

	// A full migration starts from an empty database; rolling it back
	// restores the empty schema.
	var parentID, floor int64
	if p.Previous != nil {
		floor = p.Previous.ID
		if p.Mode == ddl.Differential {
			parentID = p.Previous.ID
		}
	}
	id, err := m.nextID(floor)
	if err != nil {
		return nil, err
	}

	name = cleanName(name)
	if name == "" {
		name = "schema_update"
		if p.Mode == ddl.Full {
			name = "full_schema"
		}
	}

	mig := &Migration{
		ID:        id,
		Name:      name,
		Kind:      KindMigration,
		ParentID:  parentID,
		CreatedAt: m.now().UTC().Truncate(time.Second),
		Up:        p.Plan.UpSQL(),
		Down:      p.Plan.DownSQL(),
	}
	if err := m.persist(mig, p.Current); err != nil {
		return nil, err
	}

	m.logger.Info("created migration",
		"id", mig.ID, "name", mig.Name, "mode", p.Mode.String(), "statements", len(mig.Up))
	return mig, nil
}

// CreateRollback appends a migration that undoes the latest one and
// restores the snapshot that preceded it. The undone migration is kept.
func (m *Manager) CreateRollback(ctx context.Context, name string) (*Migration, error) {
	release, err := m.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			m.logger.Warn("warning: failed to release migration lock", "error", rerr)
		}
	}()

	latest, err := m.migrations.Latest()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest migration: %w", err)
	}
	if latest == nil {
		return nil, ErrNoMigrations
	}

	restored, err := m.snapshots.LoadAt(latest.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot preceding migration %d: %w", latest.ID, err)
	}

	id, err := m.nextID(latest.ID)
	if err != nil {
		return nil, err
	}
	name = cleanName(name)
	if name == "" {
		name = fmt.Sprintf("rollback_%d", latest.ID)
	}

	mig := &Migration{
		ID:         id,
		Name:       name,
		Kind:       KindRollback,
		ParentID:   latest.ID,
		RollbackOf: latest.ID,
		CreatedAt:  m.now().UTC().Truncate(time.Second),
		Up:         append([]string(nil), latest.Down...),
		Down:       append([]string(nil), latest.Up...),
	}
	if err := m.persist(mig, restored.Schema); err != nil {
		return nil, err
	}

	m.logger.Info("created rollback migration", "id", mig.ID, "rollback_of", latest.ID, "statements", len(mig.Up))
	return mig, nil
}

// lock acquires the Locker, giving up after the lock timeout.
func (m *Manager) lock(ctx context.Context) (func() error, error) {
	if m.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.lockTimeout)
		defer cancel()
	}
	release, err := m.locker.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to lock migrations: %w", err)
	}
	return release, nil
}

// nextID returns an id greater than floor and than every stored migration.
func (m *Manager) nextID(floor int64) (int64, error) {
	latest, err := m.migrations.Latest()
	if err != nil {
		return 0, fmt.Errorf("failed to load latest migration: %w", err)
	}
	if latest != nil && latest.ID > floor {
		floor = latest.ID
	}
	return NextID(m.now(), floor), nil
}

// remover is implemented by stores that can take back a migration whose
// snapshot could not be saved.
type remover interface {
	Remove(m *Migration) error
}

func (m *Manager) persist(mig *Migration, s *schema.Schema) error {
	if err := m.migrations.Append(mig); err != nil {
		return fmt.Errorf("failed to save migration %d: %w", mig.ID, err)
	}
	if err := m.snapshots.Save(&Snapshot{ID: mig.ID, Schema: s}); err != nil {
		if r, ok := m.migrations.(remover); ok {
			if rerr := r.Remove(mig); rerr != nil {
				m.logger.Warn("warning: failed to remove migration after snapshot error", "id", mig.ID, "error", rerr)
			}
		}
		return fmt.Errorf("failed to save snapshot %d: %w", mig.ID, err)
	}
	return nil
}

// verify simulates the plan: up must turn from into to and down must
// restore from.
func verify(from, to *schema.Schema, plan *ddl.Plan) error {
	after, err := ddl.Apply(from, plan.Up)
	if err != nil {
		return fmt.Errorf("failed to verify up statements: %w", err)
	}
	if rest := diff.Compute(after, to, nil); !rest.Empty() {
		return fmt.Errorf("up statements leave %d table(s) different from the declared schema", len(rest.Changes))
	}

	restored, err := ddl.Apply(after, plan.Down)
	if err != nil {
		return fmt.Errorf("failed to verify down statements: %w", err)
	}
	if rest := diff.Compute(restored, from, nil); !rest.Empty() {
		return fmt.Errorf("down statements leave %d table(s) different from the previous schema", len(rest.Changes))
	}
	return nil
}
