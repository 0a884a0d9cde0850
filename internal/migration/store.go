package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/migracraft/internal/schema"
)

// SnapshotStore persists the current schema snapshot and archives every
// saved snapshot by id.
type SnapshotStore interface {
	// Load returns the current snapshot, or nil when none was saved yet.
	Load() (*Snapshot, error)
	// LoadAt returns the archived snapshot with the given id. Id 0 is the
	// empty schema.
	LoadAt(id int64) (*Snapshot, error)
	// Save replaces the current snapshot.
	Save(s *Snapshot) error
}

// MigrationStore is an append-only history of migrations.
type MigrationStore interface {
	Append(m *Migration) error
	// Latest returns the migration with the highest id, or nil when the
	// history is empty.
	Latest() (*Migration, error)
	// List returns every migration ordered by id.
	List() ([]*Migration, error)
}

// ErrSnapshotNotFound is returned by LoadAt for an unknown id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

const (
	snapshotFile = ".schema_snapshot.yaml"
	snapshotDir  = "snapshots"
)

// FileSnapshotStore keeps the current snapshot in
// <dir>/.schema_snapshot.yaml and the archive in <dir>/snapshots/<id>.yaml.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates a snapshot store rooted at dir.
func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir}
}

func (s *FileSnapshotStore) Load() (*Snapshot, error) {
	snap, err := readSnapshot(filepath.Join(s.dir, snapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return snap, err
}

func (s *FileSnapshotStore) LoadAt(id int64) (*Snapshot, error) {
	if id == 0 {
		return &Snapshot{Schema: schema.Empty()}, nil
	}
	snap, err := readSnapshot(s.archivePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", ErrSnapshotNotFound, id)
	}
	return snap, err
}

func (s *FileSnapshotStore) Save(snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.dir, snapshotDir), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := writeFileAtomic(s.archivePath(snap.ID), data); err != nil {
		return fmt.Errorf("failed to archive snapshot %d: %w", snap.ID, err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, snapshotFile), data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) archivePath(id int64) string {
	return filepath.Join(s.dir, snapshotDir, strconv.FormatInt(id, 10)+".yaml")
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	if snap.Schema == nil {
		snap.Schema = schema.Empty()
	}
	return &snap, nil
}

// writeFileAtomic replaces path through a temporary file so readers never
// see a partial snapshot.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// FileMigrationStore stores each migration as <id>_<name>.sql in dir.
type FileMigrationStore struct {
	dir string
}

// NewFileMigrationStore creates a migration store rooted at dir.
func NewFileMigrationStore(dir string) *FileMigrationStore {
	return &FileMigrationStore{dir: dir}
}

// Path returns the file a migration is written to.
func (s *FileMigrationStore) Path(m *Migration) string {
	return filepath.Join(s.dir, m.Filename())
}

func (s *FileMigrationStore) Append(m *Migration) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}
	f, err := os.OpenFile(s.Path(m), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create migration file: %w", err)
	}
	if _, err := f.Write(Encode(m)); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write migration file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}
	return nil
}

func (s *FileMigrationStore) Latest() (*Migration, error) {
	all, err := s.List()
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[len(all)-1], nil
}

func (s *FileMigrationStore) List() ([]*Migration, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []*Migration
	for _, e := range entries {
		if e.IsDir() || !migrationFile.MatchString(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		m, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse migration %s: %w", e.Name(), err)
		}
		if m.ID == 0 {
			// Files without a header take their id from the file name.
			m.ID, _ = strconv.ParseInt(migrationFile.FindStringSubmatch(e.Name())[1], 10, 64)
		}
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})
	return migrations, nil
}

// Remove deletes a migration file. The Manager only uses it to undo an
// Append whose snapshot could not be saved.
func (s *FileMigrationStore) Remove(m *Migration) error {
	return os.Remove(s.Path(m))
}
