// Package migration orchestrates migration creation and rollback on top of
// the differ and the DDL generator, and persists migrations and schema
// snapshots.
package migration

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/tordrt/migracraft/internal/schema"
)

// Kind distinguishes regular migrations from rollbacks.
type Kind string

const (
	KindMigration Kind = "migration"
	KindRollback  Kind = "rollback"
)

// idLayout renders migration ids as YYYYMMDDHHMMSS
const idLayout = "20060102150405"

// Migration is one persisted set of up and down statements. It is never
// modified after it has been appended to a store.
type Migration struct {
	ID   int64
	Name string
	Kind Kind

	// ParentID is the id of the snapshot the migration was computed from,
	// 0 when there was none.
	ParentID int64

	// RollbackOf is the id of the migration a rollback undoes.
	RollbackOf int64

	CreatedAt time.Time
	Up        []string
	Down      []string
}

// Filename returns the file name the migration is stored under.
func (m *Migration) Filename() string {
	return strconv.FormatInt(m.ID, 10) + "_" + Slug(m.Name) + ".sql"
}

// Snapshot is a schema tagged with the id of the migration that produced it.
type Snapshot struct {
	ID     int64          `yaml:"id"`
	Schema *schema.Schema `yaml:"schema"`
}

// NextID derives a migration id from now. Ids are strictly increasing: when
// the clock would not advance past last, last+1 is used.
func NextID(now time.Time, last int64) int64 {
	id, _ := strconv.ParseInt(now.UTC().Format(idLayout), 10, 64)
	if id <= last {
		return last + 1
	}
	return id
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a migration name into a file-name friendly identifier.
func Slug(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "migration"
	}
	return s
}

// cleanName folds runs of control characters, newlines included, into
// single spaces so a name fits on one header line.
func cleanName(name string) string {
	return strings.Join(strings.FieldsFunc(name, unicode.IsControl), " ")
}
