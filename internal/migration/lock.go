package migration

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrLocked is returned when another run still holds the lock once the
// context is done.
var ErrLocked = errors.New("migrations directory is locked")

// Locker serialises migration runs against one migrations directory. The
// returned release function must be called once the run is finished.
type Locker interface {
	Lock(ctx context.Context) (release func() error, err error)
}

// FileLock is a Locker backed by an exclusively created lock file holding
// the owner's process id.
type FileLock struct {
	path     string
	interval time.Duration
	logger   *slog.Logger
}

const lockFile = ".migracraft.lock"

// NewFileLock creates a lock file inside dir. A nil logger discards the
// waiting notice.
func NewFileLock(dir string, logger *slog.Logger) *FileLock {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileLock{path: filepath.Join(dir, lockFile), interval: 100 * time.Millisecond, logger: logger}
}

// Lock polls until the lock file can be created or ctx is done. A lock file
// left by a crashed run is never taken over; the error names its process.
func (l *FileLock) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	waiting := false
	for {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			if err := f.Close(); err != nil {
				_ = os.Remove(l.path)
				return nil, fmt.Errorf("failed to write lock file: %w", err)
			}
			return func() error { return os.Remove(l.path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		if !waiting {
			waiting = true
			l.logger.Warn("warning: waiting for migration lock", "lock_file", l.path, "pid", l.holder())
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w by process %s (remove %s if that process is gone): %w",
				ErrLocked, l.holder(), l.path, ctx.Err())
		case <-time.After(l.interval):
		}
	}
}

// holder returns the process id recorded in the lock file.
func (l *FileLock) holder() string {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "unknown"
	}
	if pid := strings.TrimSpace(string(data)); pid != "" {
		return pid
	}
	return "unknown"
}

// PostgresLock is a Locker backed by a PostgreSQL session advisory lock.
// It lets several machines that share a migrations directory through
// version control serialise against one database.
type PostgresLock struct {
	url string
	key string
}

// NewPostgresLock creates an advisory lock on the database at url. The key
// names the migrations directory being protected.
func NewPostgresLock(url, key string) *PostgresLock {
	return &PostgresLock{url: url, key: key}
}

// Lock connects and blocks in pg_advisory_lock until the lock is granted or
// ctx is done. Release unlocks and closes the connection.
func (l *PostgresLock) Lock(ctx context.Context) (func() error, error) {
	conn, err := pgx.Connect(ctx, l.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lock database: %w", err)
	}

	id := lockID(l.key)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
		_ = conn.Close(context.Background())
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w by advisory lock %d: %w", ErrLocked, id, ctx.Err())
		}
		return nil, fmt.Errorf("failed to acquire advisory lock %d: %w", id, err)
	}

	release := func() error {
		ctx := context.Background()
		_, unlockErr := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", id)
		closeErr := conn.Close(ctx)
		if unlockErr != nil {
			return fmt.Errorf("failed to release advisory lock %d: %w", id, unlockErr)
		}
		return closeErr
	}
	return release, nil
}

// lockID hashes key into the positive int64 space of advisory lock ids.
func lockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

// noLock is used when the Manager has no Locker configured.
type noLock struct{}

func (noLock) Lock(context.Context) (func() error, error) {
	return func() error { return nil }, nil
}
