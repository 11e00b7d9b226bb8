package daystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Backend stores raw day documents. Implementations do not lock; Store does.
type Backend interface {
	Read(ctx context.Context, date string) ([]byte, error)
	Write(ctx context.Context, date string, data []byte) error
	List(ctx context.Context) ([]string, error)
}

// FSBackend keeps one "<date>.json" file per day in a directory.
type FSBackend struct {
	dir string
}

func NewFSBackend(dir string) *FSBackend {
	return &FSBackend{dir: dir}
}

func (b *FSBackend) path(date string) string {
	return filepath.Join(b.dir, date+".json")
}

func (b *FSBackend) Read(_ context.Context, date string) ([]byte, error) {
	data, err := os.ReadFile(b.path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDayNotFound, date)
	}
	if err != nil {
		return nil, fmt.Errorf("daystore: read %s: %w", date, err)
	}
	return data, nil
}

// Write replaces the day file atomically: the data is written to a temp file
// in the same directory, synced, and renamed over the target. A crash leaves
// either the old or the new file, never a truncated one.
func (b *FSBackend) Write(_ context.Context, date string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("daystore: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(b.dir, "."+date+".*.tmp")
	if err != nil {
		return fmt.Errorf("daystore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("daystore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("daystore: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("daystore: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("daystore: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path(date)); err != nil {
		cleanup()
		return fmt.Errorf("daystore: replace %s: %w", date, err)
	}
	return nil
}

func (b *FSBackend) List(_ context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(b.dir, "????-??-??.json"))
	if err != nil {
		return nil, fmt.Errorf("daystore: list: %w", err)
	}
	dates := make([]string, 0, len(matches))
	for _, m := range matches {
		if date, ok := DateFromFileName(filepath.Base(m)); ok {
			dates = append(dates, date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}
