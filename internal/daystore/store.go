// Package daystore persists per-day conversation collections and serializes
// read-modify-write cycles on each day.
package daystore

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

const defaultLockTimeout = 5 * time.Second

// Options configures a Store.
type Options struct {
	// LockTimeout bounds how long a writer waits for the day lock.
	LockTimeout time.Duration
	Logger      *logging.Logger
	// OnLockWait, if set, receives how long each lock acquisition took.
	OnLockWait func(time.Duration)
}

// Store reads and writes day collections through a Backend. Every write
// happens under the day's lock and replaces the whole collection.
type Store struct {
	backend Backend
	locker  Locker
	opts    Options
}

// New creates a Store. A nil locker uses a LocalLocker.
func New(backend Backend, locker Locker, opts Options) *Store {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Store{backend: backend, locker: locker, opts: opts}
}

// Dates lists the days that have a collection, newest first.
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	return s.backend.List(ctx)
}

// Load reads one day's collection.
func (s *Store) Load(ctx context.Context, date string) ([]transcript.Conversation, error) {
	if err := ValidateDate(date); err != nil {
		return nil, err
	}
	return s.load(ctx, date)
}

func (s *Store) load(ctx context.Context, date string) ([]transcript.Conversation, error) {
	data, err := s.backend.Read(ctx, date)
	if err != nil {
		return nil, err
	}
	convs, err := transcript.DecodeDay(data)
	if err != nil {
		return nil, fmt.Errorf("daystore: decode %s: %w", date, err)
	}
	return convs, nil
}

// Save replaces one day's collection.
func (s *Store) Save(ctx context.Context, date string, convs []transcript.Conversation) error {
	if err := ValidateDate(date); err != nil {
		return err
	}
	return s.withLock(ctx, date, func() error {
		return s.save(ctx, date, convs)
	})
}

func (s *Store) save(ctx context.Context, date string, convs []transcript.Conversation) error {
	data, err := transcript.EncodeDay(convs)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, date, data)
}

// Update locates conversation id in the day's collection, applies fn to it
// and writes the collection back. Nothing is written when the day or the
// conversation does not exist or when fn fails. Ids are compared as text.
func (s *Store) Update(ctx context.Context, date, id string, fn func(*transcript.Conversation) error) error {
	if err := ValidateDate(date); err != nil {
		return err
	}
	return s.withLock(ctx, date, func() error {
		convs, err := s.load(ctx, date)
		if err != nil {
			return err
		}
		idx := -1
		for i := range convs {
			if string(convs[i].ID) == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s on %s", ErrConversationNotFound, id, date)
		}
		if err := fn(&convs[idx]); err != nil {
			return err
		}
		return s.save(ctx, date, convs)
	})
}

func (s *Store) withLock(ctx context.Context, date string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	start := time.Now()
	unlock, err := s.locker.Lock(lockCtx, date)
	if s.opts.OnLockWait != nil {
		s.opts.OnLockWait(time.Since(start))
	}
	if err != nil {
		s.opts.Logger.Warn("day lock not acquired", "date", date, "error", err)
		return err
	}
	defer unlock()
	return fn()
}
