package memlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/fyrsmithlabs/recall/internal/logging"
	"go.uber.org/zap"
)

// ErrStorage wraps every I/O failure creating, writing, reading or clearing
// a log.
var ErrStorage = errors.New("memory storage failure")

// Store is the per-user append-only record log.
type Store interface {
	// EnsureExists creates an empty log for key if none exists.
	EnsureExists(ctx context.Context, key string) error
	// Append adds rec as the newest record.
	Append(ctx context.Context, key string, rec Record) error
	// ReadAll returns every parseable record, oldest first. Corrupt lines
	// are skipped.
	ReadAll(ctx context.Context, key string) ([]Record, error)
	// Clear empties the log.
	Clear(ctx context.Context, key string) error
	// Latest returns the newest n records, oldest first.
	Latest(ctx context.Context, key string, n int) ([]Record, error)
}

// FileStore keeps one <key>.jsonl file per user under a directory.
//
// Writes to the same key are serialized. Each record is written with one
// write call on an O_APPEND descriptor, so readers never observe a partial
// line from a completed append and earlier records are never rewritten.
type FileStore struct {
	dir    string
	logger *logging.Logger
	locks  keyedMutex
}

// NewFileStore returns a store rooted at dir, creating dir if needed.
func NewFileStore(dir string, logger *logging.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: directory is required", ErrStorage)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrStorage, dir, err)
	}
	return &FileStore{dir: dir, logger: logger.Named("memlog")}, nil
}

// Dir returns the directory holding the logs.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the log file for key.
func (s *FileStore) Path(key string) (string, error) {
	norm, err := NormalizeUserKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, norm+".jsonl"), nil
}

// EnsureExists creates an empty log for key if none exists. An existing log
// is left untouched.
func (s *FileStore) EnsureExists(ctx context.Context, key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(path)
	defer unlock()
	return ensureFile(path)
}

func ensureFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrStorage, filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrStorage, filepath.Base(path), err)
	}
	return nil
}

// Append writes rec as the last line of key's log.
func (s *FileStore) Append(ctx context.Context, key string, rec Record) (err error) {
	defer func() { WritesTotal.WithLabelValues("append", result(err)).Inc() }()

	path, err := s.Path(key)
	if err != nil {
		return err
	}
	line, err := rec.encode()
	if err != nil {
		return fmt.Errorf("%w: encoding record: %w", ErrStorage, err)
	}

	unlock := s.locks.lock(path)
	defer unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrStorage, filepath.Base(path), err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: appending to %s: %w", ErrStorage, filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrStorage, filepath.Base(path), err)
	}

	s.logger.Debug(ctx, "record appended",
		zap.Int("tags", len(rec.Tags)),
		zap.Int("bytes", len(line)),
	)
	return nil
}

// ReadAll returns key's records oldest first, creating an empty log if
// none exists. Lines that fail to parse are logged and skipped.
func (s *FileStore) ReadAll(ctx context.Context, key string) ([]Record, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.EnsureExists(ctx, key); err != nil {
			return nil, err
		}
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrStorage, filepath.Base(path), err)
	}
	defer f.Close()

	records := []Record{}
	for res := range scanRecords(f) {
		if errors.Is(res.Err, errScan) {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrStorage, filepath.Base(path), res.Err)
		}
		if !res.OK() {
			CorruptLines.Inc()
			s.logger.Debug(ctx, "skipping corrupt record line", zap.Int("line", res.Line), zap.Error(res.Err))
			continue
		}
		records = append(records, res.Record)
	}
	RecordsRead.Add(float64(len(records)))
	return records, nil
}

var errScan = errors.New("scan failed")

// scanRecords yields one ParseResult per non-blank line of r. A read error
// is yielded once, wrapped with errScan, and ends the sequence.
func scanRecords(r io.Reader) iter.Seq[ParseResult] {
	return func(yield func(ParseResult) bool) {
		br := bufio.NewReader(r)
		for lineNo := 1; ; lineNo++ {
			line, err := br.ReadBytes('\n')
			if len(bytes.TrimSpace(line)) > 0 {
				if !yield(ParseLine(lineNo, line)) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(ParseResult{Line: lineNo, Err: fmt.Errorf("%w: %w", errScan, err)})
				return
			}
		}
	}
}

// Clear truncates key's log. Subsequent appends start a fresh log.
func (s *FileStore) Clear(ctx context.Context, key string) (err error) {
	defer func() { WritesTotal.WithLabelValues("clear", result(err)).Inc() }()

	path, err := s.Path(key)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(path)
	defer unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: truncating %s: %w", ErrStorage, filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrStorage, filepath.Base(path), err)
	}
	s.logger.Info(ctx, "memory cleared")
	return nil
}

// Latest returns the newest n records in chronological order, or all of
// them when fewer than n exist. n <= 0 yields an empty slice.
func (s *FileStore) Latest(ctx context.Context, key string, n int) ([]Record, error) {
	records, err := s.ReadAll(ctx, key)
	if err != nil {
		return nil, err
	}
	return Tail(records, n), nil
}

// Tail returns the last n records of records.
func Tail(records []Record, n int) []Record {
	if n <= 0 {
		return []Record{}
	}
	if n >= len(records) {
		return records
	}
	return records[len(records)-n:]
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// keyedMutex hands out one mutex per log path. Entries are kept for the
// life of the store; there is one per user that has written.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

var _ Store = (*FileStore)(nil)
