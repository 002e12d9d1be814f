// Package storage owns all ledger state: the in-memory username to expense
// list map and the per-user files that back it. No other package mutates
// ledgers.
package storage

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/moussakabalan/multi-user-expense-tracker/internal/entity/expense"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/logger"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/customerr"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/protocol"
)

const (
	maxUsernameLen = 50
	fileExt        = ".json"
)

type config interface {
	DataDir() string
}

// FileStorage keeps every user's ledger in memory and mirrors each ledger
// to one JSON-lines file per user. Appends to the same ledger serialize on
// a per-ledger mutex; different users' writes proceed in parallel.
type FileStorage struct {
	dir string

	mu      sync.RWMutex
	ledgers map[string]*ledger
}

// ledger holds one user's records in append order. The mutex guards both
// the slice and the file rewrite, so the file always reflects a prefix of
// the append history.
type ledger struct {
	mu      sync.Mutex
	records []expense.Record
}

func NewFileStorage(cfg config) (*FileStorage, error) {
	dir := cfg.DataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data directory")
	}
	return &FileStorage{
		dir:     dir,
		ledgers: make(map[string]*ledger),
	}, nil
}

// SanitizeUsername normalizes a raw username into the form used as ledger
// key and filename: surrounding whitespace stripped, characters outside
// letters, digits, underscore and hyphen dropped. Returns a
// *customerr.ValidationError if nothing usable remains or the result is
// too long.
func SanitizeUsername(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		return "", &customerr.ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if len(name) > maxUsernameLen {
		return "", &customerr.ValidationError{Field: "username", Reason: "must be at most 50 characters"}
	}
	return name, nil
}

// AddExpense validates the username and record, appends the record to the
// user's ledger (creating it on first write) and synchronously rewrites the
// user's file. A failed file write surfaces as *customerr.PersistenceError
// but the in-memory append stands; the next successful write for the same
// user reconciles the file.
func (s *FileStorage) AddExpense(username string, rec expense.Record) error {
	name, err := SanitizeUsername(username)
	if err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	led := s.ledgerFor(name)
	led.mu.Lock()
	defer led.mu.Unlock()

	led.records = append(led.records, rec)
	if err := s.persist(name, led.records); err != nil {
		logger.Error("persist after append failed, memory and disk diverge",
			zap.String("user", name), zap.Error(err))
		return &customerr.PersistenceError{Username: name, Err: err}
	}
	return nil
}

// GetExpenses returns a copy of the user's ledger in append order. A
// username with no ledger yields an empty slice. The copy never observes
// concurrent appends mid-iteration.
func (s *FileStorage) GetExpenses(username string) ([]expense.Record, error) {
	name, err := SanitizeUsername(username)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	led, ok := s.ledgers[name]
	s.mu.RUnlock()
	if !ok {
		return []expense.Record{}, nil
	}

	led.mu.Lock()
	defer led.mu.Unlock()
	out := make([]expense.Record, len(led.records))
	copy(out, led.records)
	return out, nil
}

// LoadAll populates the ledger map from the data directory. It runs once at
// startup before the listener accepts connections, so it takes no locks on
// the hot path. Undecodable lines are logged and skipped, never fatal; a
// file of only bad lines still registers an empty ledger.
func (s *FileStorage) LoadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.Wrap(err, "read data directory")
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		username := strings.TrimSuffix(entry.Name(), fileExt)
		records := s.loadUserFile(username, filepath.Join(s.dir, entry.Name()))

		s.mu.Lock()
		s.ledgers[username] = &ledger{records: records}
		s.mu.Unlock()

		logger.Info("loaded user ledger",
			zap.String("user", username), zap.Int("expenses", len(records)))
	}
	return nil
}

func (s *FileStorage) loadUserFile(username, path string) []expense.Record {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("cannot open user file", zap.String("path", path), zap.Error(err))
		return []expense.Record{}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Error("closing user file", zap.String("path", path), zap.Error(closeErr))
		}
	}()

	records := make([]expense.Record, 0)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := protocol.DecodeRecord(line)
		if err != nil {
			logger.Warn("skipping undecodable record line",
				zap.String("user", username), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		logger.Error("reading user file", zap.String("path", path), zap.Error(err))
	}
	return records
}

// persist rewrites the user's file with the full ledger content. Caller
// holds the ledger mutex.
func (s *FileStorage) persist(username string, records []expense.Record) error {
	path := filepath.Join(s.dir, username+fileExt)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create user file")
	}

	w := bufio.NewWriter(f)
	for _, rec := range records {
		line, err := protocol.EncodeRecord(rec)
		if err != nil {
			_ = f.Close()
			return err
		}
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = f.Close()
			return errors.Wrap(err, "write user file")
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "flush user file")
	}
	return errors.Wrap(f.Close(), "close user file")
}

func (s *FileStorage) ledgerFor(name string) *ledger {
	s.mu.RLock()
	led, ok := s.ledgers[name]
	s.mu.RUnlock()
	if ok {
		return led
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if led, ok = s.ledgers[name]; ok {
		return led
	}
	led = &ledger{}
	s.ledgers[name] = led
	return led
}

// UserCount reports how many ledgers exist, for status logging.
func (s *FileStorage) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledgers)
}

// ExpenseCount reports the total number of records across all ledgers.
func (s *FileStorage) ExpenseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, led := range s.ledgers {
		led.mu.Lock()
		total += len(led.records)
		led.mu.Unlock()
	}
	return total
}
