package jsonstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/portaria/internal/models"
	"example.com/portaria/internal/runtimestatus"
)

// ErrCorrupted is returned by ReadRaw when a file never parsed as JSON.
var ErrCorrupted = errors.New("store file is not valid JSON")

const (
	DefaultLoadRetries  = 5
	DefaultRetryBackoff = 50 * time.Millisecond

	quarantineLayout = "20060102_150405"
)

// Options configures a Store.
type Options struct {
	LoadRetries  int
	RetryBackoff time.Duration
	Reporter     runtimestatus.Sink
	Now          func() time.Time
}

// Store reads and writes the JSON documents of the data directory.
// Writes go through a temp file in the same directory followed by an
// atomic replace, so readers see either the old or the new content.
type Store struct {
	retries  int
	backoff  time.Duration
	reporter runtimestatus.Sink
	now      func() time.Time
}

// New creates a store
func New(opts Options) *Store {
	s := &Store{
		retries:  opts.LoadRetries,
		backoff:  opts.RetryBackoff,
		reporter: opts.Reporter,
		now:      opts.Now,
	}
	if s.retries <= 0 {
		s.retries = DefaultLoadRetries
	}
	if s.backoff <= 0 {
		s.backoff = DefaultRetryBackoff
	}
	if s.reporter == nil {
		s.reporter = runtimestatus.Discard
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ReadRaw returns the bytes of path once they parse as JSON. A missing file
// yields an error satisfying os.IsNotExist; content that stays invalid
// through every retry yields ErrCorrupted along with the last bytes read.
// When the last attempt could not read the file at all, that read error is
// returned instead, so callers never mistake an I/O failure for an empty store.
func (s *Store) ReadRaw(path string) ([]byte, error) {
	var (
		data    []byte
		readErr error
	)
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.backoff)
		}

		data, readErr = os.ReadFile(path)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				return nil, readErr
			}
			log.Debug().Err(readErr).Str("path", path).Int("attempt", attempt).Msg("Store read failed, retrying")
			continue
		}
		if json.Valid(data) {
			return data, nil
		}
		log.Debug().Str("path", path).Int("attempt", attempt).Msg("Store content not valid JSON, retrying")
	}
	if readErr != nil {
		return nil, errors.Wrapf(readErr, "failed to read %s", path)
	}
	return data, errors.Wrapf(ErrCorrupted, "%s", path)
}

// Load decodes path into v. It reports false when the file is missing or
// corrupted; a corrupted file is copied aside before false is returned so
// that the next save starts from an empty document.
func (s *Store) Load(path string, v interface{}) (bool, error) {
	data, err := s.ReadRaw(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		if errors.Is(err, ErrCorrupted) {
			s.quarantine(path, data, err)
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		s.quarantine(path, data, err)
		return false, nil
	}
	return true, nil
}

// quarantine keeps a forensic copy of unreadable content as {path}.corrupted.{ts}.bak.
func (s *Store) quarantine(path string, data []byte, cause error) {
	if len(bytes.TrimSpace(data)) == 0 {
		log.Warn().Str("path", path).Msg("Store file is empty, treating as missing")
		return
	}

	backup := fmt.Sprintf("%s.corrupted.%s.bak", path, s.now().Format(quarantineLayout))
	if err := os.WriteFile(backup, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to write corrupted backup")
		backup = ""
	}

	log.Error().Err(cause).Str("path", path).Str("backup", backup).Msg("Corrupted store file quarantined")
	s.reporter.Report("store", models.RuntimeError, "load_corrupted", map[string]interface{}{
		"path":   path,
		"backup": backup,
		"error":  cause.Error(),
	})
}

// Save writes v to path as 2-space indented JSON.
func (s *Store) Save(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}

	err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes()))
	if err == nil {
		return nil
	}

	log.Error().Err(err).Str("path", path).Msg("Atomic replace failed, writing in place")
	s.reporter.Report("store", models.RuntimeError, "save_replace_failed", map[string]interface{}{
		"path":  path,
		"error": err.Error(),
	})
	if werr := os.WriteFile(path, buf.Bytes(), 0o644); werr != nil {
		return errors.Wrapf(werr, "failed to write %s", path)
	}
	return nil
}
