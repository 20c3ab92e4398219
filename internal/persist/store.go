package persist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// Store persists small per-user state entries to disk, one file per
// key. Writes are atomic (temp file, fsync, rename) so a crashed
// process never leaves a torn value behind.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore constructs a store rooted at the given state directory.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("persist: state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Store{dir: dir, log: logger.With().Str("state_dir", dir).Logger()}, nil
}

// Get reads one entry. A missing key returns ok=false with no error.
func (s *Store) Get(key string) (string, bool, error) {
	path := s.pathForKey(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug().Str("key", key).Msg("state load miss")
			return "", false, nil
		}
		s.log.Warn().Str("key", key).Err(err).Msg("state load failed")
		return "", false, err
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Put writes one entry atomically.
func (s *Store) Put(key, value string) error {
	path := s.pathForKey(key)
	tmp, err := os.CreateTemp(s.dir, "state-*")
	if err != nil {
		s.log.Warn().Str("key", key).Err(err).Msg("state save failed")
		return err
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.log.Warn().Str("key", key).Err(err).Msg("state save failed")
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		s.log.Warn().Str("key", key).Err(err).Msg("state save failed")
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.log.Warn().Str("key", key).Err(err).Msg("state save failed")
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		s.log.Warn().Str("key", key).Err(err).Msg("state save failed")
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		s.log.Warn().Str("key", key).Err(err).Msg("state save failed")
		return err
	}
	s.log.Trace().Str("key", key).Msg("state save ok")
	return nil
}

// DeletePrefix removes every entry whose key starts with prefix.
func (s *Store) DeletePrefix(prefix string) error {
	filePrefix := sanitize(prefix)
	if filePrefix == "" {
		return errors.New("persist: delete prefix is required")
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	var firstErr error
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".state") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && firstErr == nil {
			firstErr = err
			continue
		}
		removed++
	}
	s.log.Debug().Str("prefix", prefix).Int("removed", removed).Msg("state purge")
	return firstErr
}

func (s *Store) pathForKey(key string) string {
	name := sanitize(key)
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".state")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
