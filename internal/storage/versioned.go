package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// envelope is the persisted record shape. Data stays raw so migrations
// can rewrite older shapes before they are trusted as T.
type envelope struct {
	Version  int             `json:"version"`
	Data     json.RawMessage `json:"data"`
	SavedAt  time.Time       `json:"saved_at"`
	Checksum string          `json:"checksum,omitempty"`
}

// Migration rewrites stored data from one schema version to the next.
// Migrations run in ascending FromVersion order, each chained from the
// previous output.
type Migration struct {
	FromVersion int
	ToVersion   int
	Migrate     func(data json.RawMessage) (json.RawMessage, error)
}

// LoadResult reports the outcome of a load. Success is true for clean
// loads and for "nothing persisted yet" (absence is not an error); it is
// false for corruption, migration failure, or unreadable envelopes, in
// which case Data holds the caller-supplied default.
type LoadResult[T any] struct {
	Success     bool
	Data        T
	Migrated    bool
	FromVersion int
	Err         error
}

// StoreInfo describes the persisted record without decoding its data.
type StoreInfo struct {
	Key     string    `json:"key"`
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Size    int       `json:"size"`
}

// VersionedStore persists one logical collection as a versioned,
// checksummed JSON envelope under a fixed key.
type VersionedStore[T any] struct {
	backend    Backend
	key        string
	version    int
	migrations []Migration
	logger     *slog.Logger
}

// NewVersionedStore creates a store for the given key at currentVersion.
// Migrations are sorted once; gaps between a stored version and
// currentVersion that no migration covers surface as load failures.
func NewVersionedStore[T any](backend Backend, key string, currentVersion int, migrations []Migration, logger *slog.Logger) *VersionedStore[T] {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FromVersion < sorted[j].FromVersion
	})
	return &VersionedStore[T]{
		backend:    backend,
		key:        key,
		version:    currentVersion,
		migrations: sorted,
		logger:     logger,
	}
}

// Checksum computes a cheap 32-bit polynomial rolling hash over the
// serialized data. Not cryptographic; it only has to catch accidental
// corruption of the stored bytes.
func Checksum(data []byte) string {
	var h uint32
	for _, b := range data {
		h = h*31 + uint32(b)
	}
	return fmt.Sprintf("%08x", h)
}

// Load reads, verifies, and if necessary migrates the persisted record.
// It never returns an error to the caller directly; failures are reported
// through the result with defaultData substituted.
func (s *VersionedStore[T]) Load(defaultData T) LoadResult[T] {
	raw, ok, err := s.backend.Get(s.key)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			// Absence of storage is a no-op, not an error condition.
			s.logger.Warn("storage unavailable, using default data", "key", s.key)
			return LoadResult[T]{Success: true, Data: defaultData}
		}
		s.logger.Error("storage read failed", "key", s.key, "error", err)
		return LoadResult[T]{Success: false, Data: defaultData, Err: fmt.Errorf("read %s: %w", s.key, err)}
	}
	if !ok {
		return LoadResult[T]{Success: true, Data: defaultData}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Error("stored envelope unreadable", "key", s.key, "error", err)
		return LoadResult[T]{Success: false, Data: defaultData, Err: fmt.Errorf("decode envelope %s: %w", s.key, err)}
	}
	if env.Version <= 0 || len(env.Data) == 0 {
		s.logger.Error("stored envelope has unknown shape", "key", s.key, "version", env.Version)
		return LoadResult[T]{Success: false, Data: defaultData, Err: fmt.Errorf("envelope %s: unknown shape", s.key)}
	}

	if env.Checksum != "" {
		if got := Checksum(env.Data); got != env.Checksum {
			s.logger.Error("checksum mismatch, treating stored data as corrupt",
				"key", s.key, "stored", env.Checksum, "computed", got)
			return LoadResult[T]{Success: false, Data: defaultData,
				Err: fmt.Errorf("envelope %s: integrity check failed", s.key)}
		}
	}

	if env.Version > s.version {
		s.logger.Error("stored version newer than supported",
			"key", s.key, "stored", env.Version, "supported", s.version)
		return LoadResult[T]{Success: false, Data: defaultData,
			Err: fmt.Errorf("envelope %s: version %d newer than supported %d", s.key, env.Version, s.version)}
	}

	data := env.Data
	fromVersion := env.Version
	migrated := false
	if env.Version < s.version {
		data, err = s.applyMigrations(env.Version, data)
		if err != nil {
			s.logger.Error("migration failed, using default data",
				"key", s.key, "from_version", env.Version, "error", err)
			return LoadResult[T]{Success: false, Data: defaultData,
				Err: fmt.Errorf("migrate %s: %w", s.key, err)}
		}
		migrated = true
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Error("stored data unreadable", "key", s.key, "error", err)
		return LoadResult[T]{Success: false, Data: defaultData, Err: fmt.Errorf("decode data %s: %w", s.key, err)}
	}

	if migrated {
		// Re-save immediately so migration cost is paid once.
		if !s.Save(out) {
			s.logger.Warn("failed to persist migrated data", "key", s.key)
		}
		s.logger.Info("storage migrated", "key", s.key, "from_version", fromVersion, "to_version", s.version)
		return LoadResult[T]{Success: true, Data: out, Migrated: true, FromVersion: fromVersion}
	}

	return LoadResult[T]{Success: true, Data: out}
}

// applyMigrations chains migrations from the stored version up to the
// current one. A panic in a migration function is recovered and surfaces
// as an error so a bad migration never takes the process down.
func (s *VersionedStore[T]) applyMigrations(fromVersion int, data json.RawMessage) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("migration panic: %v", r)
		}
	}()

	version := fromVersion
	out = data
	for _, m := range s.migrations {
		if m.FromVersion < version {
			continue
		}
		if m.FromVersion > version {
			break
		}
		out, err = m.Migrate(out)
		if err != nil {
			return nil, fmt.Errorf("v%d to v%d: %w", m.FromVersion, m.ToVersion, err)
		}
		version = m.ToVersion
	}
	if version != s.version {
		return nil, fmt.Errorf("no migration path from v%d to v%d (stuck at v%d)", fromVersion, s.version, version)
	}
	return out, nil
}

// Save serializes and persists the data. Returns false (and logs) on any
// failure; durability degradation never interrupts the session.
func (s *VersionedStore[T]) Save(data T) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to encode data for save", "key", s.key, "error", err)
		return false
	}

	env := envelope{
		Version:  s.version,
		Data:     payload,
		SavedAt:  time.Now().UTC(),
		Checksum: Checksum(payload),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("failed to encode envelope", "key", s.key, "error", err)
		return false
	}

	if err := s.backend.Put(s.key, raw); err != nil {
		s.logger.Warn("storage write failed", "key", s.key, "error", err)
		return false
	}
	return true
}

// Clear removes the persisted record.
func (s *VersionedStore[T]) Clear() error {
	return s.backend.Delete(s.key)
}

// Exists reports whether a record is persisted under the key.
func (s *VersionedStore[T]) Exists() bool {
	_, ok, err := s.backend.Get(s.key)
	return err == nil && ok
}

// Info returns envelope metadata without decoding the stored data.
func (s *VersionedStore[T]) Info() (*StoreInfo, error) {
	raw, ok, err := s.backend.Get(s.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no record under key %q", s.key)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &StoreInfo{
		Key:     s.key,
		Version: env.Version,
		SavedAt: env.SavedAt,
		Size:    len(raw),
	}, nil
}
