package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type payloadV3 struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
	Notes string   `json:"notes"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestVersionedStore_RoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewVersionedStore[payloadV3](backend, "test", 1, nil, testLogger())

	in := payloadV3{Name: "workspace", Items: []string{"a", "b"}}
	if !store.Save(in) {
		t.Fatal("Save returned false")
	}

	result := store.Load(payloadV3{})
	if !result.Success {
		t.Fatalf("Load failed: %v", result.Err)
	}
	if result.Migrated {
		t.Error("expected migrated=false for same-version load")
	}
	if result.Data.Name != "workspace" || len(result.Data.Items) != 2 {
		t.Errorf("round trip mismatch: %+v", result.Data)
	}
}

func TestVersionedStore_LoadEmpty(t *testing.T) {
	store := NewVersionedStore[payloadV3](NewMemoryBackend(), "test", 1, nil, testLogger())

	def := payloadV3{Name: "default"}
	result := store.Load(def)
	if !result.Success {
		t.Fatalf("empty load should succeed, got error: %v", result.Err)
	}
	if result.Data.Name != "default" {
		t.Errorf("expected default data, got %+v", result.Data)
	}
}

func TestVersionedStore_ChecksumDetectsCorruption(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewVersionedStore[payloadV3](backend, "test", 1, nil, testLogger())
	store.Save(payloadV3{Name: "clean"})

	// Corrupt the stored data field without updating the checksum.
	raw, _, _ := backend.Get("test")
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode stored envelope: %v", err)
	}
	env["data"] = json.RawMessage(`{"name":"tampered","items":null,"notes":""}`)
	tampered, _ := json.Marshal(env)
	backend.Put("test", tampered)

	def := payloadV3{Name: "default"}
	result := store.Load(def)
	if result.Success {
		t.Fatal("expected load failure on checksum mismatch")
	}
	if result.Err == nil {
		t.Fatal("expected integrity error")
	}
	if result.Data.Name != "default" {
		t.Errorf("expected default data on corruption, got %+v", result.Data)
	}
}

func TestVersionedStore_MigrationChain(t *testing.T) {
	// v1: {title}; v2: {name}; v3: {name, items, notes}
	migrations := []Migration{
		{
			FromVersion: 2,
			ToVersion:   3,
			Migrate: func(data json.RawMessage) (json.RawMessage, error) {
				var v2 struct {
					Name string `json:"name"`
				}
				if err := json.Unmarshal(data, &v2); err != nil {
					return nil, err
				}
				return json.Marshal(payloadV3{Name: v2.Name, Items: []string{}})
			},
		},
		{
			FromVersion: 1,
			ToVersion:   2,
			Migrate: func(data json.RawMessage) (json.RawMessage, error) {
				var v1 struct {
					Title string `json:"title"`
				}
				if err := json.Unmarshal(data, &v1); err != nil {
					return nil, err
				}
				return json.Marshal(map[string]string{"name": v1.Title})
			},
		},
	}

	backend := NewMemoryBackend()

	// Write a v1 envelope directly.
	v1data := []byte(`{"title":"legacy"}`)
	env, _ := json.Marshal(envelope{
		Version:  1,
		Data:     v1data,
		SavedAt:  time.Now().UTC(),
		Checksum: Checksum(v1data),
	})
	backend.Put("test", env)

	store := NewVersionedStore[payloadV3](backend, "test", 3, migrations, testLogger())
	result := store.Load(payloadV3{})
	if !result.Success {
		t.Fatalf("migrated load failed: %v", result.Err)
	}
	if !result.Migrated || result.FromVersion != 1 {
		t.Errorf("expected migrated=true from v1, got migrated=%v from v%d", result.Migrated, result.FromVersion)
	}
	if result.Data.Name != "legacy" {
		t.Errorf("migration chain lost data: %+v", result.Data)
	}

	// The migrated result was re-saved; loading again is a clean no-op.
	again := store.Load(payloadV3{})
	if !again.Success || again.Migrated {
		t.Errorf("second load should be clean, got migrated=%v err=%v", again.Migrated, again.Err)
	}
	if again.Data.Name != "legacy" {
		t.Errorf("re-load mismatch: %+v", again.Data)
	}
}

func TestVersionedStore_MigrationFailureReturnsDefault(t *testing.T) {
	backend := NewMemoryBackend()
	v1data := []byte(`{"title":"legacy"}`)
	env, _ := json.Marshal(envelope{Version: 1, Data: v1data, SavedAt: time.Now().UTC(), Checksum: Checksum(v1data)})
	backend.Put("test", env)

	migrations := []Migration{
		{
			FromVersion: 1,
			ToVersion:   2,
			Migrate: func(json.RawMessage) (json.RawMessage, error) {
				panic("bad migration")
			},
		},
	}
	store := NewVersionedStore[payloadV3](backend, "test", 2, migrations, testLogger())

	def := payloadV3{Name: "default"}
	result := store.Load(def)
	if result.Success {
		t.Fatal("expected failure when migration panics")
	}
	if result.Data.Name != "default" {
		t.Errorf("expected pre-migration default, got %+v", result.Data)
	}

	// The store must not be left partially migrated: the v1 record is intact.
	raw, ok, _ := backend.Get("test")
	if !ok {
		t.Fatal("stored record disappeared")
	}
	var stored envelope
	json.Unmarshal(raw, &stored)
	if stored.Version != 1 {
		t.Errorf("stored version changed to %d after failed migration", stored.Version)
	}
}

func TestVersionedStore_MissingMigrationPath(t *testing.T) {
	backend := NewMemoryBackend()
	v1data := []byte(`{"title":"legacy"}`)
	env, _ := json.Marshal(envelope{Version: 1, Data: v1data, SavedAt: time.Now().UTC(), Checksum: Checksum(v1data)})
	backend.Put("test", env)

	// Current version 3 but no migrations registered.
	store := NewVersionedStore[payloadV3](backend, "test", 3, nil, testLogger())
	result := store.Load(payloadV3{Name: "default"})
	if result.Success {
		t.Fatal("expected failure when no migration path exists")
	}
}

func TestVersionedStore_NewerVersionRejected(t *testing.T) {
	backend := NewMemoryBackend()
	data := []byte(`{"name":"future"}`)
	env, _ := json.Marshal(envelope{Version: 9, Data: data, SavedAt: time.Now().UTC(), Checksum: Checksum(data)})
	backend.Put("test", env)

	store := NewVersionedStore[payloadV3](backend, "test", 1, nil, testLogger())
	result := store.Load(payloadV3{})
	if result.Success {
		t.Fatal("expected rejection of newer stored version")
	}
}

func TestVersionedStore_UnavailableBackend(t *testing.T) {
	backend := NewMemoryBackend()
	backend.Unavailable = true
	store := NewVersionedStore[payloadV3](backend, "test", 1, nil, testLogger())

	if store.Save(payloadV3{Name: "x"}) {
		t.Error("Save should return false when storage is unavailable")
	}

	result := store.Load(payloadV3{Name: "default"})
	if !result.Success {
		t.Error("Load should succeed with default data when storage is unavailable")
	}
	if result.Data.Name != "default" {
		t.Errorf("expected default data, got %+v", result.Data)
	}
}

func TestVersionedStore_ExistsClearInfo(t *testing.T) {
	store := NewVersionedStore[payloadV3](NewMemoryBackend(), "test", 2, nil, testLogger())

	if store.Exists() {
		t.Error("Exists should be false before save")
	}
	store.Save(payloadV3{Name: "x"})
	if !store.Exists() {
		t.Error("Exists should be true after save")
	}

	info, err := store.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Version != 2 || info.Size == 0 {
		t.Errorf("unexpected info: %+v", info)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if store.Exists() {
		t.Error("Exists should be false after clear")
	}
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "loom.db")
	backend, err := NewSQLiteBackend(dbPath)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer backend.Close()

	if err := backend.Put("graph", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// Overwrite under the same key.
	if err := backend.Put("graph", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	value, ok, err := backend.Get("graph")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if string(value) != `{"v":2}` {
		t.Errorf("expected latest value, got %s", value)
	}

	if err := backend.Delete("graph"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, ok, _ = backend.Get("graph")
	if ok {
		t.Error("value still present after delete")
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if got := runs.Load(); got != 1 {
		t.Errorf("expected 1 coalesced run, got %d", got)
	}
}

func TestDebouncer_Flush(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Hour, func() { runs.Add(1) })

	d.Trigger()
	d.Flush()
	if got := runs.Load(); got != 1 {
		t.Errorf("Flush should run the pending save, got %d runs", got)
	}

	// Flush with nothing pending is a no-op.
	d.Flush()
	if got := runs.Load(); got != 1 {
		t.Errorf("idle Flush should not run, got %d runs", got)
	}
}
