package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"axiombot/pkg/logger"
)

type groupToggle struct {
	Enabled bool   `json:"enabled"`
	Action  string `json:"action,omitempty"`
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("create logger: %v", err)
	}
	return log
}

func newFileStore(t *testing.T, path string) *Store {
	t.Helper()
	log := newTestLogger(t)
	backend, err := NewFileBackend(log, &FileBackendConfig{FilePath: path})
	if err != nil {
		t.Fatalf("open file backend: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return NewStore(log, backend)
}

func TestMissingSectionDecodesEmpty(t *testing.T) {
	store := NewStore(newTestLogger(t), NewMemoryBackend())
	ctx := context.Background()

	afk, err := Get[map[string]groupToggle](ctx, store, SectionAFK)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if afk == nil || len(afk) != 0 {
		t.Fatalf("expected allocated empty map, got %#v", afk)
	}

	sudo, err := store.SudoNumbers(ctx)
	if err != nil {
		t.Fatalf("sudo: %v", err)
	}
	if sudo == nil || len(sudo) != 0 {
		t.Fatalf("expected allocated empty slice, got %#v", sudo)
	}
}

func TestWritingOneSectionLeavesOthersUntouched(t *testing.T) {
	store := newFileStore(t, filepath.Join(t.TempDir(), "store.json"))
	ctx := context.Background()
	group := "120363000000000000@g.us"

	err := Modify(ctx, store, SectionAntiLink, func(m *map[string]groupToggle) error {
		(*m)[group] = groupToggle{Enabled: true, Action: "warn"}
		return nil
	})
	if err != nil {
		t.Fatalf("write antilink: %v", err)
	}

	err = Modify(ctx, store, SectionWelcome, func(m *map[string]groupToggle) error {
		(*m)[group] = groupToggle{Enabled: true}
		return nil
	})
	if err != nil {
		t.Fatalf("write welcome: %v", err)
	}

	antilink, err := Get[map[string]groupToggle](ctx, store, SectionAntiLink)
	if err != nil {
		t.Fatalf("read antilink: %v", err)
	}
	if got := antilink[group]; !got.Enabled || got.Action != "warn" {
		t.Fatalf("antilink changed by welcome write: %#v", got)
	}
}

func TestFileBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	first := newFileStore(t, path)
	if _, err := first.AddSudo(ctx, "2348000000000"); err != nil {
		t.Fatalf("add sudo: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := newFileStore(t, path)
	sudo, err := second.SudoNumbers(ctx)
	if err != nil {
		t.Fatalf("sudo: %v", err)
	}
	if len(sudo) != 1 || sudo[0] != "2348000000000" {
		t.Fatalf("expected persisted sudo, got %v", sudo)
	}
}

func TestFileBackendCreatesEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "store.json")
	newFileStore(t, path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected document to be created: %v", err)
	}
	if string(data) != "{}\n" {
		t.Fatalf("expected empty document, got %q", data)
	}
}

func TestCorruptDocumentFailsOperationsNotConstruction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := newFileStore(t, path)
	_, err := store.Features(context.Background())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestSectionWithWrongShapeIsCorrupt(t *testing.T) {
	store := NewStore(newTestLogger(t), NewMemoryBackend())
	ctx := context.Background()

	if err := Put(ctx, store, SectionSudo, map[string]int{"a": 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.SudoNumbers(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for mismatched section, got %v", err)
	}
}

func TestSkipWriteLeavesSectionAbsent(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewStore(newTestLogger(t), backend)
	ctx := context.Background()

	removed, err := store.RemoveSudo(ctx, "123")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed {
		t.Fatalf("nothing should have been removed")
	}
	if _, ok, _ := backend.Load(ctx, SectionSudo); ok {
		t.Fatalf("skipped write must not create the section")
	}
}

func TestModifyIsAtomicPerSection(t *testing.T) {
	store := newFileStore(t, filepath.Join(t.TempDir(), "store.json"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Modify(ctx, store, SectionWarnings, func(m *map[string]int) error {
				(*m)["user"]++
				return nil
			})
			if err != nil {
				t.Errorf("modify: %v", err)
			}
		}()
	}
	wg.Wait()

	warnings, err := Get[map[string]int](ctx, store, SectionWarnings)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if warnings["user"] != 50 {
		t.Fatalf("expected 50 increments, got %d", warnings["user"])
	}
}

func TestAutoSaveFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	log := newTestLogger(t)
	backend, err := NewFileBackend(log, &FileBackendConfig{FilePath: path, AutoSave: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store := NewStore(log, backend)
	ctx := context.Background()

	if err := Put(ctx, store, SectionBotFeatures, BotFeatures{AutoType: true}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newFileStore(t, path)
	features, err := reopened.Features(ctx)
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	if !features.AutoType {
		t.Fatalf("expected autoType to survive close, got %#v", features)
	}
}

func TestCloseWhileAutoSaveTicks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	log := newTestLogger(t)
	backend, err := NewFileBackend(log, &FileBackendConfig{FilePath: path, AutoSave: true, SaveInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store := NewStore(log, backend)
	ctx := context.Background()

	for i := range 20 {
		if err := Put(ctx, store, SectionWarnings, map[string]int{"user": i}); err != nil {
			t.Fatalf("put: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if err := backend.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Let a tick that raced with Close arrive.
	time.Sleep(5 * time.Millisecond)
	if err := backend.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	warnings, err := Get[map[string]int](ctx, newFileStore(t, path), SectionWarnings)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if warnings["user"] != 19 {
		t.Fatalf("expected the last write to be saved, got %v", warnings)
	}
}

func TestNewBackendRejectsUnknownType(t *testing.T) {
	if _, err := NewBackend(newTestLogger(t), &Config{Backend: "etcd"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if _, err := NewBackend(newTestLogger(t), &Config{Backend: BackendRedis}); err == nil {
		t.Fatalf("expected error for redis without address")
	}
}

func TestRedisBackendRoundTrip(t *testing.T) {
	addr := os.Getenv("AXIOMBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AXIOMBOT_TEST_REDIS_ADDR not set")
	}
	log := newTestLogger(t)
	backend, err := NewRedisBackend(log, &RedisBackendConfig{Addr: addr, Prefix: "axiombot-test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer backend.Close()

	store := NewStore(log, backend)
	ctx := context.Background()
	if _, err := store.AddSudo(ctx, "999"); err != nil {
		t.Fatalf("add sudo: %v", err)
	}
	sudo, err := store.SudoNumbers(ctx)
	if err != nil {
		t.Fatalf("sudo: %v", err)
	}
	if len(sudo) != 1 || sudo[0] != "999" {
		t.Fatalf("unexpected sudo list %v", sudo)
	}
}
