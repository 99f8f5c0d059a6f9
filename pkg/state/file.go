package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"axiombot/pkg/fileutil"
	"axiombot/pkg/logger"
)

// FileBackend keeps the whole document in one JSON file whose top-level keys
// are the sections.
type FileBackend struct {
	log      *logger.Logger
	filePath string
	data     map[string]json.RawMessage
	loadErr  error
	mu       sync.Mutex

	autoSave     bool
	saveInterval time.Duration
	saveTicker   *time.Ticker
	stopSave     chan struct{}
	closeOnce    sync.Once
	dirty        bool
}

// FileBackendConfig configures the file backend.
type FileBackendConfig struct {
	FilePath     string
	AutoSave     bool          // batch writes on a ticker instead of per update
	SaveInterval time.Duration // default 5s
}

// NewFileBackend opens or creates the document at cfg.FilePath. A missing
// file is created as an empty document. A document that fails to parse does
// not fail construction; every call reports ErrCorrupt instead, so the rest
// of the bot keeps running.
func NewFileBackend(log *logger.Logger, cfg *FileBackendConfig) (*FileBackend, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if cfg.SaveInterval == 0 {
		cfg.SaveInterval = 5 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	b := &FileBackend{
		log:          log,
		filePath:     cfg.FilePath,
		data:         make(map[string]json.RawMessage),
		autoSave:     cfg.AutoSave,
		saveInterval: cfg.SaveInterval,
		stopSave:     make(chan struct{}),
	}

	if err := b.load(); err != nil {
		return nil, err
	}

	if b.autoSave {
		b.startAutoSave()
	}

	return b, nil
}

func (b *FileBackend) load() error {
	raw, err := os.ReadFile(b.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		if err := fileutil.WriteFileAtomic(b.filePath, []byte("{}\n"), 0644); err != nil {
			return fmt.Errorf("creating state file: %w", err)
		}
		b.log.Info("Created empty state document", zap.String("file", b.filePath))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading state file: %w", err)
	}

	if err := json.Unmarshal(raw, &b.data); err != nil {
		b.loadErr = fmt.Errorf("%w: %s: %v", ErrCorrupt, b.filePath, err)
		b.log.Error("State document is unreadable", zap.String("file", b.filePath), zap.Error(err))
		return nil
	}
	if b.data == nil {
		b.data = make(map[string]json.RawMessage)
	}

	b.log.Info("Loaded state", zap.String("file", b.filePath), zap.Int("sections", len(b.data)))
	return nil
}

func (b *FileBackend) Load(ctx context.Context, section string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loadErr != nil {
		return nil, false, b.loadErr
	}
	raw, ok := b.data[section]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

func (b *FileBackend) Update(ctx context.Context, section string, fn UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loadErr != nil {
		return b.loadErr
	}

	var current []byte
	if raw, ok := b.data[section]; ok {
		current = append([]byte(nil), raw...)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if !json.Valid(next) {
		return fmt.Errorf("section %s: refusing to store invalid json", section)
	}

	b.data[section] = json.RawMessage(next)
	b.dirty = true

	if b.autoSave {
		return nil
	}
	return b.saveLocked()
}

func (b *FileBackend) Sections(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loadErr != nil {
		return nil, b.loadErr
	}
	names := make([]string, 0, len(b.data))
	for k := range b.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// Save persists pending changes to disk.
func (b *FileBackend) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saveLocked()
}

func (b *FileBackend) saveLocked() error {
	if !b.dirty || b.loadErr != nil {
		return nil
	}

	if err := fileutil.WriteJSONAtomic(b.filePath, b.data, 0644); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	b.dirty = false

	b.log.Debug("Saved state", zap.String("file", b.filePath), zap.Int("sections", len(b.data)))
	return nil
}

func (b *FileBackend) startAutoSave() {
	ticker := time.NewTicker(b.saveInterval)
	b.saveTicker = ticker

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := b.Save(); err != nil {
					b.log.Error("Auto-save failed", zap.Error(err))
				}
			case <-b.stopSave:
				return
			}
		}
	}()

	b.log.Info("Started auto-save", zap.Duration("interval", b.saveInterval))
}

// Close stops auto-save and performs a final save.
func (b *FileBackend) Close() error {
	b.closeOnce.Do(func() {
		if b.autoSave && b.saveTicker != nil {
			b.saveTicker.Stop()
			close(b.stopSave)
		}
	})
	return b.Save()
}
