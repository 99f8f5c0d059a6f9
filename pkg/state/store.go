package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"axiombot/pkg/logger"
)

// Section names of the bot document.
const (
	SectionSudo        = "sudo"
	SectionBotFeatures = "botfeatures"
	SectionAntiDelete  = "antidelete"
	SectionAlive       = "aliveMessage"
	SectionAntiLink    = "antilink"
	SectionAntiWord    = "antiword"
	SectionWarnings    = "warnings"
	SectionWelcome     = "welcome"
	SectionGoodbye     = "goodbye"
	SectionAFK         = "afk"
	SectionAFKMessage  = "afkmessage"
	SectionSticky      = "sticky"
	SectionAutoReact   = "autoreact"
	SectionWordGame    = "wordgame"
)

// ErrSkipWrite may be returned from a Modify callback to leave the section
// untouched. Modify then returns nil.
var ErrSkipWrite = errors.New("state: skip write")

// Store is the typed view over a Backend. Every section is an independent
// JSON value; reads of a missing section yield an empty value.
type Store struct {
	log     *logger.Logger
	backend Backend
}

// NewStore wraps backend.
func NewStore(log *logger.Logger, backend Backend) *Store {
	return &Store{log: log, backend: backend}
}

// Backend exposes the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Sections lists stored section names.
func (s *Store) Sections(ctx context.Context) ([]string, error) {
	return s.backend.Sections(ctx)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Get decodes a section into T. Missing sections decode to an empty value
// (maps are allocated, so callers can index them directly).
func Get[T any](ctx context.Context, s *Store, section string) (T, error) {
	var v T
	raw, ok, err := s.backend.Load(ctx, section)
	if err != nil {
		return v, fmt.Errorf("loading %s: %w", section, err)
	}
	if err := decode(section, raw, ok, &v); err != nil {
		return v, err
	}
	return v, nil
}

// Put replaces a section with v.
func Put[T any](ctx context.Context, s *Store, section string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", section, err)
	}
	return s.backend.Update(ctx, section, func([]byte) ([]byte, error) {
		return data, nil
	})
}

// Modify reads a section, lets fn change it in place and writes it back as
// one backend update. fn may return ErrSkipWrite to abort without error.
func Modify[T any](ctx context.Context, s *Store, section string, fn func(v *T) error) error {
	err := s.backend.Update(ctx, section, func(current []byte) ([]byte, error) {
		var v T
		if err := decode(section, current, current != nil, &v); err != nil {
			return nil, err
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", section, err)
		}
		return data, nil
	})
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	return err
}

func decode[T any](section string, raw []byte, ok bool, v *T) error {
	if ok && len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("%w: section %s: %v", ErrCorrupt, section, err)
		}
	}
	fillEmpty(v)
	return nil
}

// fillEmpty allocates nil maps and slices so zero values behave like the
// empty JSON structures they stand for.
func fillEmpty(ptr any) {
	rv := reflect.ValueOf(ptr).Elem()
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			rv.Set(reflect.MakeMap(rv.Type()))
		}
	case reflect.Slice:
		if rv.IsNil() {
			rv.Set(reflect.MakeSlice(rv.Type(), 0, 0))
		}
	}
}
