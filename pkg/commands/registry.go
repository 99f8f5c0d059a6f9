package commands

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// Registry is the ordered list of definitions. Every definition is kept,
// including ones sharing a trigger; dispatch runs them all.
type Registry struct {
	mu       sync.RWMutex
	defs     []*Definition
	compiled map[patternKey]*regexp.Regexp
}

type patternKey struct {
	def    *Definition
	prefix string
}

// Category groups visible commands for help output.
type Category struct {
	Name     string
	Commands []*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{compiled: make(map[patternKey]*regexp.Regexp)}
}

// Register appends def. The trigger of a command must compile.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return fmt.Errorf("definition cannot be nil")
	}
	if def.Handler == nil {
		return fmt.Errorf("definition %q has no handler", def.Trigger)
	}
	if def.Kind() == OnCommand {
		if def.Trigger == "" {
			return fmt.Errorf("command definition needs a trigger")
		}
		if _, err := regexp.Compile(def.Trigger); err != nil {
			return fmt.Errorf("invalid trigger %q: %w", def.Trigger, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = append(r.defs, def)
	return nil
}

// MustRegister registers every def and panics on the first failure. Used
// for static plugin tables.
func (r *Registry) MustRegister(defs ...*Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// List returns the definitions in registration order.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.defs)
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Categories returns visible commands grouped by category, both sorted by
// name. Commands without a category are listed under "misc".
func (r *Registry) Categories() []Category {
	byName := make(map[string][]*Definition)
	for _, def := range r.List() {
		if !def.VisibleInHelp() {
			continue
		}
		cat := strings.ToLower(def.Category)
		if cat == "" {
			cat = "misc"
		}
		byName[cat] = append(byName[cat], def)
	}

	cats := make([]Category, 0, len(byName))
	for name, defs := range byName {
		slices.SortStableFunc(defs, func(a, b *Definition) int {
			return strings.Compare(a.Name(), b.Name())
		})
		cats = append(cats, Category{Name: name, Commands: defs})
	}
	slices.SortFunc(cats, func(a, b Category) int { return strings.Compare(a.Name, b.Name) })
	return cats
}

// Pattern returns the compiled, case-insensitive regular expression for
// def under prefix, anchored at the start of the body.
func (r *Registry) Pattern(def *Definition, prefix string) (*regexp.Regexp, error) {
	key := patternKey{def: def, prefix: prefix}

	r.mu.RLock()
	re, ok := r.compiled[key]
	r.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(`(?is)^` + regexp.QuoteMeta(prefix) + `(?:` + def.Trigger + `)`)
	if err != nil {
		return nil, fmt.Errorf("compiling trigger %q: %w", def.Trigger, err)
	}

	r.mu.Lock()
	r.compiled[key] = re
	r.mu.Unlock()
	return re, nil
}

// Match checks body against def's trigger under prefix. The returned
// argument is everything after the prefix and the trigger's leading word,
// trimmed, whatever groups the trigger captures. Triggers without a leading
// word yield the text after the whole match.
func (r *Registry) Match(def *Definition, prefix, body string) (string, bool) {
	if def.Kind() != OnCommand || prefix == "" {
		return "", false
	}
	re, err := r.Pattern(def, prefix)
	if err != nil {
		return "", false
	}
	loc := re.FindStringSubmatchIndex(body)
	if loc == nil {
		return "", false
	}
	name := def.Name()
	if name == "" {
		return strings.TrimSpace(body[loc[1]:]), true
	}
	end := len(prefix) + len(name)
	// ".afklist" must not fire "afk ?(.*)".
	if end < len(body) && isWordByte(body[end]) {
		return "", false
	}
	return strings.TrimSpace(body[end:]), true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
