// Package registry records the entry points discovered while a module's
// body executes. Discovery is windowed: a Collector is opened right before
// a module body runs, accepts marks only while that body (or one of its
// entry points) is on the stack, and is sealed once the module finishes.
package registry

import (
	"context"
	"fmt"

	"github.com/vk/confgrid/internal/schema"
)

// EntryFn is the invocation contract for an entry point: it receives the
// configuration object and mutates it through schema.Object accessors. The
// return value of the underlying script function is ignored; an error
// aborts the whole run.
type EntryFn func(ctx context.Context, obj *schema.Object) error

// EntryPoint is a named function bound to exactly one module, capturing its
// declaration order within that module.
type EntryPoint struct {
	Name  string
	Index int
	Fn    EntryFn
}

// Registry holds the ordered entry points per canonical module path. Its
// records, like a session's visited set, belong to a single run.
type Registry struct {
	entries map[string][]EntryPoint
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		entries: make(map[string][]EntryPoint),
	}
}

// Begin opens the marking window for one module execution. It panics if the
// module already has recorded entries: the loader guarantees a module body
// executes at most once per session, so a second window is a programmer error.
func (r *Registry) Begin(modulePath string) *Collector {
	if _, exists := r.entries[modulePath]; exists {
		panic(fmt.Sprintf("entry points for module '%s' already recorded", modulePath))
	}
	return &Collector{registry: r, modulePath: modulePath}
}

// EntriesFor returns the ordered entry points discovered while executing
// the module at the given canonical path. The result is nil for modules
// that never executed or registered nothing.
func (r *Registry) EntriesFor(modulePath string) []EntryPoint {
	return r.entries[modulePath]
}

// Collector accepts entry point marks for a single module execution window.
type Collector struct {
	registry   *Registry
	modulePath string
	marks      []EntryPoint
	sealed     bool
}

// Add marks fn as an entry point of the collector's module. Marks are
// additive only while the window is open; calling Add after Done panics.
func (c *Collector) Add(name string, fn EntryFn) {
	if c.sealed {
		panic(fmt.Sprintf("entry point %q marked after module '%s' finished executing", name, c.modulePath))
	}
	c.marks = append(c.marks, EntryPoint{Name: name, Index: len(c.marks), Fn: fn})
}

// Sealed reports whether the window has been closed by Done. Script
// engines check this so that a late mark surfaces as a script error rather
// than a panic.
func (c *Collector) Sealed() bool {
	return c.sealed
}

// Done seals the window, records the marks in the registry, and returns
// them in declaration order.
func (c *Collector) Done() []EntryPoint {
	c.sealed = true
	c.registry.entries[c.modulePath] = c.marks
	return c.marks
}
