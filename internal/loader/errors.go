package loader

import "fmt"

// ModuleError reports a failure while resolving, reading, or executing a
// module's top-level body. For nested inclusion failures the Err chain
// carries one ModuleError per module on the inclusion path, so the trail is
// readable without re-tracing the graph.
type ModuleError struct {
	// Path is the module's canonical path, or the raw path when resolution
	// itself failed.
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying fault for errors.Is and errors.As.
func (e *ModuleError) Unwrap() error {
	return e.Err
}

// EntryPointError reports a failure raised from within an invoked entry
// point, attributed with both the module's canonical path and the entry
// point's name.
type EntryPointError struct {
	Path string
	Name string
	Err  error
}

// Error implements the error interface.
func (e *EntryPointError) Error() string {
	return fmt.Sprintf("module %s: entry point %q: %v", e.Path, e.Name, e.Err)
}

// Unwrap exposes the underlying fault for errors.Is and errors.As.
func (e *EntryPointError) Unwrap() error {
	return e.Err
}
