package loader

import "github.com/vk/confgrid/internal/registry"

// Status is the load state of one module within a session. Transitions are
// strictly forward: unseen, loading, loaded. A module that fails
// mid-execution stays at StatusLoading; the session is discarded on
// failure, so the intermediate state never leaks into another run.
type Status int

const (
	StatusUnseen Status = iota
	StatusLoading
	StatusLoaded
)

// String implements fmt.Stringer for log output.
func (s Status) String() string {
	switch s {
	case StatusUnseen:
		return "unseen"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// ModuleRecord is the per-session bookkeeping for one module file,
// identified by its canonical path.
type ModuleRecord struct {
	// Path is the canonical absolute path of the module file.
	Path string
	// Digest is the hex BLAKE3 digest of the file contents at load time.
	Digest string
	// Status is the module's position in the unseen/loading/loaded walk.
	Status Status
	// EntryPoints is the number of entry points the body registered. It is
	// populated once the body has finished executing.
	EntryPoints int
}

// Session is the transient state of one composition run: the set of
// canonical module paths already visited, in load order, and the entry
// points recorded for them. It is created fresh per run, owned by the
// single in-flight run, and never shared.
type Session struct {
	records  map[string]*ModuleRecord
	order    []string
	digests  map[string]string
	registry *registry.Registry
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		records:  make(map[string]*ModuleRecord),
		digests:  make(map[string]string),
		registry: registry.New(),
	}
}

// Registry returns the session's entry point records.
func (s *Session) Registry() *registry.Registry {
	return s.registry
}

// Visited reports whether the canonical path has already entered the
// session, regardless of whether its load completed.
func (s *Session) Visited(canonicalPath string) bool {
	_, ok := s.records[canonicalPath]
	return ok
}

// Record returns the bookkeeping entry for a canonical path.
func (s *Session) Record(canonicalPath string) (*ModuleRecord, bool) {
	rec, ok := s.records[canonicalPath]
	return rec, ok
}

// Modules returns the canonical paths of all visited modules in the order
// they were first encountered during the depth-first walk.
func (s *Session) Modules() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// begin marks a canonical path as visited and returns its record. The mark
// happens before the module body executes, so a module that includes
// itself, directly or transitively, sees itself as already visited.
func (s *Session) begin(canonicalPath, digest string) *ModuleRecord {
	rec := &ModuleRecord{Path: canonicalPath, Digest: digest, Status: StatusLoading}
	s.records[canonicalPath] = rec
	s.order = append(s.order, canonicalPath)
	if _, ok := s.digests[digest]; !ok {
		s.digests[digest] = canonicalPath
	}
	return rec
}

// seenDigest returns the first path loaded with the given content digest.
func (s *Session) seenDigest(digest string) (string, bool) {
	path, ok := s.digests[digest]
	return path, ok
}
