// Package registry assigns source ids starting at 258 (the two ids
// below that are reserved for the frontend's header/footer sources),
// tracks each
// registered source's descriptor, and resolves the full-name collision
// that occurs when a source is re-described mid-session with changed
// metadata (§3).
package registry

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/skywing/fdrlog/internal/container"
	"github.com/skywing/fdrlog/internal/datasource"
	"github.com/skywing/fdrlog/internal/ferr"
)

// Source is anything the scheduler can poll for a payload to record.
// Period()==0 marks a direct-writer source: one that pushes payloads on
// its own schedule (via WritePayload) rather than being ticked.
type Source interface {
	Plugin() string
	Name() string
	Version() uint32
	Kind() datasource.Kind
	Period() time.Duration
}

// Bound is a Source together with the id and descriptor it was
// registered under.
type Bound struct {
	ID     uint32
	Source Source
	Desc   container.SourceDesc
}

// Registry hands out ids and keeps the id -> descriptor mapping needed
// to emit SOURCE_DESC entries and frame subsequent payloads correctly.
type Registry struct {
	mu         sync.Mutex
	nextID     uint32
	bound      []*Bound
	byFullName map[string]*Bound
}

// New constructs an empty Registry; the first registration gets
// container.FirstSourceID+2. The two ids below that are reserved for
// the frontend's own header and footer sources (reader.HeaderSourceID,
// reader.FooterSourceID), which are written directly to the backend
// rather than through a Registry.
func New() *Registry {
	return &Registry{nextID: container.FirstSourceID + 2, byFullName: map[string]*Bound{}}
}

// Register assigns src a fresh id. If a source with the same
// (plugin, name) full name was already registered with a different
// version (a mid-session re-description per §3), the new registration
// gets a disambiguated name of the form "<name>#<version>" rather than
// reusing the old id, so both descriptions remain addressable in the
// file.
func (r *Registry) Register(src Source) *Bound {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	full := src.Plugin() + "-" + name
	if prev, exists := r.byFullName[full]; exists && prev.Desc.Version != src.Version() {
		name = fmt.Sprintf("%s#%d", src.Name(), src.Version())
	}

	id := r.nextID
	r.nextID++

	desc := container.SourceDesc{
		SourceID: id,
		Version:  src.Version(),
		Plugin:   src.Plugin(),
		Name:     name,
	}
	b := &Bound{ID: id, Source: src, Desc: desc}
	r.bound = append(r.bound, b)
	r.byFullName[desc.FullName()] = b
	return b
}

// All returns every bound source in registration order.
func (r *Registry) All() []*Bound {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Bound, len(r.bound))
	copy(out, r.bound)
	return out
}

// WriteDescriptor emits b's SOURCE_DESC entry directly to w, bypassing
// compression — the same way AES_DESC is written directly to the
// frontend's sink, so a reader never needs to inflate a frame just to
// learn what sources exist.
func WriteDescriptor(w io.Writer, b *Bound) error {
	return container.WriteEntry(w, container.IDSourceDesc, b.Desc.Encode())
}

// Pusher accepts pre-framed bytes into the compressing write pipeline;
// *internal/buffer.Buffer satisfies it.
type Pusher interface {
	PushBytes(data []byte) error
}

// WritePayload frames one payload under b's id and pushes it through
// the compressing buffer. Used both by the scheduler for periodic
// sources and directly by the recorder for direct-writer sources.
func WritePayload(p Pusher, b *Bound, payload []byte) error {
	if len(payload) == 0 {
		return ferr.Source("registry", "WritePayload", "source produced empty payload")
	}
	return p.PushBytes(container.AppendEntry(nil, b.ID, payload))
}
