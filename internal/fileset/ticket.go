package fileset

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Requestor identifies the owner of tickets: a reader, a writer or a build.
type Requestor struct {
	ID   uuid.UUID
	Name string
}

// NewRequestor returns a requestor with a fresh identity.
func NewRequestor(name string) Requestor {
	return Requestor{ID: uuid.New(), Name: name}
}

func (r Requestor) String() string {
	if r.Name == "" {
		return r.ID.String()
	}
	return fmt.Sprintf("%s(%s)", r.Name, r.ID)
}

// Mode is the access mode of a ticket.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// Ticket is a held lock on one file kind. Release it exactly once; extra
// calls are ignored.
type Ticket struct {
	id        uuid.UUID
	kind      Kind
	requestor Requestor
	mode      Mode
	acquired  time.Time

	// weight is the semaphore weight held by the ticket. Guarded by the
	// owning FileSet's mutex.
	weight int64

	set      *FileSet
	released atomic.Bool
}

// ID returns the ticket's unique id.
func (t *Ticket) ID() uuid.UUID { return t.id }

// Kind returns the locked file kind.
func (t *Ticket) Kind() Kind { return t.kind }

// Requestor returns the owner of the ticket.
func (t *Ticket) Requestor() Requestor { return t.requestor }

// Mode returns whether the ticket is shared or exclusive.
func (t *Ticket) Mode() Mode { return t.mode }

// Acquired returns when the ticket was granted.
func (t *Ticket) Acquired() time.Time { return t.acquired }

// Released reports whether Release has been called.
func (t *Ticket) Released() bool { return t.released.Load() }

// Release gives the ticket back. Calls after the first are no-ops.
func (t *Ticket) Release() { t.set.release(t) }

func (t *Ticket) holder() Holder {
	return Holder{Ticket: t.id, Kind: t.kind, Requestor: t.requestor, Mode: t.mode, Since: t.acquired}
}

// Holder describes a live ticket for diagnostics.
type Holder struct {
	Ticket    uuid.UUID
	Kind      Kind
	Requestor Requestor
	Mode      Mode
	Since     time.Time
}

func (h Holder) String() string {
	return fmt.Sprintf("%s %s lock held by %s since %s", h.Kind, h.Mode, h.Requestor, h.Since.Format(time.RFC3339))
}
