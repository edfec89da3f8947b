// Package permission defines the gate the file engine consults before acting
// on a record on behalf of an actor.
package permission

import (
	"github.com/marmos91/dittofiles/pkg/metadata"
)

// Action is the operation being authorized.
type Action int

const (
	Read Action = iota
	Write
	Create
	Delete
)

func (a Action) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	case Create:
		return "create"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Actor identifies who is acting.
type Actor struct {
	// User is the acting user's identifier
	User string

	// Admin bypasses ownership checks
	Admin bool
}

// System is the actor used by internal jobs (GC, CLI maintenance commands).
var System = Actor{User: "system", Admin: true}

// Gate decides whether actor may perform action on rec.
//
// Implementations must be safe for concurrent use and must not mutate rec.
type Gate interface {
	HasPermission(rec *metadata.FileRecord, action Action, actor Actor) bool
}

// GateFunc adapts a function to Gate.
type GateFunc func(rec *metadata.FileRecord, action Action, actor Actor) bool

func (f GateFunc) HasPermission(rec *metadata.FileRecord, action Action, actor Actor) bool {
	return f(rec, action, actor)
}

// AllowAll permits everything.
var AllowAll Gate = GateFunc(func(*metadata.FileRecord, Action, Actor) bool { return true })

// OwnerGate grants access by ownership:
//   - admins may do anything
//   - public files and all folders are readable by anyone
//   - anyone may create
//   - everything else requires actor.User == rec.Owner
type OwnerGate struct{}

func (OwnerGate) HasPermission(rec *metadata.FileRecord, action Action, actor Actor) bool {
	if actor.Admin {
		return true
	}
	if action == Create {
		return true
	}
	if action == Read && (rec.IsFolder || !rec.IsPrivate) {
		return true
	}
	return rec.Owner != "" && rec.Owner == actor.User
}

var _ Gate = OwnerGate{}
