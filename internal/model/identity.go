package model

import "fmt"

// IdentityState describes what kind of identifier currently names the patient
// for an editing session.
type IdentityState string

const (
	// IdentityUnidentified means no identifier exists yet.
	IdentityUnidentified IdentityState = "unidentified"
	// IdentityEphemeral means a locally minted identifier stands in for the
	// patient before any server record exists.
	IdentityEphemeral IdentityState = "ephemeral"
	// IdentityPermanent means the server has issued the durable identifier.
	IdentityPermanent IdentityState = "permanent"
)

// rank orders states by information content; transitions may only move up.
func (s IdentityState) rank() int {
	switch s {
	case IdentityEphemeral:
		return 1
	case IdentityPermanent:
		return 2
	default:
		return 0
	}
}

// Identity is the value a session uses to key drafts and remote lookups.
type Identity struct {
	State IdentityState `json:"state"`
	ID    string        `json:"id,omitempty"`
}

func Unidentified() Identity {
	return Identity{State: IdentityUnidentified}
}

func Ephemeral(id string) Identity {
	return Identity{State: IdentityEphemeral, ID: id}
}

func Permanent(id string) Identity {
	return Identity{State: IdentityPermanent, ID: id}
}

// Identified reports whether the identity can key a draft at all.
func (i Identity) Identified() bool {
	return i.State != IdentityUnidentified && i.ID != ""
}

// Advance validates a transition to next. Identity only ever moves toward
// Permanent; once Permanent the id is frozen for the session.
func (i Identity) Advance(next Identity) (Identity, error) {
	if i.State == IdentityPermanent {
		if next.State == IdentityPermanent && next.ID == i.ID {
			return i, nil
		}
		return i, fmt.Errorf("identity already permanent as %s, cannot become %s %q", i.ID, next.State, next.ID)
	}
	if next.State.rank() < i.State.rank() {
		return i, fmt.Errorf("identity cannot move backward from %s to %s", i.State, next.State)
	}
	return next, nil
}
