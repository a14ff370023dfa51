package shared

import "sort"

// Capability is an atomic permission string, e.g. "APPROVE_PO".
type Capability string

// Actor is the authenticated user acting on a document together with the
// capabilities resolved for them.
type Actor struct {
	ID           int64
	Name         string
	Email        string
	Capabilities map[Capability]struct{}
}

// NewActor builds an Actor holding the given capabilities.
func NewActor(id int64, name string, caps ...Capability) Actor {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return Actor{ID: id, Name: name, Capabilities: set}
}

// Authenticated reports whether the actor identifies a user.
func (a Actor) Authenticated() bool {
	return a.ID > 0
}

// Has reports whether the actor holds the capability.
func (a Actor) Has(c Capability) bool {
	if a.Capabilities == nil {
		return false
	}
	_, ok := a.Capabilities[c]
	return ok
}

// HasAny reports whether the actor holds at least one of the capabilities.
func (a Actor) HasAny(caps ...Capability) bool {
	for _, c := range caps {
		if a.Has(c) {
			return true
		}
	}
	return false
}

// CapabilityList returns the actor capabilities sorted by name.
func (a Actor) CapabilityList() []Capability {
	out := make([]Capability, 0, len(a.Capabilities))
	for c := range a.Capabilities {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
