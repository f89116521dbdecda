package cart

import "github.com/google/uuid"

// Snapshot is the persisted slice of cart state: line contents and the
// selected client survive register reloads; delivery fee, discount and
// payment state are session-scoped and deliberately excluded.
type Snapshot struct {
	Lines    []Line     `json:"lines"`
	ClientID *uuid.UUID `json:"client_id,omitempty"`
}

// Snapshot captures the persistable state of the cart.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Lines:    c.Lines(),
		ClientID: c.clientID,
	}
}

// Restore replaces the cart contents with a previously saved snapshot.
// Session-scoped fields (delivery fee, discount) reset to zero.
func (c *Cart) Restore(snap Snapshot) {
	c.Clear()
	c.lines = make([]Line, len(snap.Lines))
	copy(c.lines, snap.Lines)
	for i, l := range c.lines {
		c.index[l.ProductID] = i
	}
	c.clientID = snap.ClientID
}
