package cart

import "context"

// Store persists cart snapshots between register reloads, keyed by register.
//
// Error contract: Load returns sentinel.ErrNotFound (wrapped) when no snapshot
// exists for the register; Delete on a missing snapshot is a no-op.
type Store interface {
	Save(ctx context.Context, registerID string, snap Snapshot) error
	Load(ctx context.Context, registerID string) (Snapshot, error)
	Delete(ctx context.Context, registerID string) error
}
