// Package register owns the server-side state of each point-of-sale
// register: its cart and its in-progress payment set. One operator session
// owns one register exclusively, so state access is serialized per register
// with a plain mutex rather than fine-grained locking.
package register

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pdv/internal/cart"
	"pdv/internal/payment"
	"pdv/pkg/platform/sentinel"
)

// State is one register's working set. The cart survives reloads through the
// snapshot store; the payment set is session-scoped and never persisted.
type State struct {
	mu       sync.Mutex
	cart     *cart.Cart
	payments *payment.Set
	loaded   bool
}

// Registry hands out register states, lazily restoring persisted cart
// snapshots on first access.
type Registry struct {
	mu     sync.Mutex
	states map[string]*State
	carts  cart.Store
	logger *slog.Logger
}

func NewRegistry(carts cart.Store, logger *slog.Logger) *Registry {
	return &Registry{
		states: make(map[string]*State),
		carts:  carts,
		logger: logger,
	}
}

func (r *Registry) state(registerID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[registerID]
	if !ok {
		st = &State{cart: cart.New(), payments: payment.NewSet()}
		r.states[registerID] = st
	}
	return st
}

func (r *Registry) ensureLoaded(ctx context.Context, registerID string, st *State) {
	if st.loaded {
		return
	}
	st.loaded = true
	snap, err := r.carts.Load(ctx, registerID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			r.logger.WarnContext(ctx, "cart snapshot load failed",
				"register_id", registerID,
				"error", err,
			)
		}
		return
	}
	st.cart.Restore(snap)
}

// Update runs fn against the register's cart and payment set under its lock
// and persists the resulting cart snapshot. An error from fn skips the save.
func (r *Registry) Update(ctx context.Context, registerID string, fn func(c *cart.Cart, p *payment.Set) error) error {
	st := r.state(registerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	r.ensureLoaded(ctx, registerID, st)

	if err := fn(st.cart, st.payments); err != nil {
		return err
	}
	if err := r.carts.Save(ctx, registerID, st.cart.Snapshot()); err != nil {
		return fmt.Errorf("persist cart snapshot: %w", err)
	}
	return nil
}

// View runs fn read-only under the register's lock, without persisting.
func (r *Registry) View(ctx context.Context, registerID string, fn func(c *cart.Cart, p *payment.Set) error) error {
	st := r.state(registerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	r.ensureLoaded(ctx, registerID, st)
	return fn(st.cart, st.payments)
}

// Reset clears the register's cart and payment set and drops the persisted
// snapshot. Called after a successful commit or an explicit cancel.
func (r *Registry) Reset(ctx context.Context, registerID string) error {
	st := r.state(registerID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cart.Clear()
	st.payments.Clear()
	st.loaded = true
	if err := r.carts.Delete(ctx, registerID); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}
