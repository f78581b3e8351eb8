// Package reconcile merges remote change notifications into a local ledger.
//
// The rule is last writer wins per item, by arrival order: a notification
// overwrites the local found quantity no matter what was there, including an
// optimistic local edit that has not been confirmed yet. Two collaborators
// tapping "+1" on the same item in quick succession can therefore lose one
// increment. Counts are visually verified and can be re-tapped, so no
// merge of concurrent deltas is attempted.
//
// Notifications carry no sequence number. If the transport reorders messages
// for an item, the last one to arrive still wins.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/ledger"
)

// ErrOutOfRange indicates a notified value outside [0, needed].
var ErrOutOfRange = errors.New("found quantity out of range")

// Reconciler applies remote notifications to a ledger.
type Reconciler struct {
	ledger *ledger.Ledger
	logger *slog.Logger

	// OnApplied, if set, is called after every successfully applied notification.
	OnApplied func(domain.Notification)
}

// New creates a reconciler for l. A nil logger uses slog.Default().
func New(l *ledger.Ledger, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{ledger: l, logger: logger}
}

// Apply integrates one notification. It only touches the named item. An unknown
// item or an out-of-range value yields a *domain.SyncError and leaves the ledger
// unchanged; the error is also logged so callers may ignore it.
func (r *Reconciler) Apply(n domain.Notification) error {
	item, err := r.ledger.Get(n.ItemID)
	if err != nil {
		return r.drop(n, err)
	}
	if n.QtyFound < 0 || n.QtyFound > item.QtyNeeded {
		return r.drop(n, fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, n.QtyFound, item.QtyNeeded))
	}

	if err := r.ledger.Apply(n.ItemID, n.QtyFound); err != nil {
		return r.drop(n, err)
	}
	r.logger.Debug("reconciled remote update", "item_id", n.ItemID, "previous", item.QtyFound, "qty_found", n.QtyFound)

	if r.OnApplied != nil {
		r.OnApplied(n)
	}
	return nil
}

func (r *Reconciler) drop(n domain.Notification, err error) error {
	syncErr := &domain.SyncError{ItemID: n.ItemID, Err: err}
	r.logger.Warn("dropping remote update", "item_id", n.ItemID, "qty_found", n.QtyFound, "err", err)
	return syncErr
}

// Run applies notifications from ch until ctx is done or ch is closed. Failed
// notifications are dropped and never stop the loop. Run must be the only
// writer of the ledger while it is running.
func (r *Reconciler) Run(ctx context.Context, ch <-chan domain.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			_ = r.Apply(n)
		}
	}
}
