// Package session hosts one viewer's copy of a shared session: the local ledger,
// the view state, and the optimistic update protocol against a persistence
// gateway. Remote changes arrive through a Channel and are handed to the
// reconciler.
//
// Like the ledger it wraps, a Session is confined to one goroutine. Persist is
// the exception: it only talks to the gateway and may run anywhere.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/ledger"
	"github.com/h0rv/brickhunt/internal/reconcile"
	"github.com/h0rv/brickhunt/internal/view"
)

// Gateway is the persistence collaborator. UpdateFound must apply the same
// clamp as ledger.NextValue and return the stored value.
type Gateway interface {
	LoadSession(ctx context.Context, token string) (domain.Session, []domain.LineItem, error)
	UpdateFound(ctx context.Context, token string, itemID int64, delta int) (int, error)
	ResetAll(ctx context.Context, token string) error
}

// Channel is the realtime collaborator.
type Channel interface {
	Subscribe(ctx context.Context, token string) (Subscription, error)
}

// Subscription delivers remote notifications for one session until closed.
// The notification channel is closed when the subscription ends.
type Subscription interface {
	Notifications() <-chan domain.Notification
	Close() error
}

// Session is the client-side state of one shared session.
type Session struct {
	meta       domain.Session
	ledger     *ledger.Ledger
	reconciler *reconcile.Reconciler
	gateway    Gateway
	logger     *slog.Logger

	// View is the view configuration of this client.
	View *view.State
}

// Open loads a session through the gateway and builds the local ledger.
func Open(ctx context.Context, gw Gateway, token string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	meta, items, err := gw.LoadSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	l, err := ledger.FromItems(items)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger: %w", err)
	}

	logger = logger.With("session", shortToken(meta.Token))
	return &Session{
		meta:       meta,
		ledger:     l,
		reconciler: reconcile.New(l, logger),
		gateway:    gw,
		logger:     logger,
		View:       view.NewState(),
	}, nil
}

// Meta returns the session metadata.
func (s *Session) Meta() domain.Session {
	return s.meta
}

// Ledger returns the local ledger.
func (s *Session) Ledger() *ledger.Ledger {
	return s.ledger
}

// Reconciler returns the reconciler bound to the local ledger.
func (s *Session) Reconciler() *reconcile.Reconciler {
	return s.reconciler
}

// Items returns a snapshot of the local ledger.
func (s *Session) Items() []domain.LineItem {
	return s.ledger.Items()
}

// Projection renders the current ledger through the view state.
func (s *Session) Projection() view.Projection {
	return s.View.Render(s.ledger.Items())
}

// Progress returns needed, found and the rounded percentage over non-spare items.
func (s *Session) Progress() (needed, found, percent int) {
	needed, found = s.ledger.Totals(ledger.NonSpare)
	return needed, found, ledger.Progress(needed, found)
}

// Summary returns the record kept in the recents cache.
func (s *Session) Summary() domain.SessionSummary {
	needed, found, _ := s.Progress()
	return domain.SessionSummary{
		Token:      s.meta.Token,
		SetNum:     s.meta.Set.SetNum,
		SetName:    s.meta.Set.Name,
		Needed:     needed,
		Found:      found,
		LastOpened: time.Now().UTC(),
	}
}

// Adjust applies a clamped delta locally, before any remote confirmation.
// The returned update is then persisted with Persist.
func (s *Session) Adjust(itemID int64, delta int) (ledger.Update, error) {
	return s.ledger.Adjust(itemID, delta)
}

// MarkComplete jumps an item to its needed quantity.
func (s *Session) MarkComplete(itemID int64) (ledger.Update, error) {
	item, err := s.ledger.Get(itemID)
	if err != nil {
		return ledger.Update{}, err
	}
	return s.ledger.Adjust(itemID, item.QtyNeeded-item.QtyFound)
}

// ResetItem sets an item back to zero found.
func (s *Session) ResetItem(itemID int64) (ledger.Update, error) {
	item, err := s.ledger.Get(itemID)
	if err != nil {
		return ledger.Update{}, err
	}
	return s.ledger.Adjust(itemID, -item.QtyFound)
}

// Persist sends an optimistic update to the gateway as a delta, which the store
// clamps again. It reads no local state. It returns the stored value, or a
// *domain.PersistenceError. Updates that changed nothing are not sent.
func (s *Session) Persist(ctx context.Context, u ledger.Update) (int, error) {
	if !u.Changed() {
		return u.Next, nil
	}
	stored, err := s.gateway.UpdateFound(ctx, s.meta.Token, u.ItemID, u.Delta())
	if err != nil {
		return 0, &domain.PersistenceError{Op: "update found", Err: err}
	}
	return stored, nil
}

// Rollback reverts an optimistic update whose persistence failed. A remote
// notification received in the meantime is authoritative and is kept.
func (s *Session) Rollback(u ledger.Update) error {
	err := s.ledger.Rollback(u)
	if errors.Is(err, ledger.ErrStaleRollback) {
		s.logger.Info("skipping rollback, item changed since", "item_id", u.ItemID)
		return nil
	}
	return err
}

// HandleRemote applies a remote notification. Failures are logged and dropped.
func (s *Session) HandleRemote(n domain.Notification) error {
	return s.reconciler.Apply(n)
}

// ResetLocal zeroes every item in the local ledger and returns the updates,
// which PersistReset then confirms or Rollback reverts.
func (s *Session) ResetLocal() []ledger.Update {
	var updates []ledger.Update
	for _, item := range s.ledger.Items() {
		if item.QtyFound == 0 {
			continue
		}
		u, err := s.ledger.Adjust(item.ID, -item.QtyFound)
		if err == nil {
			updates = append(updates, u)
		}
	}
	return updates
}

// PersistReset asks the gateway to zero every item. Like Persist it reads no
// local state. The per-item notifications that follow confirm the reset.
func (s *Session) PersistReset(ctx context.Context) error {
	if err := s.gateway.ResetAll(ctx, s.meta.Token); err != nil {
		return &domain.PersistenceError{Op: "reset all", Err: err}
	}
	return nil
}

// ResetAll zeroes every item locally and asks the gateway to do the same,
// rolling the local reset back if the gateway fails.
func (s *Session) ResetAll(ctx context.Context) error {
	updates := s.ResetLocal()
	if err := s.PersistReset(ctx); err != nil {
		for _, u := range updates {
			_ = s.Rollback(u)
		}
		return err
	}
	return nil
}

// Subscribe opens the realtime subscription of this session. The caller owns the
// subscription and must close it when the viewer leaves the session.
func (s *Session) Subscribe(ctx context.Context, ch Channel) (Subscription, error) {
	sub, err := ch.Subscribe(ctx, s.meta.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	s.logger.Info("subscribed to session updates")
	return sub, nil
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
