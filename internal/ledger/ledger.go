// Package ledger holds the authoritative in-memory collection of line items for
// one session. It builds the collection from a provider manifest, exposes lookup
// by identity, and offers a single mutation primitive plus optimistic helpers.
//
// A Ledger is not safe for concurrent use. Confine it to one goroutine (the TUI
// event loop or a reconciliation loop); one user action produces at most one
// outstanding update per item, so no locking is needed.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/h0rv/brickhunt/internal/domain"
)

var (
	// ErrItemNotFound indicates the requested line item does not exist.
	ErrItemNotFound = errors.New("line item not found")
	// ErrStaleRollback indicates the item was written after the update being rolled back.
	ErrStaleRollback = errors.New("item changed since update")
)

// Ledger manages the line items of one session.
type Ledger struct {
	items map[int64]*domain.LineItem
	order []int64 // IDs ascending

	// revision is bumped on every Apply and guards optimistic rollbacks.
	revision map[int64]uint64
}

// Update describes one optimistic local change, as returned by Adjust.
type Update struct {
	ItemID   int64
	Prev     int
	Next     int
	revision uint64
}

// Delta is the effective change the update made after clamping.
func (u Update) Delta() int {
	return u.Next - u.Prev
}

// Changed reports whether the update altered the found quantity.
func (u Update) Changed() bool {
	return u.Next != u.Prev
}

func newLedger(capacity int) *Ledger {
	return &Ledger{
		items:    make(map[int64]*domain.LineItem, capacity),
		order:    make([]int64, 0, capacity),
		revision: make(map[int64]uint64, capacity),
	}
}

// BuildFromManifest validates the raw provider entries, merges entries sharing the
// same (part, color, spare) triple by summing QtyNeeded, and returns a ledger with
// one item per triple. Items keep first-seen order, get sequential IDs starting at
// 1 and start with QtyFound = 0.
// Returns a *domain.ValidationError for the first malformed entry.
func BuildFromManifest(entries []domain.ManifestEntry) (*Ledger, error) {
	merged := make(map[domain.ItemKey]*domain.LineItem, len(entries))
	var keys []domain.ItemKey

	for idx, e := range entries {
		if err := validateEntry(idx, e); err != nil {
			return nil, err
		}

		key := e.Key()
		if existing, ok := merged[key]; ok {
			existing.QtyNeeded += e.QtyNeeded
			continue
		}

		merged[key] = &domain.LineItem{
			PartNum:      e.PartNum,
			PartName:     e.PartName,
			ImageURL:     e.ImageURL,
			ColorID:      e.ColorID,
			ColorName:    e.ColorName,
			ColorRGB:     e.ColorRGB,
			ElementID:    e.ElementID,
			CategoryCode: e.CategoryCode,
			CategoryName: e.CategoryName,
			QtyNeeded:    e.QtyNeeded,
			IsSpare:      e.IsSpare,
		}
		keys = append(keys, key)
	}

	l := newLedger(len(keys))
	for i, key := range keys {
		item := merged[key]
		item.ID = int64(i + 1)
		l.items[item.ID] = item
		l.order = append(l.order, item.ID)
	}
	return l, nil
}

func validateEntry(idx int, e domain.ManifestEntry) error {
	if e.PartNum == "" {
		return &domain.ValidationError{Index: idx, Field: "part", Reason: "missing part identifier"}
	}
	if e.QtyNeeded < 0 {
		return &domain.ValidationError{Index: idx, Field: "quantity", Reason: fmt.Sprintf("negative quantity %d", e.QtyNeeded)}
	}
	return nil
}

// FromItems builds a ledger from already persisted items, as returned by a
// session load. It re-checks the bounds and uniqueness invariants.
func FromItems(items []domain.LineItem) (*Ledger, error) {
	l := newLedger(len(items))
	seen := make(map[domain.ItemKey]int64, len(items))

	for idx, item := range items {
		if item.QtyNeeded < 0 || item.QtyFound < 0 || item.QtyFound > item.QtyNeeded {
			return nil, &domain.ValidationError{
				Index:  idx,
				Field:  "quantity",
				Reason: fmt.Sprintf("found %d outside [0, %d]", item.QtyFound, item.QtyNeeded),
			}
		}
		if other, dup := seen[item.Key()]; dup {
			return nil, &domain.ValidationError{
				Index:  idx,
				Field:  "identity",
				Reason: fmt.Sprintf("duplicates item %d", other),
			}
		}
		if _, dup := l.items[item.ID]; dup {
			return nil, &domain.ValidationError{Index: idx, Field: "id", Reason: fmt.Sprintf("duplicate id %d", item.ID)}
		}
		seen[item.Key()] = item.ID

		copied := item
		l.items[item.ID] = &copied
		l.order = append(l.order, item.ID)
	}

	sort.Slice(l.order, func(i, j int) bool { return l.order[i] < l.order[j] })
	return l, nil
}

// Len returns the number of line items.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Get returns a copy of the item, or ErrItemNotFound.
func (l *Ledger) Get(id int64) (domain.LineItem, error) {
	item, ok := l.items[id]
	if !ok {
		return domain.LineItem{}, ErrItemNotFound
	}
	return *item, nil
}

// Items returns a snapshot copy of all items in ID order.
func (l *Ledger) Items() []domain.LineItem {
	result := make([]domain.LineItem, 0, len(l.order))
	for _, id := range l.order {
		result = append(result, *l.items[id])
	}
	return result
}

// Apply replaces the found quantity of one item. It performs no clamping; callers
// compute the value with NextValue or receive it already clamped from the store.
func (l *Ledger) Apply(id int64, qtyFound int) error {
	item, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	item.QtyFound = qtyFound
	l.revision[id]++
	return nil
}

// Adjust applies a clamped delta to an item and returns the update so it can be
// persisted and, if persistence fails, rolled back.
func (l *Ledger) Adjust(id int64, delta int) (Update, error) {
	item, ok := l.items[id]
	if !ok {
		return Update{}, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}

	prev := item.QtyFound
	next := NextValue(prev, delta, item.QtyNeeded)
	if next == prev {
		return Update{ItemID: id, Prev: prev, Next: next, revision: l.revision[id]}, nil
	}

	if err := l.Apply(id, next); err != nil {
		return Update{}, err
	}
	return Update{ItemID: id, Prev: prev, Next: next, revision: l.revision[id]}, nil
}

// Rollback reverts an optimistic update. It only restores the previous value if
// nothing wrote the item since; a remote notification that arrived in between
// is authoritative and wins, in which case ErrStaleRollback is returned.
func (l *Ledger) Rollback(u Update) error {
	if _, ok := l.items[u.ItemID]; !ok {
		return fmt.Errorf("%w: %d", ErrItemNotFound, u.ItemID)
	}
	if l.revision[u.ItemID] != u.revision {
		return ErrStaleRollback
	}
	return l.Apply(u.ItemID, u.Prev)
}

// Totals sums needed and found quantities over the items matching pred.
// A nil pred matches every item.
func (l *Ledger) Totals(pred func(domain.LineItem) bool) (needed, found int) {
	for _, id := range l.order {
		item := l.items[id]
		if pred != nil && !pred(*item) {
			continue
		}
		needed += item.QtyNeeded
		found += item.QtyFound
	}
	return needed, found
}

// NonSpare matches items that are not spares.
func NonSpare(item domain.LineItem) bool {
	return !item.IsSpare
}

// Progress returns found/needed as a rounded percentage. Zero needed yields 0.
func Progress(needed, found int) int {
	if needed <= 0 {
		return 0
	}
	return int(math.Round(float64(found) * 100 / float64(needed)))
}
