// Package domain defines the normalized domain types for shared part-hunting sessions.
// These types represent the core concepts independent of the inventory provider and
// of the storage and transport layers.
package domain

import "time"

// SetMeta describes a construction set as reported by the inventory provider.
type SetMeta struct {
	SetNum   string // Provider set number, e.g. "75192-1"
	Name     string // Human-readable set name
	Year     int    // Release year (0 if unknown)
	NumParts int    // Part count as advertised by the provider
	ImageURL string // Box image
	SetURL   string // Provider page for the set
}

// Session is one shared checklist for a single set.
// It is immutable after creation except for its owned line items.
type Session struct {
	Token     string    // Unguessable capability token; names and authorizes the session
	Set       SetMeta   // Set the session tracks
	CreatedAt time.Time // Creation time (UTC)
}

// LineItem is one trackable (part, color, spare) entry of a session ledger.
type LineItem struct {
	ID           int64  // Stable identity within the session
	PartNum      string // Provider part identifier, e.g. "3001"
	PartName     string // Display name
	ImageURL     string // Display image reference
	ColorID      int    // Provider color identifier
	ColorName    string // Color display name
	ColorRGB     string // Six hex digits without '#', e.g. "C91A09"
	ElementID    string // Optional element identifier
	CategoryCode string // Optional part category code
	CategoryName string // Optional part category label
	QtyNeeded    int    // Fixed at creation, >= 0
	QtyFound     int    // Mutable, always within [0, QtyNeeded]
	IsSpare      bool   // Fixed at creation
}

// Key returns the uniqueness triple of the item.
func (i LineItem) Key() ItemKey {
	return ItemKey{PartNum: i.PartNum, ColorID: i.ColorID, IsSpare: i.IsSpare}
}

// Complete reports whether every needed piece has been found.
func (i LineItem) Complete() bool {
	return i.QtyFound >= i.QtyNeeded
}

// ItemKey is the (part, color, spare) triple that identifies a line item within a session.
type ItemKey struct {
	PartNum string
	ColorID int
	IsSpare bool
}

// ManifestEntry is one raw inventory row from the provider.
// Entries may repeat the same ItemKey; the ledger merges them.
type ManifestEntry struct {
	PartNum      string
	PartName     string
	ImageURL     string
	ColorID      int
	ColorName    string
	ColorRGB     string
	ElementID    string
	CategoryCode string
	CategoryName string
	IsSpare      bool
	QtyNeeded    int
}

// Key returns the uniqueness triple of the entry.
func (e ManifestEntry) Key() ItemKey {
	return ItemKey{PartNum: e.PartNum, ColorID: e.ColorID, IsSpare: e.IsSpare}
}

// Manifest is the provider payload for one set.
type Manifest struct {
	Set     SetMeta
	Entries []ManifestEntry
}

// Notification is a remote change: item ItemID now has QtyFound pieces found.
// Notifications carry no sequence number; delivery order is the transport's order.
type Notification struct {
	ItemID   int64 `json:"item_id"`
	QtyFound int   `json:"qty_found"`
}

// SessionSummary is the advisory record kept in the local recents cache.
type SessionSummary struct {
	Token      string    `yaml:"token"`
	SetNum     string    `yaml:"set_num"`
	SetName    string    `yaml:"set_name"`
	Needed     int       `yaml:"needed"`
	Found      int       `yaml:"found"`
	LastOpened time.Time `yaml:"last_opened"`
}

// GroupMode selects how the view sorts and groups line items.
type GroupMode string

// GroupMode constants.
const (
	GroupByColor    GroupMode = "color"
	GroupByCategory GroupMode = "category"
	GroupByStatus   GroupMode = "status"
)

// GroupModes lists the modes in cycling order.
var GroupModes = []GroupMode{GroupByColor, GroupByCategory, GroupByStatus}

// Filter selects which line items the view shows.
type Filter string

// Filter constants.
const (
	FilterAll Filter = "all"
	// FilterInProgress keeps items with 0 < found < needed. Completed items are
	// excluded. Earlier generations of the product kept every item with any
	// progress, including completed ones; that variant is not offered.
	FilterInProgress Filter = "in-progress"
	FilterIncomplete Filter = "incomplete"
	FilterComplete   Filter = "complete"
)

// Filters lists the filters in cycling order.
var Filters = []Filter{FilterAll, FilterInProgress, FilterIncomplete, FilterComplete}
