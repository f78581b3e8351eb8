// Package view derives the display-ready list of a session from a ledger snapshot.
// Projection is a pure function of its inputs and is recomputed from scratch on
// every change; the data set is small (low hundreds of items) and filter, sort and
// group do not decompose into cheap incremental patches.
package view

import (
	"sort"
	"strconv"

	"github.com/h0rv/brickhunt/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SparesKey is the key of the section holding spare items.
const SparesKey = "spares"

// OtherLabel is the bucket for items without a category.
const OtherLabel = "Other"

// Config is the input of one projection.
type Config struct {
	Mode   domain.GroupMode
	Filter domain.Filter
	Narrow string // Restrict to one part identifier; empty disables narrowing
}

// Group is a visual cluster of items sharing a GroupKey under the active mode.
type Group struct {
	Key    string // Mode-prefixed key, e.g. "color:4"
	Label  string // Display label, e.g. "Red"
	Items  []domain.LineItem
	Needed int
	Found  int
}

// Complete reports whether every item in the group is complete.
func (g Group) Complete() bool {
	return g.Found >= g.Needed
}

// Projection is the rendered list: regular groups plus the spare section.
type Projection struct {
	Groups      []Group
	SpareGroups []Group
	// Natural is the key order of Groups before any explicit override.
	Natural []string
}

// Count returns the number of items across regular and spare groups.
func (p Projection) Count() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Items)
	}
	for _, g := range p.SpareGroups {
		n += len(g.Items)
	}
	return n
}

// Project derives groups from items. Steps run in order: partition spares,
// narrow to one part, filter, sort, group. Each partition is processed
// independently. Groups keep the position of their first member.
func Project(items []domain.LineItem, cfg Config) Projection {
	if cfg.Mode == "" {
		cfg.Mode = domain.GroupByColor
	}
	if cfg.Filter == "" {
		cfg.Filter = domain.FilterAll
	}

	var regular, spares []domain.LineItem
	for _, item := range items {
		if item.IsSpare {
			spares = append(spares, item)
		} else {
			regular = append(regular, item)
		}
	}

	col := collate.New(language.English)
	groups := projectPartition(col, regular, cfg)

	natural := make([]string, len(groups))
	for i, g := range groups {
		natural[i] = g.Key
	}

	return Projection{
		Groups:      groups,
		SpareGroups: projectPartition(col, spares, cfg),
		Natural:     natural,
	}
}

func projectPartition(col *collate.Collator, items []domain.LineItem, cfg Config) []Group {
	kept := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if cfg.Narrow != "" && item.PartNum != cfg.Narrow {
			continue
		}
		if !Matches(item, cfg.Filter) {
			continue
		}
		kept = append(kept, item)
	}

	sortItems(col, kept, cfg.Mode)

	var groups []Group
	index := make(map[string]int)
	for _, item := range kept {
		key, label := GroupKey(item, cfg.Mode)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Label: label})
		}
		groups[i].Items = append(groups[i].Items, item)
		groups[i].Needed += item.QtyNeeded
		groups[i].Found += item.QtyFound
	}
	return groups
}

// Matches reports whether an item passes the filter.
func Matches(item domain.LineItem, f domain.Filter) bool {
	switch f {
	case domain.FilterComplete:
		return item.QtyFound >= item.QtyNeeded
	case domain.FilterIncomplete:
		return item.QtyFound < item.QtyNeeded
	case domain.FilterInProgress:
		return item.QtyFound > 0 && item.QtyFound < item.QtyNeeded
	default:
		return true
	}
}

// GroupKey returns the group key and display label of an item under a mode.
func GroupKey(item domain.LineItem, mode domain.GroupMode) (key, label string) {
	switch mode {
	case domain.GroupByCategory:
		label = categoryLabel(item)
		if item.CategoryCode == "" {
			return "category:other", label
		}
		return "category:" + item.CategoryCode, label
	case domain.GroupByStatus:
		if item.Complete() {
			return "status:complete", "Complete"
		}
		return "status:incomplete", "Incomplete"
	default:
		return "color:" + strconv.Itoa(item.ColorID), colorLabel(item)
	}
}

func colorLabel(item domain.LineItem) string {
	if item.ColorName != "" {
		return item.ColorName
	}
	return "Color " + strconv.Itoa(item.ColorID)
}

func categoryLabel(item domain.LineItem) string {
	if item.CategoryName != "" {
		return item.CategoryName
	}
	if item.CategoryCode != "" {
		return item.CategoryCode
	}
	return OtherLabel
}

// sortItems orders items by the mode comparator. Remaining ties fall back to
// part number, color and ID so the output never depends on input order.
func sortItems(col *collate.Collator, items []domain.LineItem, mode domain.GroupMode) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]

		switch mode {
		case domain.GroupByCategory:
			if c := col.CompareString(categoryLabel(a), categoryLabel(b)); c != 0 {
				return c < 0
			}
			if c := col.CompareString(a.PartName, b.PartName); c != 0 {
				return c < 0
			}
		case domain.GroupByStatus:
			if a.Complete() != b.Complete() {
				return !a.Complete()
			}
			if c := col.CompareString(colorLabel(a), colorLabel(b)); c != 0 {
				return c < 0
			}
		default:
			if c := col.CompareString(colorLabel(a), colorLabel(b)); c != 0 {
				return c < 0
			}
			if c := col.CompareString(a.PartName, b.PartName); c != 0 {
				return c < 0
			}
		}

		if a.PartNum != b.PartNum {
			return a.PartNum < b.PartNum
		}
		if a.ColorID != b.ColorID {
			return a.ColorID < b.ColorID
		}
		return a.ID < b.ID
	})
}

// HasSimilarInOtherColors reports whether more than one distinct color exists
// among non-spare items of the given part.
func HasSimilarInOtherColors(items []domain.LineItem, partNum string) bool {
	colors := make(map[int]struct{})
	for _, item := range items {
		if item.IsSpare || item.PartNum != partNum {
			continue
		}
		colors[item.ColorID] = struct{}{}
		if len(colors) > 1 {
			return true
		}
	}
	return false
}
