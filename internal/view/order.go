package view

// GroupOrder is a user-customized ordering of groups. The zero value means
// "natural order for the active mode".
type GroupOrder struct {
	keys []string // nil: no explicit order
}

// Explicit returns the explicit key order, or false if none exists.
func (o *GroupOrder) Explicit() ([]string, bool) {
	if o.keys == nil {
		return nil, false
	}
	result := make([]string, len(o.keys))
	copy(result, o.keys)
	return result, true
}

// Reset discards the explicit order. Group keys are mode-specific, so it must be
// called whenever the grouping mode changes.
func (o *GroupOrder) Reset() {
	o.keys = nil
}

// Reorder moves group from to the position of group to, shifting to (and
// everything after it) down by one. Without an explicit order, one is seeded
// from natural first. It is a no-op, returning false, when from equals to or
// either key is not in natural (the groups currently rendered).
func (o *GroupOrder) Reorder(natural []string, from, to string) bool {
	if from == to || !contains(natural, from) || !contains(natural, to) {
		return false
	}

	base := o.full(natural)

	without := make([]string, 0, len(base))
	for _, k := range base {
		if k != from {
			without = append(without, k)
		}
	}

	at := indexOf(without, to)
	reordered := make([]string, 0, len(base))
	reordered = append(reordered, without[:at]...)
	reordered = append(reordered, from)
	reordered = append(reordered, without[at:]...)

	o.keys = reordered
	return true
}

// Resolve returns the render order for natural: explicitly ordered keys first in
// their explicit relative order, then keys missing from the explicit order in
// natural order. Explicit keys not present in natural are skipped.
func (o *GroupOrder) Resolve(natural []string) []string {
	if o.keys == nil {
		result := make([]string, len(natural))
		copy(result, natural)
		return result
	}

	result := make([]string, 0, len(natural))
	for _, k := range o.keys {
		if contains(natural, k) {
			result = append(result, k)
		}
	}
	for _, k := range natural {
		if !contains(o.keys, k) {
			result = append(result, k)
		}
	}
	return result
}

// full is the explicit order extended with natural keys it does not know yet.
// Keys of groups hidden right now (e.g. by a filter) keep their slot.
func (o *GroupOrder) full(natural []string) []string {
	if o.keys == nil {
		result := make([]string, len(natural))
		copy(result, natural)
		return result
	}
	result := make([]string, len(o.keys), len(o.keys)+len(natural))
	copy(result, o.keys)
	for _, k := range natural {
		if !contains(o.keys, k) {
			result = append(result, k)
		}
	}
	return result
}

// Apply reorders groups according to the resolved order.
func (o *GroupOrder) Apply(groups []Group) []Group {
	if o.keys == nil {
		return groups
	}

	natural := make([]string, len(groups))
	byKey := make(map[string]Group, len(groups))
	for i, g := range groups {
		natural[i] = g.Key
		byKey[g.Key] = g
	}

	ordered := make([]Group, 0, len(groups))
	for _, k := range o.Resolve(natural) {
		ordered = append(ordered, byKey[k])
	}
	return ordered
}

// Collapsed is the set of collapsed group keys. The spare section starts
// collapsed and every other group starts expanded.
type Collapsed struct {
	overrides map[string]bool
}

// IsCollapsed reports whether the group is collapsed.
func (c *Collapsed) IsCollapsed(key string) bool {
	if v, ok := c.overrides[key]; ok {
		return v
	}
	return key == SparesKey
}

// Toggle flips the collapsed state of a group.
func (c *Collapsed) Toggle(key string) {
	if c.overrides == nil {
		c.overrides = make(map[string]bool)
	}
	c.overrides[key] = !c.IsCollapsed(key)
}

func contains(keys []string, k string) bool {
	return indexOf(keys, k) >= 0
}

func indexOf(keys []string, k string) int {
	for i, key := range keys {
		if key == k {
			return i
		}
	}
	return -1
}
