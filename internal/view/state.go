package view

import "github.com/h0rv/brickhunt/internal/domain"

// State is the per-view configuration: filter, mode, narrowing, group order and
// collapse selections. It is passed explicitly to whoever renders a session and
// the projection is re-derived from it on every change.
type State struct {
	mode      domain.GroupMode
	filter    domain.Filter
	narrow    string
	Order     GroupOrder
	Collapsed Collapsed
}

// NewState returns the default state: grouped by color, no filter.
func NewState() *State {
	return &State{
		mode:   domain.GroupByColor,
		filter: domain.FilterAll,
	}
}

// Mode returns the active grouping mode.
func (s *State) Mode() domain.GroupMode { return s.mode }

// Filter returns the active filter.
func (s *State) Filter() domain.Filter { return s.filter }

// Narrow returns the part identifier the view is narrowed to, if any.
func (s *State) Narrow() string { return s.narrow }

// Config returns the projector input for the current state.
func (s *State) Config() Config {
	return Config{Mode: s.mode, Filter: s.filter, Narrow: s.narrow}
}

// SetMode switches the grouping mode. Changing the mode discards the explicit
// group order since its keys belong to the previous mode.
func (s *State) SetMode(mode domain.GroupMode) {
	if mode == s.mode {
		return
	}
	s.mode = mode
	s.Order.Reset()
}

// CycleMode switches to the next grouping mode.
func (s *State) CycleMode() {
	s.SetMode(next(domain.GroupModes, s.mode))
}

// SetFilter switches the filter.
func (s *State) SetFilter(f domain.Filter) {
	s.filter = f
}

// CycleFilter switches to the next filter.
func (s *State) CycleFilter() {
	s.filter = next(domain.Filters, s.filter)
}

// SetNarrow restricts the view to one part identifier ("show all colors of
// this part"). An empty string clears the narrowing.
func (s *State) SetNarrow(partNum string) {
	s.narrow = partNum
}

// Render projects items and applies the explicit group order to regular groups.
func (s *State) Render(items []domain.LineItem) Projection {
	p := Project(items, s.Config())
	p.Groups = s.Order.Apply(p.Groups)
	return p
}

// Reorder moves group from to the slot of group to within projection p.
func (s *State) Reorder(p Projection, from, to string) bool {
	return s.Order.Reorder(p.Natural, from, to)
}

func next[T comparable](values []T, current T) T {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
