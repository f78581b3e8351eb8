package view

import (
	"testing"

	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestItems builds a small mixed inventory
func createTestItems() []domain.LineItem {
	return []domain.LineItem{
		{ID: 1, PartNum: "3001", PartName: "Brick 2 x 4", ColorID: 4, ColorName: "Red", CategoryCode: "11", CategoryName: "Bricks", QtyNeeded: 4, QtyFound: 4},
		{ID: 2, PartNum: "3001", PartName: "Brick 2 x 4", ColorID: 1, ColorName: "Blue", CategoryCode: "11", CategoryName: "Bricks", QtyNeeded: 2, QtyFound: 1},
		{ID: 3, PartNum: "3713", PartName: "Technic Bush", ColorID: 71, ColorName: "Light Bluish Gray", CategoryCode: "54", CategoryName: "Technic Bushes", QtyNeeded: 3},
		{ID: 4, PartNum: "3023", PartName: "Plate 1 x 2", ColorID: 4, ColorName: "Red", QtyNeeded: 6, QtyFound: 2},
		{ID: 5, PartNum: "3023", PartName: "Plate 1 x 2", ColorID: 4, ColorName: "Red", QtyNeeded: 1, IsSpare: true},
		{ID: 6, PartNum: "3713", PartName: "Technic Bush", ColorID: 71, ColorName: "Light Bluish Gray", CategoryCode: "54", CategoryName: "Technic Bushes", QtyNeeded: 1, QtyFound: 1, IsSpare: true},
	}
}

func itemIDs(groups []Group) []int64 {
	var ids []int64
	for _, g := range groups {
		for _, item := range g.Items {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func groupKeys(groups []Group) []string {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	return keys
}

func TestProject_PartitionsSpares(t *testing.T) {
	p := Project(createTestItems(), Config{Mode: domain.GroupByColor})

	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, itemIDs(p.Groups))
	assert.ElementsMatch(t, []int64{5, 6}, itemIDs(p.SpareGroups))
	assert.Equal(t, 6, p.Count())
}

func TestProject_ColorSort(t *testing.T) {
	items := []domain.LineItem{
		{ID: 1, PartNum: "3001", ColorID: 4, ColorName: "Red", PartName: "Brick", QtyNeeded: 1},
		{ID: 2, PartNum: "3749", ColorID: 4, ColorName: "Red", PartName: "Axle", QtyNeeded: 1},
	}

	p := Project(items, Config{Mode: domain.GroupByColor})

	require.Len(t, p.Groups, 1)
	assert.Equal(t, "Axle", p.Groups[0].Items[0].PartName)
	assert.Equal(t, "Brick", p.Groups[0].Items[1].PartName)
}

func TestProject_UnnamedColorSortsByLabel(t *testing.T) {
	items := []domain.LineItem{
		{ID: 1, PartNum: "3001", ColorID: 4, ColorName: "Red", QtyNeeded: 1},
		{ID: 2, PartNum: "3001", ColorID: 9999, QtyNeeded: 1},
		{ID: 3, PartNum: "3001", ColorID: 1, ColorName: "Blue", QtyNeeded: 1},
	}

	p := Project(items, Config{Mode: domain.GroupByColor})

	// Blue < Color 9999 < Red
	assert.Equal(t, []string{"color:1", "color:9999", "color:4"}, groupKeys(p.Groups))
	assert.Equal(t, "Color 9999", p.Groups[1].Label)
}

func TestProject_ColorGroupsInFirstSeenOrder(t *testing.T) {
	p := Project(createTestItems(), Config{Mode: domain.GroupByColor})

	// Blue < Light Bluish Gray < Red
	assert.Equal(t, []string{"color:1", "color:71", "color:4"}, groupKeys(p.Groups))
	assert.Equal(t, p.Natural, groupKeys(p.Groups))
	assert.Equal(t, "Red", p.Groups[2].Label)
	assert.Equal(t, 10, p.Groups[2].Needed)
	assert.Equal(t, 6, p.Groups[2].Found)
}

func TestProject_CategorySort(t *testing.T) {
	p := Project(createTestItems(), Config{Mode: domain.GroupByCategory})

	assert.Equal(t, []string{"category:11", "category:other", "category:54"}, groupKeys(p.Groups))
	assert.Equal(t, OtherLabel, p.Groups[1].Label)
	assert.Equal(t, "Technic Bushes", p.Groups[2].Label)
}

func TestProject_StatusSort(t *testing.T) {
	p := Project(createTestItems(), Config{Mode: domain.GroupByStatus})

	require.Len(t, p.Groups, 2)
	assert.Equal(t, "status:incomplete", p.Groups[0].Key)
	assert.Equal(t, "status:complete", p.Groups[1].Key)

	// Incomplete items tie-broken by color name
	var colors []string
	for _, item := range p.Groups[0].Items {
		colors = append(colors, item.ColorName)
	}
	assert.Equal(t, []string{"Blue", "Light Bluish Gray", "Red"}, colors)
}

func TestProject_Filters(t *testing.T) {
	testCases := []struct {
		filter domain.Filter
		want   []int64
	}{
		{filter: domain.FilterAll, want: []int64{1, 2, 3, 4}},
		{filter: domain.FilterComplete, want: []int64{1}},
		{filter: domain.FilterIncomplete, want: []int64{2, 3, 4}},
		{filter: domain.FilterInProgress, want: []int64{2, 4}},
	}

	for _, tc := range testCases {
		t.Run(string(tc.filter), func(t *testing.T) {
			p := Project(createTestItems(), Config{Mode: domain.GroupByColor, Filter: tc.filter})
			assert.ElementsMatch(t, tc.want, itemIDs(p.Groups))
		})
	}
}

func TestMatches_CompleteItem(t *testing.T) {
	item := domain.LineItem{QtyFound: 2, QtyNeeded: 2}

	assert.True(t, Matches(item, domain.FilterComplete))
	assert.False(t, Matches(item, domain.FilterIncomplete))
	assert.False(t, Matches(item, domain.FilterInProgress))
}

func TestProject_NarrowThenFilter(t *testing.T) {
	p := Project(createTestItems(), Config{Mode: domain.GroupByColor, Filter: domain.FilterIncomplete, Narrow: "3001"})

	assert.Equal(t, []int64{2}, itemIDs(p.Groups))
	assert.Empty(t, p.SpareGroups)
}

func TestProject_Deterministic(t *testing.T) {
	items := createTestItems()
	reversed := make([]domain.LineItem, len(items))
	for i, item := range items {
		reversed[len(items)-1-i] = item
	}

	for _, mode := range domain.GroupModes {
		t.Run(string(mode), func(t *testing.T) {
			cfg := Config{Mode: mode}
			first := Project(items, cfg)
			assert.Equal(t, first, Project(items, cfg))
			assert.Equal(t, itemIDs(first.Groups), itemIDs(Project(reversed, cfg).Groups))
		})
	}
}

func TestProject_DoesNotMutateInput(t *testing.T) {
	items := createTestItems()
	before := make([]domain.LineItem, len(items))
	copy(before, items)

	Project(items, Config{Mode: domain.GroupByStatus})
	assert.Equal(t, before, items)
}

func TestProject_Empty(t *testing.T) {
	p := Project(nil, Config{})
	assert.Empty(t, p.Groups)
	assert.Empty(t, p.SpareGroups)
	assert.Equal(t, 0, p.Count())
}

func TestHasSimilarInOtherColors(t *testing.T) {
	items := createTestItems()

	assert.True(t, HasSimilarInOtherColors(items, "3001"))
	// 3713 exists once regular and once spare in the same color
	assert.False(t, HasSimilarInOtherColors(items, "3713"))
	assert.False(t, HasSimilarInOtherColors(items, "9999"))

	// Spare items in another color do not count
	items = append(items, domain.LineItem{ID: 7, PartNum: "3023", ColorID: 1, ColorName: "Blue", QtyNeeded: 1, IsSpare: true})
	assert.False(t, HasSimilarInOtherColors(items, "3023"))
}
