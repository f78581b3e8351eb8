package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/muesli/reflow/wordwrap"
)

// Layout constants
const (
	leftPanelRatio = 0.35 // Left panel takes 35% of width
	minLeftWidth   = 24
	maxLeftWidth   = 40
	borderSize     = 2 // Top + bottom border
)

// PartBaseURL is where part pages live on Rebrickable.
const PartBaseURL = "https://rebrickable.com/parts/"

// Detail view styles
var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	detailValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	focusedPanelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("205"))

	spareBadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("228")).
			Padding(0, 1)
)

// DetailModel shows one line item over the checklist. It holds only the item
// ID; the item itself is read from the ledger at render time so remote changes
// show up while it is open.
type DetailModel struct {
	itemID int64
}

// NewDetailModel creates the detail view of an item.
func NewDetailModel(itemID int64) DetailModel {
	return DetailModel{itemID: itemID}
}

// PartURL returns the Rebrickable page of a part.
func PartURL(partNum string) string {
	return PartBaseURL + partNum + "/"
}

// View renders the split-screen detail: identity on the left, quantities on the right
func (m DetailModel) View(item domain.LineItem, width, height int) string {
	leftWidth := int(float64(width) * leftPanelRatio)
	if leftWidth < minLeftWidth {
		leftWidth = minLeftWidth
	}
	if leftWidth > maxLeftWidth {
		leftWidth = maxLeftWidth
	}
	rightWidth := width - leftWidth - 1 // 1 char gap
	if rightWidth < 20 {
		rightWidth = 20
	}
	if height < 8 {
		height = 8
	}

	leftPanel := panelBorderStyle.
		Width(leftWidth - borderSize).
		Height(height - borderSize).
		Render(m.renderLeftPanel(item, leftWidth-borderSize))

	rightPanel := focusedPanelBorderStyle.
		Width(rightWidth - borderSize).
		Height(height - borderSize).
		Render(m.renderRightPanel(item, rightWidth-borderSize))

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)
}

// renderLeftPanel renders the part identity
func (m DetailModel) renderLeftPanel(item domain.LineItem, width int) string {
	var b strings.Builder

	b.WriteString(detailLabelStyle.Render("Part " + item.PartNum))
	if item.IsSpare {
		b.WriteString(" ")
		b.WriteString(spareBadgeStyle.Render("SPARE"))
	}
	b.WriteString("\n\n")

	name := item.PartName
	if name == "" {
		name = item.PartNum
	}
	b.WriteString(detailTitleStyle.Render(wordwrap.String(name, max(width-2, 10))))
	b.WriteString("\n\n")

	writeField(&b, "Color", fmt.Sprintf("%s %s", Swatch(item.ColorRGB), item.ColorName))
	if item.CategoryName != "" {
		writeField(&b, "Category", item.CategoryName)
	}
	if item.ElementID != "" {
		writeField(&b, "Element", item.ElementID)
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(wordwrap.String(PartURL(item.PartNum), max(width-2, 10))))
	return b.String()
}

// renderRightPanel renders the quantities of the item
func (m DetailModel) renderRightPanel(item domain.LineItem, width int) string {
	var b strings.Builder

	b.WriteString(detailLabelStyle.Render("Found"))
	b.WriteString("\n\n")

	count := fmt.Sprintf("%d of %d", item.QtyFound, item.QtyNeeded)
	if item.Complete() {
		b.WriteString(CompleteStyle.Bold(true).Render(count + "  complete"))
	} else {
		b.WriteString(detailTitleStyle.Render(count))
		b.WriteString(detailValueStyle.Render(fmt.Sprintf("  %d to go", item.QtyNeeded-item.QtyFound)))
	}
	b.WriteString("\n\n")

	barWidth := width - 2
	if barWidth > 40 {
		barWidth = 40
	}
	b.WriteString(ProgressBar(itemPercent(item), barWidth))
	b.WriteString("\n\n")

	if item.ImageURL != "" {
		writeField(&b, "Image", item.ImageURL)
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(detailLabelStyle.Render(label + ": "))
	b.WriteString(detailValueStyle.Render(value))
	b.WriteString("\n")
}

func itemPercent(item domain.LineItem) int {
	if item.QtyNeeded == 0 {
		return 100
	}
	return item.QtyFound * 100 / item.QtyNeeded
}
