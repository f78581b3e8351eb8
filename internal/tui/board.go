package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/ledger"
	"github.com/h0rv/brickhunt/internal/session"
	"github.com/h0rv/brickhunt/internal/view"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"
)

// Layout constants
const (
	headerLines  = 2  // Title line + progress line
	footerLines  = 1  // Key hints or toast
	pageJumpSize = 10 // Number of rows to jump with Ctrl+D/U
	countWidth   = 7  // "999/999"
)

// Styles for the checklist - base styles without width (set dynamically)
var (
	groupHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	selectedGroupStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205"))

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	confirmStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("196")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)
)

type rowKind int

const (
	rowGroup  rowKind = iota // Header of a regular or spare group
	rowSpares                // Header of the spare section
	rowItem
)

// row is one line of the flattened checklist.
type row struct {
	kind  rowKind
	key   string // Group key; for items, the key of the enclosing group
	depth int
	spare bool
	group view.Group
	item  domain.LineItem
}

// id identifies the row across rebuilds so the cursor can follow it.
func (r row) id() string {
	if r.kind == rowItem {
		return fmt.Sprintf("item:%d", r.item.ID)
	}
	return "group:" + r.key
}

// BoardModel is the checklist of one shared session.
type BoardModel struct {
	// Dependencies
	ctx      context.Context
	session  *session.Session
	sub      session.Subscription
	gateway  session.Gateway
	channel  session.Channel
	logger   *slog.Logger
	shareURL string

	// UI components
	keymap  KeyMap
	help    HelpModel
	spinner spinner.Model

	// Checklist state
	projection view.Projection
	rows       []row
	cursor     int
	offset     int

	// View state
	width        int
	height       int
	showHelp     bool
	confirmReset bool
	pending      int  // Writes sent and not yet acknowledged
	live         bool // Subscription open
	reloading    bool
	detail       *DetailModel
	errorToast   string
}

// NewBoardModel creates the checklist of an open session. sub may be nil when
// the session could not subscribe; the board then starts offline.
func NewBoardModel(ctx context.Context, sess *session.Session, sub session.Subscription, gw session.Gateway, ch session.Channel, shareURL string, logger *slog.Logger) BoardModel {
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := BoardModel{
		ctx:      ctx,
		session:  sess,
		sub:      sub,
		gateway:  gw,
		channel:  ch,
		logger:   logger,
		shareURL: shareURL,
		keymap:   DefaultKeyMap(),
		help:     NewHelpModel(DefaultKeyMap()),
		spinner:  sp,
		live:     sub != nil,
	}
	(&m).refresh()
	return m
}

// Session returns the session shown by the board.
func (m BoardModel) Session() *session.Session {
	return m.session
}

// Subscription returns the live subscription, nil when offline.
func (m BoardModel) Subscription() session.Subscription {
	return m.sub
}

// Init starts listening for remote changes.
func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.WindowSize(),
		waitForNotification(m.sub),
	)
}

// Update handles messages
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		(&m).adjustScroll()
		return m, nil

	case remoteMsg:
		if msg.sub != m.sub {
			return m, nil
		}
		// Failures are logged by the reconciler and dropped
		_ = m.session.HandleRemote(msg.n)
		(&m).refresh()
		return m, waitForNotification(m.sub)

	case subscriptionClosedMsg:
		if msg.sub != m.sub {
			return m, nil
		}
		m.live = false
		m.errorToast = "Live updates disconnected, press r to reload"
		m.logger.Warn("subscription closed")
		return m, nil

	case persistedMsg:
		if msg.session == m.session {
			m.pending--
		}
		return m, nil

	case persistFailedMsg:
		if msg.session != m.session {
			return m, nil
		}
		m.pending--
		if err := m.session.Rollback(msg.update); err != nil {
			m.logger.Error("rollback failed", "item_id", msg.update.ItemID, "err", err)
		}
		(&m).refresh()
		m.errorToast = fmt.Sprintf("Update failed: %v", msg.err)
		return m, nil

	case resetDoneMsg:
		if msg.session != m.session {
			return m, nil
		}
		m.pending--
		if msg.err != nil {
			for _, u := range msg.updates {
				_ = m.session.Rollback(u)
			}
			(&m).refresh()
			m.errorToast = fmt.Sprintf("Reset failed: %v", msg.err)
		}
		return m, nil

	case reloadedMsg:
		m.reloading = false
		if msg.err != nil {
			m.errorToast = fmt.Sprintf("Reload failed: %v", msg.err)
			return m, nil
		}
		if m.sub != nil {
			_ = m.sub.Close()
		}
		// Keep this viewer's grouping, filter, order and collapse choices
		msg.session.View = m.session.View
		m.session = msg.session
		m.sub = msg.sub
		m.live = true
		m.pending = 0
		m.errorToast = ""
		(&m).refresh()
		return m, waitForNotification(m.sub)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

// handleKeyPress processes keyboard input
func (m BoardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, func() tea.Msg { return QuitMsg{} }
	}

	// Help overlay
	if m.showHelp {
		if msg.String() == "?" || msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	// Reset confirmation
	if m.confirmReset {
		m.confirmReset = false
		if key.Matches(msg, m.keymap.Confirm) {
			return m, (&m).resetAll()
		}
		return m, nil
	}

	// Part details
	if m.detail != nil {
		return m.handleDetailKey(msg)
	}

	m.errorToast = ""

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, func() tea.Msg { return QuitMsg{} }
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Down):
		(&m).moveCursor(1)
	case key.Matches(msg, m.keymap.Up):
		(&m).moveCursor(-1)
	case msg.String() == "ctrl+d":
		(&m).moveCursor(pageJumpSize)
	case msg.String() == "ctrl+u":
		(&m).moveCursor(-pageJumpSize)
	case key.Matches(msg, m.keymap.Top):
		(&m).moveCursor(-len(m.rows))
	case key.Matches(msg, m.keymap.End):
		(&m).moveCursor(len(m.rows))

	case key.Matches(msg, m.keymap.Increment):
		return m, (&m).adjustSelected(func(id int64) (ledger.Update, error) { return m.session.Adjust(id, 1) })
	case key.Matches(msg, m.keymap.Decrement):
		return m, (&m).adjustSelected(func(id int64) (ledger.Update, error) { return m.session.Adjust(id, -1) })
	case key.Matches(msg, m.keymap.Complete):
		return m, (&m).adjustSelected(m.session.MarkComplete)
	case key.Matches(msg, m.keymap.ResetItem):
		return m, (&m).adjustSelected(m.session.ResetItem)
	case key.Matches(msg, m.keymap.ResetAll):
		m.confirmReset = true

	case key.Matches(msg, m.keymap.CycleMode):
		m.session.View.CycleMode()
		(&m).refresh()
	case key.Matches(msg, m.keymap.CycleFilter):
		m.session.View.CycleFilter()
		(&m).refresh()
	case key.Matches(msg, m.keymap.Narrow):
		(&m).toggleNarrow()

	case key.Matches(msg, m.keymap.Detail) && m.selectedItem() != nil:
		item := m.selectedItem()
		detail := NewDetailModel(item.ID)
		m.detail = &detail
	case key.Matches(msg, m.keymap.Toggle):
		if r := m.selectedRow(); r != nil {
			m.session.View.Collapsed.Toggle(r.key)
			(&m).refresh()
		}
	case key.Matches(msg, m.keymap.GroupDown):
		(&m).moveGroup(1)
	case key.Matches(msg, m.keymap.GroupUp):
		(&m).moveGroup(-1)

	case key.Matches(msg, m.keymap.Open):
		if url := m.session.Meta().Set.SetURL; url != "" {
			_ = browser.OpenURL(url)
		}
	case key.Matches(msg, m.keymap.Reconnect):
		if !m.reloading {
			m.reloading = true
			return m, m.reload()
		}
	}

	return m, nil
}

// handleDetailKey handles keys while the part details are shown
func (m BoardModel) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.detail.itemID
	switch {
	case msg.String() == "esc", msg.String() == "enter", key.Matches(msg, m.keymap.Quit):
		m.detail = nil
	case key.Matches(msg, m.keymap.Open):
		if item, err := m.session.Ledger().Get(id); err == nil {
			_ = browser.OpenURL(PartURL(item.PartNum))
		}
	case key.Matches(msg, m.keymap.Increment):
		return m, (&m).adjust(id, func(id int64) (ledger.Update, error) { return m.session.Adjust(id, 1) })
	case key.Matches(msg, m.keymap.Decrement):
		return m, (&m).adjust(id, func(id int64) (ledger.Update, error) { return m.session.Adjust(id, -1) })
	case key.Matches(msg, m.keymap.Complete):
		return m, (&m).adjust(id, m.session.MarkComplete)
	case key.Matches(msg, m.keymap.ResetItem):
		return m, (&m).adjust(id, m.session.ResetItem)
	}
	return m, nil
}

// View renders the checklist - fills the entire terminal
func (m BoardModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	sections := []string{m.renderHeader(width), m.renderProgress(width)}

	bodyHeight := height - headerLines - footerLines
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	var body string
	switch {
	case m.showHelp:
		helpLines := strings.Split(m.help.View(width), "\n")
		if len(helpLines) > bodyHeight {
			helpLines = helpLines[:bodyHeight]
		}
		body = strings.Join(helpLines, "\n")
	case m.detail != nil:
		item, err := m.session.Ledger().Get(m.detail.itemID)
		if err != nil {
			body = dimStyle.Render("(item no longer available)")
		} else {
			body = m.detail.View(item, width, bodyHeight)
		}
	case len(m.rows) == 0:
		body = lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center,
			dimStyle.Render("Nothing matches this filter. Press f to change it."))
	default:
		body = m.renderRows(width, bodyHeight)
	}
	sections = append(sections, lipgloss.NewStyle().Height(bodyHeight).Render(body))
	sections = append(sections, m.renderFooter(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title line: set on the left, view state on the right
func (m BoardModel) renderHeader(width int) string {
	set := m.session.Meta().Set
	title := fmt.Sprintf("%s  %s", set.SetNum, set.Name)
	if set.Year > 0 {
		title += fmt.Sprintf(" (%d)", set.Year)
	}

	var status []string
	if m.pending > 0 || m.reloading {
		status = append(status, m.spinner.View()+"syncing")
	}
	if !m.live {
		status = append(status, "offline")
	}
	status = append(status, "by "+string(m.session.View.Mode()))
	status = append(status, "show "+string(m.session.View.Filter()))
	if narrow := m.session.View.Narrow(); narrow != "" {
		status = append(status, "part "+narrow)
	}
	right := strings.Join(status, " | ")

	return padBetween(titleStyle.Render(truncate.StringWithTail(title, uint(max(width-lipgloss.Width(right)-3, 10)), "…")), dimStyle.Render(right), width)
}

// renderProgress renders the progress bar and share link
func (m BoardModel) renderProgress(width int) string {
	needed, found, percent := m.session.Progress()
	left := fmt.Sprintf("%d/%d found %3d%% ", found, needed, percent)

	right := ""
	if m.shareURL != "" {
		right = dimStyle.Render(" share: " + m.shareURL)
	}

	barWidth := width - len(left) - lipgloss.Width(right) - 1
	if barWidth > 40 {
		barWidth = 40
	}
	if barWidth < 5 {
		right = ""
		barWidth = max(width-len(left)-1, 5)
	}
	return left + ProgressBar(percent, barWidth) + right
}

// renderFooter renders the error toast, the reset confirmation or key hints
func (m BoardModel) renderFooter(width int) string {
	switch {
	case m.confirmReset:
		return confirmStyle.Render("RESET") + " Set every item back to zero for all collaborators? y/N"
	case m.errorToast != "":
		return errorStyle.Render(m.errorToast)
	case m.detail != nil:
		return dimStyle.Render("+/-: adjust  c: complete  x: reset  o: open part  esc: back")
	default:
		position := ""
		if len(m.rows) > 0 {
			position = fmt.Sprintf("%d/%d", m.cursor+1, len(m.rows))
		}
		return padBetween(m.help.ShortView(width-len(position)-2), dimStyle.Render(position), width)
	}
}

// renderRows renders the visible window of the checklist
func (m BoardModel) renderRows(width, height int) string {
	end := m.offset + height
	if end > len(m.rows) {
		end = len(m.rows)
	}

	lines := make([]string, 0, height)
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.renderRow(m.rows[i], i == m.cursor, width))
	}
	return strings.Join(lines, "\n")
}

// renderRow renders one group header or item line
func (m BoardModel) renderRow(r row, selected bool, width int) string {
	indent := strings.Repeat("  ", r.depth)

	if r.kind != rowItem {
		marker := "▾"
		if m.session.View.Collapsed.IsCollapsed(r.key) {
			marker = "▸"
		}
		label := r.group.Label
		if r.kind == rowSpares {
			label = "Spares"
		}
		counts := fmt.Sprintf("%d/%d", r.group.Found, r.group.Needed)
		text := padBetween(fmt.Sprintf("%s%s %s", indent, marker, label), counts, width)
		switch {
		case selected:
			return selectedGroupStyle.Render(text)
		case r.group.Complete():
			return CompleteStyle.Bold(true).Render(text)
		default:
			return groupHeaderStyle.Render(text)
		}
	}

	item := r.item
	prefix := "  "
	if selected {
		prefix = "> "
	}
	check := "[ ]"
	if item.Complete() {
		check = "[x]"
	} else if item.QtyFound > 0 {
		check = "[~]"
	}

	counts := fmt.Sprintf("%*s", countWidth, fmt.Sprintf("%d/%d", item.QtyFound, item.QtyNeeded))
	name := fmt.Sprintf("%s %s %s", item.PartNum, item.ColorName, item.PartName)
	lead := indent + prefix + check + " "
	nameWidth := width - len(lead) - 3 - countWidth - 1 // swatch + spaces
	if nameWidth < 5 {
		nameWidth = 5
	}
	name = truncate.StringWithTail(name, uint(nameWidth), "…")
	line := lead + Swatch(item.ColorRGB) + " " + padBetween(name, counts, nameWidth+countWidth+1)

	switch {
	case selected:
		return selectedRowStyle.Render(line)
	case item.Complete():
		return CompleteStyle.Render(line)
	default:
		return rowStyle.Render(line)
	}
}

// refresh re-derives the projection and rows, keeping the cursor on the same row
func (m *BoardModel) refresh() {
	selected := ""
	if r := m.selectedRow(); r != nil {
		selected = r.id()
	}

	m.projection = m.session.Projection()
	m.rows = buildRows(m.projection, &m.session.View.Collapsed)

	for i, r := range m.rows {
		if r.id() == selected {
			m.cursor = i
			m.adjustScroll()
			return
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.adjustScroll()
}

// buildRows flattens a projection: regular groups, then the spare section with
// its own groups. Collapsed groups contribute only their header.
func buildRows(p view.Projection, collapsed *view.Collapsed) []row {
	var rows []row

	appendGroup := func(g view.Group, key string, depth int, spare bool) {
		rows = append(rows, row{kind: rowGroup, key: key, depth: depth, spare: spare, group: g})
		if collapsed.IsCollapsed(key) {
			return
		}
		for _, item := range g.Items {
			rows = append(rows, row{kind: rowItem, key: key, depth: depth + 1, spare: spare, item: item})
		}
	}

	for _, g := range p.Groups {
		appendGroup(g, g.Key, 0, false)
	}

	if len(p.SpareGroups) == 0 {
		return rows
	}

	section := view.Group{Key: view.SparesKey, Label: "Spares"}
	for _, g := range p.SpareGroups {
		section.Needed += g.Needed
		section.Found += g.Found
	}
	rows = append(rows, row{kind: rowSpares, key: view.SparesKey, spare: true, group: section})
	if !collapsed.IsCollapsed(view.SparesKey) {
		for _, g := range p.SpareGroups {
			appendGroup(g, view.SparesKey+"/"+g.Key, 1, true)
		}
	}
	return rows
}

func (m BoardModel) selectedRow() *row {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	r := m.rows[m.cursor]
	return &r
}

func (m BoardModel) selectedItem() *domain.LineItem {
	r := m.selectedRow()
	if r == nil || r.kind != rowItem {
		return nil
	}
	return &r.item
}

// moveCursor moves the selection up or down by delta
func (m *BoardModel) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	m.adjustScroll()
}

// adjustScroll ensures the selected row is visible
func (m *BoardModel) adjustScroll() {
	visible := m.height - headerLines - footerLines
	if visible < 3 {
		visible = 3
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset > 0 && m.offset > len(m.rows)-visible {
		m.offset = max(len(m.rows)-visible, 0)
	}
}

// toggleNarrow narrows the view to the selected part or clears the narrowing
func (m *BoardModel) toggleNarrow() {
	if m.session.View.Narrow() != "" {
		m.session.View.SetNarrow("")
		m.refresh()
		return
	}
	item := m.selectedItem()
	if item == nil {
		return
	}
	if !view.HasSimilarInOtherColors(m.session.Items(), item.PartNum) {
		m.errorToast = fmt.Sprintf("%s comes in only one color in this set", item.PartNum)
		return
	}
	m.session.View.SetNarrow(item.PartNum)
	m.refresh()
}

// moveGroup swaps the selected regular group with its neighbour in direction dir
func (m *BoardModel) moveGroup(dir int) {
	r := m.selectedRow()
	if r == nil || r.spare {
		return
	}

	groups := m.projection.Groups
	at := -1
	for i, g := range groups {
		if g.Key == r.key {
			at = i
			break
		}
	}
	if at < 0 {
		return
	}

	var moved bool
	switch {
	case dir > 0 && at+1 < len(groups):
		moved = m.session.View.Reorder(m.projection, groups[at+1].Key, r.key)
	case dir < 0 && at > 0:
		moved = m.session.View.Reorder(m.projection, r.key, groups[at-1].Key)
	}
	if moved {
		m.refresh()
	}
}

// adjustSelected applies change to the selected item
func (m *BoardModel) adjustSelected(change func(int64) (ledger.Update, error)) tea.Cmd {
	item := m.selectedItem()
	if item == nil {
		return nil
	}
	return m.adjust(item.ID, change)
}

// adjust applies an optimistic change locally and persists it in the background
func (m *BoardModel) adjust(itemID int64, change func(int64) (ledger.Update, error)) tea.Cmd {
	u, err := change(itemID)
	if err != nil {
		m.errorToast = err.Error()
		return nil
	}
	m.refresh()
	if !u.Changed() {
		return nil
	}
	m.pending++
	return persist(m.ctx, m.session, u)
}

// resetAll zeroes the session locally and asks the server to do the same
func (m *BoardModel) resetAll() tea.Cmd {
	updates := m.session.ResetLocal()
	m.refresh()
	m.pending++

	ctx, sess := m.ctx, m.session
	return func() tea.Msg {
		return resetDoneMsg{session: sess, updates: updates, err: sess.PersistReset(ctx)}
	}
}

// reload loads the session again and opens a fresh subscription
func (m BoardModel) reload() tea.Cmd {
	ctx, gw, ch, logger := m.ctx, m.gateway, m.channel, m.logger
	token := m.session.Meta().Token
	return func() tea.Msg {
		sess, err := session.Open(ctx, gw, token, logger)
		if err != nil {
			return reloadedMsg{err: err}
		}
		sub, err := sess.Subscribe(ctx, ch)
		if err != nil {
			return reloadedMsg{err: err}
		}
		return reloadedMsg{session: sess, sub: sub}
	}
}

// persist sends one update; Session.Persist touches no local state
func persist(ctx context.Context, sess *session.Session, u ledger.Update) tea.Cmd {
	return func() tea.Msg {
		if _, err := sess.Persist(ctx, u); err != nil {
			return persistFailedMsg{session: sess, update: u, err: err}
		}
		return persistedMsg{session: sess, update: u}
	}
}

// waitForNotification blocks on the subscription and delivers the next remote
// change as a message, so every ledger write happens in Update.
func waitForNotification(sub session.Subscription) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-sub.Notifications()
		if !ok {
			return subscriptionClosedMsg{sub: sub}
		}
		return remoteMsg{sub: sub, n: n}
	}
}

// padBetween places left and right on one line of the given width
func padBetween(left, right string, width int) string {
	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

// IsNotFound reports whether err means the session no longer exists.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// Message types
type (
	remoteMsg struct {
		sub session.Subscription
		n   domain.Notification
	}
	subscriptionClosedMsg struct{ sub session.Subscription }
	persistedMsg          struct {
		session *session.Session
		update  ledger.Update
	}
	persistFailedMsg struct {
		session *session.Session
		update  ledger.Update
		err     error
	}
	resetDoneMsg struct {
		session *session.Session
		updates []ledger.Update
		err     error
	}
	reloadedMsg struct {
		session *session.Session
		sub     session.Subscription
		err     error
	}
)
