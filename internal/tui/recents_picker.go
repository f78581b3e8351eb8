package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/ledger"
)

// sessionItem wraps a domain.SessionSummary for use in bubbles/list.
type sessionItem struct {
	summary domain.SessionSummary
}

func (i sessionItem) FilterValue() string {
	return i.summary.SetNum + " " + i.summary.SetName
}

func (i sessionItem) Title() string {
	return fmt.Sprintf("%s: %s", i.summary.SetNum, i.summary.SetName)
}

func (i sessionItem) Description() string {
	percent := ledger.Progress(i.summary.Needed, i.summary.Found)
	return fmt.Sprintf("%d/%d found (%d%%), opened %s",
		i.summary.Found, i.summary.Needed, percent, formatTimeAgo(i.summary.LastOpened))
}

// sessionDelegate is a custom item delegate for session items.
type sessionDelegate struct{}

func (d sessionDelegate) Height() int                             { return 2 }
func (d sessionDelegate) Spacing() int                            { return 1 }
func (d sessionDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(sessionItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%d. %s", index+1, i.Title())
	desc := i.Description()

	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+str))
		fmt.Fprint(w, "\n  "+NormalItemStyle.Render(desc))
	} else {
		fmt.Fprint(w, NormalItemStyle.Render("  "+str))
		fmt.Fprint(w, "\n  "+lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(desc))
	}
}

// RecentsPickerModel lists recently opened sessions.
type RecentsPickerModel struct {
	list list.Model
	err  error
}

// NewRecentsPickerModel creates a picker over the given summaries.
func NewRecentsPickerModel(summaries []domain.SessionSummary) RecentsPickerModel {
	items := make([]list.Item, len(summaries))
	for i, s := range summaries {
		items[i] = sessionItem{summary: s}
	}

	l := list.New(items, sessionDelegate{}, 80, 20)
	l.Title = "Recent Sessions"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("session", "sessions")
	l.Styles.Title = TitleStyle
	l.Styles.HelpStyle = HelpStyle
	l.AdditionalShortHelpKeys = pickerHelpKeys
	l.AdditionalFullHelpKeys = pickerHelpKeys

	return RecentsPickerModel{list: l}
}

// Init initializes the model.
func (m RecentsPickerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages and updates the model state.
func (m RecentsPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width - 2)
		m.list.SetHeight(msg.Height - 2)
		return m, nil

	case tea.KeyMsg:
		if m.list.SettingFilter() {
			break
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, func() tea.Msg { return QuitMsg{} }
		case "n":
			return m, func() tea.Msg { return ShowSetPromptMsg{} }
		case "d":
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				m.list.RemoveItem(m.list.Index())
				return m, func() tea.Msg { return forgetSessionMsg{token: item.summary.Token} }
			}
			return m, nil
		case "enter":
			if item, ok := m.list.SelectedItem().(sessionItem); ok {
				return m, func() tea.Msg { return SessionSelectedMsg{Summary: item.summary} }
			}
			return m, nil
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the model.
func (m RecentsPickerModel) View() string {
	view := m.list.View()
	if len(m.list.Items()) == 0 {
		view += "\n" + HelpStyle.Render("No recent sessions. Press n to start one.")
	}
	if m.err != nil {
		view += ErrorStyle.Render(fmt.Sprintf("\nError: %v", m.err))
	}
	return view
}

// formatTimeAgo renders a timestamp relative to now
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2006-01-02")
	}
}

func pickerHelpKeys() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new session")),
		key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "forget")),
	}
}

// forgetSessionMsg asks the app to drop a session from the recents cache.
type forgetSessionMsg struct {
	token string
}
