package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SetPromptModel asks for the set number of a new session.
type SetPromptModel struct {
	input textinput.Model
	err   error
	width int
}

// NewSetPromptModel creates a new set number prompt.
func NewSetPromptModel() SetPromptModel {
	ti := textinput.New()
	ti.Placeholder = "6020-1"
	ti.Prompt = "Set number: "
	ti.CharLimit = 32
	ti.Width = 20
	ti.PromptStyle = PromptStyle.UnsetMarginBottom()
	ti.Focus()

	return SetPromptModel{input: ti}
}

// Init initializes the model.
func (m SetPromptModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tea.WindowSize())
}

// Update handles messages.
func (m SetPromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, func() tea.Msg { return QuitMsg{} }
		case "esc":
			return m, func() tea.Msg { return CancelPromptMsg{} }
		case "enter":
			setNum := strings.TrimSpace(m.input.Value())
			if setNum == "" {
				m.err = fmt.Errorf("enter a set number such as 6020-1")
				return m, nil
			}
			return m, func() tea.Msg { return NewSessionMsg{SetNum: setNum} }
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	m.err = nil
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the model.
func (m SetPromptModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("New Session"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render("enter: create  esc: back"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}
