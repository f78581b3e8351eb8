package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/brickhunt/internal/api"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/recents"
	"github.com/h0rv/brickhunt/internal/session"
)

// Backend is the server as seen by the TUI.
type Backend interface {
	session.Gateway
	CreateSession(ctx context.Context, setNum string) (api.CreateSessionResponse, error)
	ShareURL(token string) string
}

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenLoading AppScreen = iota
	ScreenPicker
	ScreenPrompt
	ScreenBoard
)

// AppModel is the root Bubble Tea model that manages screen transitions.
// It orchestrates the flow from recent sessions or a new set number to the checklist.
type AppModel struct {
	// Dependencies
	ctx     context.Context
	backend Backend
	channel session.Channel
	cache   *recents.Cache
	logger  *slog.Logger

	// CLI arguments (pre-filled values)
	tokenArg  string
	setNumArg string

	// Current state
	currentScreen AppScreen
	currentModel  tea.Model
	previous      AppScreen // Screen to return to when loading fails
	spinner       spinner.Model
	loadingMsg    string
	err           error

	// Cached models to preserve state across screen transitions
	boardModel *BoardModel
}

// NewAppModel creates a new app model. A non-empty token opens that session
// directly; a non-empty set number creates a new one. Otherwise the recent
// sessions are listed.
func NewAppModel(ctx context.Context, backend Backend, channel session.Channel, cache *recents.Cache, logger *slog.Logger, token, setNum string) AppModel {
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	loadingMsg := "Loading..."
	switch {
	case token != "":
		loadingMsg = "Opening session..."
	case setNum != "":
		loadingMsg = fmt.Sprintf("Fetching parts of %s...", setNum)
	}

	return AppModel{
		ctx:           ctx,
		backend:       backend,
		channel:       channel,
		cache:         cache,
		logger:        logger,
		tokenArg:      token,
		setNumArg:     setNum,
		currentScreen: ScreenLoading,
		previous:      ScreenPicker,
		spinner:       sp,
		loadingMsg:    loadingMsg,
	}
}

// Init initializes the app model.
func (m AppModel) Init() tea.Cmd {
	switch {
	case m.tokenArg != "":
		return tea.Batch(m.spinner.Tick, m.openSession(m.tokenArg, false))
	case m.setNumArg != "":
		return tea.Batch(m.spinner.Tick, m.createSession(m.setNumArg))
	default:
		return func() tea.Msg { return showPickerMsg{} }
	}
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global quit handler; the board closes its session first
		if msg.String() == "ctrl+c" && m.currentScreen != ScreenBoard {
			return m, tea.Quit
		}
		if m.currentScreen == ScreenLoading && m.err != nil && msg.String() == "esc" {
			m.err = nil
			return m.showPicker()
		}

	case QuitMsg:
		m.leaveBoard()
		return m, tea.Quit

	case showPickerMsg:
		return m.showPicker()

	case ShowSetPromptMsg:
		m.currentScreen = ScreenPrompt
		prompt := NewSetPromptModel()
		m.currentModel = prompt
		return m, prompt.Init()

	case CancelPromptMsg:
		return m.showPicker()

	case forgetSessionMsg:
		if m.cache != nil {
			m.cache.Remove(msg.token)
		}
		return m, nil

	case SessionSelectedMsg:
		m.previous = ScreenPicker
		m.loadingMsg = fmt.Sprintf("Opening %s %s...", msg.Summary.SetNum, msg.Summary.SetName)
		m.currentScreen = ScreenLoading
		m.currentModel = nil
		return m, tea.Batch(m.spinner.Tick, m.openSession(msg.Summary.Token, true))

	case NewSessionMsg:
		m.previous = ScreenPrompt
		m.loadingMsg = fmt.Sprintf("Fetching parts of %s...", msg.SetNum)
		m.currentScreen = ScreenLoading
		m.currentModel = nil
		return m, tea.Batch(m.spinner.Tick, m.createSession(msg.SetNum))

	case sessionCreatedMsg:
		m.loadingMsg = fmt.Sprintf("Opening %s...", msg.resp.Session.Set.Name)
		return m, m.openSession(msg.resp.Token, false)

	case sessionOpenedMsg:
		m.err = nil
		if m.cache != nil {
			m.cache.Upsert(msg.session.Summary())
		}
		m.currentScreen = ScreenBoard
		board := NewBoardModel(m.ctx, msg.session, msg.sub, m.backend, m.channel, msg.shareURL, m.logger)
		if msg.subErr != nil {
			board.errorToast = fmt.Sprintf("Live updates unavailable: %v", msg.subErr)
		}
		m.boardModel = &board
		m.currentModel = board
		return m, board.Init()

	case staleSessionMsg:
		// The server no longer knows this session
		if m.cache != nil {
			m.cache.Remove(msg.token)
		}
		m.err = fmt.Errorf("session no longer exists on the server")
		return m.fail()

	case ErrorMsg:
		m.err = msg.Err
		return m.fail()

	case spinner.TickMsg:
		if m.currentScreen == ScreenLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	// Delegate to current screen's model
	if m.currentModel != nil {
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		// Keep boardModel in sync when on board screen
		if m.currentScreen == ScreenBoard {
			if bm, ok := m.currentModel.(BoardModel); ok {
				m.boardModel = &bm
			}
		}
		return m, cmd
	}

	return m, nil
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.currentModel != nil {
		return m.currentModel.View()
	}

	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" +
			HelpStyle.Render("esc: back  ctrl+c: quit")
	}

	return m.spinner.View() + " " + m.loadingMsg + "\n\nPress Ctrl+C to quit"
}

// showPicker lists the recent sessions, or prompts for a set when there are none.
func (m AppModel) showPicker() (tea.Model, tea.Cmd) {
	summaries := m.recentSessions()
	if len(summaries) == 0 {
		m.currentScreen = ScreenPrompt
		prompt := NewSetPromptModel()
		m.currentModel = prompt
		return m, prompt.Init()
	}

	m.currentScreen = ScreenPicker
	picker := NewRecentsPickerModel(summaries)
	m.currentModel = picker
	return m, picker.Init()
}

// fail returns to the screen that started the failed load and shows the error there.
func (m AppModel) fail() (tea.Model, tea.Cmd) {
	err := m.err
	if m.tokenArg != "" || m.setNumArg != "" {
		// Opened from the command line: nothing to go back to yet
		m.tokenArg, m.setNumArg = "", ""
		m.currentScreen = ScreenLoading
		m.currentModel = nil
		return m, nil
	}

	var model tea.Model
	var cmd tea.Cmd
	switch m.previous {
	case ScreenPrompt:
		m.currentScreen = ScreenPrompt
		prompt := NewSetPromptModel()
		model, cmd = prompt.Update(ErrorMsg{Err: err})
		cmd = tea.Batch(prompt.Init(), cmd)
	default:
		next, initCmd := m.showPicker()
		m = next.(AppModel)
		model, cmd = m.currentModel.Update(ErrorMsg{Err: err})
		cmd = tea.Batch(initCmd, cmd)
	}
	m.err = nil
	m.currentModel = model
	return m, cmd
}

// leaveBoard closes the live subscription and records the session in the recents cache.
func (m AppModel) leaveBoard() {
	if m.boardModel == nil {
		return
	}
	if sub := m.boardModel.Subscription(); sub != nil {
		_ = sub.Close()
	}
	if m.cache != nil {
		m.cache.Upsert(m.boardModel.Session().Summary())
	}
}

func (m AppModel) recentSessions() []domain.SessionSummary {
	if m.cache == nil {
		return nil
	}
	return m.cache.List()
}

// createSession creates a command that asks the server for a new session.
func (m AppModel) createSession(setNum string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.backend.CreateSession(m.ctx, setNum)
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to create session for %s: %w", setNum, err)}
		}
		return sessionCreatedMsg{resp: resp}
	}
}

// openSession creates a command that loads a session and subscribes to it.
// fromRecents marks tokens read from the cache, which are dropped when the
// server no longer knows them.
func (m AppModel) openSession(token string, fromRecents bool) tea.Cmd {
	return func() tea.Msg {
		sess, err := session.Open(m.ctx, m.backend, token, m.logger)
		if err != nil {
			if fromRecents && IsNotFound(err) {
				return staleSessionMsg{token: token}
			}
			return ErrorMsg{Err: err}
		}

		msg := sessionOpenedMsg{session: sess, shareURL: m.backend.ShareURL(token)}
		sub, err := sess.Subscribe(m.ctx, m.channel)
		if err != nil {
			m.logger.Warn("opening session without live updates", "err", err)
			msg.subErr = err
			return msg
		}
		msg.sub = sub
		return msg
	}
}

// Custom messages for app transitions.
type (
	showPickerMsg struct{}

	sessionCreatedMsg struct {
		resp api.CreateSessionResponse
	}

	sessionOpenedMsg struct {
		session  *session.Session
		sub      session.Subscription
		subErr   error
		shareURL string
	}

	staleSessionMsg struct {
		token string
	}
)
