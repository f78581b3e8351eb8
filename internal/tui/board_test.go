package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/brickhunt/internal/api"
	"github.com/h0rv/brickhunt/internal/domain"
	"github.com/h0rv/brickhunt/internal/ledger"
	"github.com/h0rv/brickhunt/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "0b5e2f6a-4d1c-4b8e-9a57-3c2d1e0f9a88"

// mockBackend clamps like the real store and records calls
type mockBackend struct {
	items     map[int64]*domain.LineItem
	updateErr error
	resetErr  error
	deltas    []int
	resets    int
}

func newMockBackend() *mockBackend {
	return &mockBackend{items: map[int64]*domain.LineItem{
		1: {ID: 1, PartNum: "3001", PartName: "Brick 2 x 4", ColorID: 0, ColorName: "Black", ColorRGB: "05131D", QtyNeeded: 4},
		2: {ID: 2, PartNum: "3001", PartName: "Brick 2 x 4", ColorID: 4, ColorName: "Red", ColorRGB: "C91A09", QtyNeeded: 2, QtyFound: 1},
		3: {ID: 3, PartNum: "3003", PartName: "Brick 2 x 2", ColorID: 4, ColorName: "Red", ColorRGB: "C91A09", QtyNeeded: 3},
		4: {ID: 4, PartNum: "3004", PartName: "Brick 1 x 2", ColorID: 4, ColorName: "Red", ColorRGB: "C91A09", QtyNeeded: 1, IsSpare: true},
	}}
}

func (b *mockBackend) LoadSession(ctx context.Context, token string) (domain.Session, []domain.LineItem, error) {
	if token != testToken {
		return domain.Session{}, nil, domain.ErrNotFound
	}
	items := make([]domain.LineItem, 0, len(b.items))
	for id := int64(1); id <= int64(len(b.items)); id++ {
		items = append(items, *b.items[id])
	}
	return domain.Session{
		Token: token,
		Set:   domain.SetMeta{SetNum: "6020-1", Name: "Magic Tower", Year: 1993},
	}, items, nil
}

func (b *mockBackend) UpdateFound(ctx context.Context, token string, itemID int64, delta int) (int, error) {
	b.deltas = append(b.deltas, delta)
	if b.updateErr != nil {
		return 0, b.updateErr
	}
	item := b.items[itemID]
	item.QtyFound = ledger.NextValue(item.QtyFound, delta, item.QtyNeeded)
	return item.QtyFound, nil
}

func (b *mockBackend) ResetAll(ctx context.Context, token string) error {
	b.resets++
	return b.resetErr
}

func (b *mockBackend) CreateSession(ctx context.Context, setNum string) (api.CreateSessionResponse, error) {
	if setNum == "0000-1" {
		return api.CreateSessionResponse{}, domain.ErrNotFound
	}
	return api.CreateSessionResponse{Token: testToken, ShareURL: b.ShareURL(testToken)}, nil
}

func (b *mockBackend) ShareURL(token string) string {
	return "http://localhost:8787/api/sessions/" + token
}

// mockSubscription is a subscription fed directly by tests
type mockSubscription struct {
	ch     chan domain.Notification
	closed bool
}

func newMockSubscription() *mockSubscription {
	return &mockSubscription{ch: make(chan domain.Notification, 8)}
}

func (s *mockSubscription) Notifications() <-chan domain.Notification { return s.ch }

func (s *mockSubscription) Close() error {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

type mockChannel struct {
	sub *mockSubscription
	err error
}

func (c *mockChannel) Subscribe(ctx context.Context, token string) (session.Subscription, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.sub, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBoard opens the mock session and builds a board on it
func newTestBoard(t *testing.T) (BoardModel, *mockBackend, *mockSubscription) {
	t.Helper()
	backend := newMockBackend()
	sess, err := session.Open(context.Background(), backend, testToken, discardLogger())
	require.NoError(t, err)

	sub := newMockSubscription()
	ch := &mockChannel{sub: sub}
	board := NewBoardModel(context.Background(), sess, sub, backend, ch, backend.ShareURL(testToken), discardLogger())
	board.width = 100
	board.height = 30
	return board, backend, sub
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends keys in order and returns the board and the last command
func press(board BoardModel, keys ...tea.KeyMsg) (BoardModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var model tea.Model
		model, cmd = board.Update(k)
		board = model.(BoardModel)
	}
	return board, cmd
}

func send(board BoardModel, msg tea.Msg) BoardModel {
	model, _ := board.Update(msg)
	return model.(BoardModel)
}

func rowIDs(board BoardModel) []string {
	ids := make([]string, len(board.rows))
	for i, r := range board.rows {
		ids[i] = r.id()
	}
	return ids
}

func foundOf(t *testing.T, board BoardModel, id int64) int {
	t.Helper()
	item, err := board.session.Ledger().Get(id)
	require.NoError(t, err)
	return item.QtyFound
}

func TestBoardModel_Rows(t *testing.T) {
	board, _, _ := newTestBoard(t)

	// Black before Red; within Red, 2 x 2 before 2 x 4; spares collapsed
	assert.Equal(t, []string{
		"group:color:0", "item:1",
		"group:color:4", "item:3", "item:2",
		"group:spares",
	}, rowIDs(board))
	assert.Equal(t, rowSpares, board.rows[5].kind)
}

func TestBoardModel_Navigation(t *testing.T) {
	board, _, _ := newTestBoard(t)
	assert.Equal(t, 0, board.cursor)

	board, _ = press(board, runes("j"), runes("j"))
	assert.Equal(t, 2, board.cursor)

	board, _ = press(board, runes("k"))
	assert.Equal(t, 1, board.cursor)

	board, _ = press(board, runes("G"))
	assert.Equal(t, 5, board.cursor)

	board, _ = press(board, runes("j"))
	assert.Equal(t, 5, board.cursor, "stays on the last row")

	board, _ = press(board, runes("g"))
	assert.Equal(t, 0, board.cursor)
}

func TestBoardModel_AdjustPersists(t *testing.T) {
	board, backend, _ := newTestBoard(t)

	board, cmd := press(board, runes("j"), runes("+"))
	assert.Equal(t, 1, foundOf(t, board, 1), "applied before the server answers")
	assert.Equal(t, 1, board.pending)
	require.NotNil(t, cmd)

	msg := cmd()
	require.IsType(t, persistedMsg{}, msg)
	assert.Equal(t, []int{1}, backend.deltas)

	board = send(board, msg)
	assert.Equal(t, 0, board.pending)
}

func TestBoardModel_AdjustClampedNoop(t *testing.T) {
	board, backend, _ := newTestBoard(t)

	// Item 1 has nothing found; decrementing changes nothing and sends nothing
	board, cmd := press(board, runes("j"), runes("-"))
	assert.Nil(t, cmd)
	assert.Equal(t, 0, foundOf(t, board, 1))
	assert.Empty(t, backend.deltas)
	assert.Equal(t, 0, board.pending)
}

func TestBoardModel_PersistFailureRollsBack(t *testing.T) {
	board, backend, _ := newTestBoard(t)
	backend.updateErr = errors.New("connection refused")

	board, cmd := press(board, runes("j"), runes("c"))
	assert.Equal(t, 4, foundOf(t, board, 1))
	require.NotNil(t, cmd)

	msg := cmd()
	require.IsType(t, persistFailedMsg{}, msg)

	board = send(board, msg)
	assert.Equal(t, 0, foundOf(t, board, 1))
	assert.Contains(t, board.errorToast, "connection refused")
	assert.Equal(t, 0, board.pending)
}

func TestBoardModel_RemoteWinsOverRollback(t *testing.T) {
	board, backend, sub := newTestBoard(t)
	backend.updateErr = errors.New("timeout")

	board, cmd := press(board, runes("j"), runes("+"))
	failed := cmd()

	// A collaborator's value arrives before the failure is handled
	board = send(board, remoteMsg{sub: sub, n: domain.Notification{ItemID: 1, QtyFound: 3}})
	board = send(board, failed)
	assert.Equal(t, 3, foundOf(t, board, 1))
}

func TestBoardModel_RemoteNotifications(t *testing.T) {
	board, _, sub := newTestBoard(t)

	model, cmd := board.Update(remoteMsg{sub: sub, n: domain.Notification{ItemID: 3, QtyFound: 3}})
	board = model.(BoardModel)
	assert.Equal(t, 3, foundOf(t, board, 3))
	assert.NotNil(t, cmd, "keeps listening")

	t.Run("unknown item dropped", func(t *testing.T) {
		b := send(board, remoteMsg{sub: sub, n: domain.Notification{ItemID: 99, QtyFound: 1}})
		assert.Len(t, b.rows, len(board.rows))
	})

	t.Run("stale subscription ignored", func(t *testing.T) {
		other := newMockSubscription()
		b := send(board, remoteMsg{sub: other, n: domain.Notification{ItemID: 3, QtyFound: 0}})
		assert.Equal(t, 3, foundOf(t, b, 3))
	})

	t.Run("closed subscription", func(t *testing.T) {
		b := send(board, subscriptionClosedMsg{sub: sub})
		assert.False(t, b.live)
		assert.NotEmpty(t, b.errorToast)
	})
}

func TestWaitForNotification(t *testing.T) {
	sub := newMockSubscription()
	sub.ch <- domain.Notification{ItemID: 2, QtyFound: 2}

	msg := waitForNotification(sub)()
	assert.Equal(t, remoteMsg{sub: sub, n: domain.Notification{ItemID: 2, QtyFound: 2}}, msg)

	require.NoError(t, sub.Close())
	assert.Equal(t, subscriptionClosedMsg{sub: sub}, waitForNotification(sub)())

	assert.Nil(t, waitForNotification(nil))
}

func TestBoardModel_Collapse(t *testing.T) {
	board, _, _ := newTestBoard(t)

	board, _ = press(board, tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, []string{
		"group:color:0",
		"group:color:4", "item:3", "item:2",
		"group:spares",
	}, rowIDs(board))

	// Expand the spare section
	board, _ = press(board, runes("G"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{
		"group:color:0",
		"group:color:4", "item:3", "item:2",
		"group:spares", "group:spares/color:4", "item:4",
	}, rowIDs(board))
	assert.Equal(t, 4, board.cursor, "cursor stays on the spare header")
}

func TestBoardModel_CursorFollowsItem(t *testing.T) {
	board, _, sub := newTestBoard(t)
	board.session.View.SetMode(domain.GroupByStatus)
	(&board).refresh()

	// Incomplete: 1 (Black), then 2 and 3 (Red, by part number)
	board, _ = press(board, runes("j"), runes("j"))
	require.Equal(t, "item:2", board.rows[board.cursor].id())

	// Completing item 2 moves it to the complete group; the cursor follows
	board = send(board, remoteMsg{sub: sub, n: domain.Notification{ItemID: 2, QtyFound: 2}})
	assert.Equal(t, "item:2", board.rows[board.cursor].id())
	assert.Equal(t, "status:complete", board.rows[board.cursor].key)
}

func TestBoardModel_MoveGroup(t *testing.T) {
	board, _, _ := newTestBoard(t)

	board, _ = press(board, runes("J"))
	require.Len(t, board.projection.Groups, 2)
	assert.Equal(t, "color:4", board.projection.Groups[0].Key)
	assert.Equal(t, "color:0", board.projection.Groups[1].Key)
	assert.Equal(t, "group:color:0", board.rows[board.cursor].id())

	board, _ = press(board, runes("K"))
	assert.Equal(t, "color:0", board.projection.Groups[0].Key)

	// Past the edge nothing moves
	board, _ = press(board, runes("K"))
	assert.Equal(t, "color:0", board.projection.Groups[0].Key)
}

func TestBoardModel_Narrow(t *testing.T) {
	board, _, _ := newTestBoard(t)

	t.Run("part in one color", func(t *testing.T) {
		b, _ := press(board, runes("j"), runes("j"), runes("j"), runes("a"))
		assert.Empty(t, b.session.View.Narrow())
		assert.Contains(t, b.errorToast, "3003")
	})

	board, _ = press(board, runes("j"), runes("a"))
	assert.Equal(t, "3001", board.session.View.Narrow())
	assert.Equal(t, []string{"group:color:0", "item:1", "group:color:4", "item:2"}, rowIDs(board))

	board, _ = press(board, runes("a"))
	assert.Empty(t, board.session.View.Narrow())
	assert.Len(t, board.rows, 6)
}

func TestBoardModel_CycleModeAndFilter(t *testing.T) {
	board, _, _ := newTestBoard(t)

	board, _ = press(board, runes("s"))
	assert.Equal(t, domain.GroupByCategory, board.session.View.Mode())

	board, _ = press(board, runes("f"))
	assert.Equal(t, domain.FilterInProgress, board.session.View.Filter())
	// Only item 2 is partly found
	assert.Equal(t, []string{"group:category:other", "item:2"}, rowIDs(board))
}

func TestBoardModel_ResetAll(t *testing.T) {
	t.Run("declined", func(t *testing.T) {
		board, backend, _ := newTestBoard(t)
		board, _ = press(board, runes("R"))
		assert.True(t, board.confirmReset)

		board, cmd := press(board, runes("n"))
		assert.Nil(t, cmd)
		assert.False(t, board.confirmReset)
		assert.Equal(t, 1, foundOf(t, board, 2))
		assert.Equal(t, 0, backend.resets)
	})

	t.Run("confirmed", func(t *testing.T) {
		board, backend, _ := newTestBoard(t)
		board, cmd := press(board, runes("R"), runes("y"))
		assert.Equal(t, 0, foundOf(t, board, 2))
		require.NotNil(t, cmd)

		board = send(board, cmd())
		assert.Equal(t, 1, backend.resets)
		assert.Equal(t, 0, foundOf(t, board, 2))
		assert.Empty(t, board.errorToast)
	})

	t.Run("server failure restores counts", func(t *testing.T) {
		board, backend, _ := newTestBoard(t)
		backend.resetErr = errors.New("boom")
		board, cmd := press(board, runes("R"), runes("y"))

		board = send(board, cmd())
		assert.Equal(t, 1, foundOf(t, board, 2))
		assert.Contains(t, board.errorToast, "Reset failed")
	})
}

func TestBoardModel_Detail(t *testing.T) {
	board, backend, _ := newTestBoard(t)

	board, _ = press(board, runes("j"), tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, board.detail)
	assert.Equal(t, int64(1), board.detail.itemID)
	assert.Contains(t, board.View(), "Brick 2 x 4")

	board, cmd := press(board, runes("+"))
	require.NotNil(t, cmd)
	assert.Equal(t, 1, foundOf(t, board, 1))
	board = send(board, cmd())
	assert.Equal(t, []int{1}, backend.deltas)

	board, _ = press(board, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, board.detail)
}

func TestBoardModel_Reload(t *testing.T) {
	board, backend, sub := newTestBoard(t)
	board.session.View.CycleFilter()

	// Another client changed the server while this one was offline
	backend.items[3].QtyFound = 2
	board = send(board, subscriptionClosedMsg{sub: sub})

	board, cmd := press(board, runes("r"))
	require.NotNil(t, cmd)
	assert.True(t, board.reloading)

	board = send(board, cmd())
	assert.True(t, board.live)
	assert.False(t, board.reloading)
	assert.Equal(t, 2, foundOf(t, board, 3))
	assert.Equal(t, domain.FilterInProgress, board.session.View.Filter(), "view state kept")
}

func TestBoardModel_StaleSessionMessagesIgnored(t *testing.T) {
	board, _, _ := newTestBoard(t)
	other, _, _ := newTestBoard(t)

	board = send(board, persistFailedMsg{session: other.session, update: ledger.Update{ItemID: 2, Prev: 0, Next: 1}})
	assert.Equal(t, 1, foundOf(t, board, 2))
	assert.Empty(t, board.errorToast)
}

func TestBoardModel_Quit(t *testing.T) {
	board, _, _ := newTestBoard(t)
	_, cmd := press(board, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, QuitMsg{}, cmd())
}

func TestBoardModel_View(t *testing.T) {
	board, _, _ := newTestBoard(t)

	view := board.View()
	assert.Contains(t, view, "6020-1")
	assert.Contains(t, view, "Magic Tower")
	assert.Contains(t, view, "Black")
	assert.Contains(t, view, "1/9 found")

	board, _ = press(board, runes("?"))
	assert.True(t, board.showHelp)
	require.NotPanics(t, func() { board.View() })

	t.Run("before any window size", func(t *testing.T) {
		b, _, _ := newTestBoard(t)
		b.width, b.height = 0, 0
		require.NotPanics(t, func() { b.View() })
	})

	t.Run("empty filter", func(t *testing.T) {
		b, _, _ := newTestBoard(t)
		b.session.View.SetFilter(domain.FilterComplete)
		(&b).refresh()
		assert.Empty(t, b.rows)
		assert.Contains(t, b.View(), "Nothing matches")
	})
}

func TestBoardModel_WindowResize(t *testing.T) {
	board, _, _ := newTestBoard(t)

	board = send(board, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, board.width)
	assert.Equal(t, 40, board.height)
}

func TestAdjustScroll(t *testing.T) {
	board, _, _ := newTestBoard(t)
	board.height = headerLines + footerLines + 3

	board, _ = press(board, runes("G"))
	assert.Equal(t, 5, board.cursor)
	assert.Equal(t, 3, board.offset)

	board, _ = press(board, runes("g"))
	assert.Equal(t, 0, board.offset)
}
