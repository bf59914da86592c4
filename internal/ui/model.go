// Package ui is the terminal front end: a contacts dock next to a row of
// conversation surfaces, re-rendered whenever the client publishes a snapshot.
package ui

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/omochice/dock-chat/internal/chat"
	"github.com/omochice/dock-chat/internal/directory"
	"github.com/omochice/dock-chat/internal/transport"
)

const sendTimeout = 5 * time.Second

// Session is the messaging client as seen by the UI.
type Session interface {
	Snapshot() chat.Snapshot
	Updates() <-chan struct{}
	Send(ctx context.Context, key chat.Key, text string) error
	OpenConversation(key chat.Key) error
	CloseConversation(key chat.Key) error
	Reconnect(ctx context.Context) error
}

// Directory resolves contact names.
type Directory interface {
	List() []directory.Counterpart
	Name(id int64) string
}

type focus int

const (
	focusSurfaces focus = iota
	focusContacts
)

type (
	// updateMsg reports a new snapshot.
	updateMsg struct{}
	// closedMsg reports the end of the session.
	closedMsg struct{}
	// resultMsg carries the outcome of a background action.
	resultMsg struct {
		action string
		text   string
		err    error
	}
)

// Model is the bubbletea model of the dock.
type Model struct {
	session Session
	dir     Directory
	self    directory.Counterpart
	keys    KeyMap
	styles  Styles

	snap      chat.Snapshot
	contacts  []directory.Counterpart
	cursor    int
	active    int
	focus     focus
	collapsed bool
	notice    string
	// focusKey is the surface to select once the next snapshot contains it.
	focusKey *chat.Key

	input  textinput.Model
	width  int
	height int
}

// New creates the dock for session.
func New(session Session, dir Directory, self directory.Counterpart) Model {
	in := textinput.New()
	in.Placeholder = "Write a message"
	in.CharLimit = 2000
	in.Focus()

	return Model{
		session: session,
		dir:     dir,
		self:    self,
		keys:    DefaultKeyMap(),
		styles:  DefaultStyles(),
		snap:    session.Snapshot(),
		input:   in,
	}
}

// Init starts listening for snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.session.Updates()))
}

// waitForUpdate blocks until the client signals a new snapshot.
func waitForUpdate(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return closedMsg{}
		}
		return updateMsg{}
	}
}

// Update handles input and session events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, msg.Width-contactsWidth-8)
		return m, nil

	case updateMsg:
		m.refresh()
		return m, waitForUpdate(m.session.Updates())

	case closedMsg:
		return m, tea.Quit

	case resultMsg:
		switch {
		case msg.err == nil:
			m.notice = ""
			if msg.action == "send" && m.input.Value() == msg.text {
				m.input.Reset()
			}
			if msg.action == "open" {
				m.refresh()
			}
		case errors.Is(msg.err, chat.ErrEmptyText):
		case errors.Is(msg.err, transport.ErrNotOpen):
			// the status line already reports the connection state
		default:
			m.notice = msg.action + ": " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Reconnect):
		m.notice = "reconnecting"
		return m, m.run("reconnect", func(ctx context.Context) error {
			return m.session.Reconnect(ctx)
		})

	case key.Matches(msg, m.keys.ToggleDock):
		m.collapsed = !m.collapsed
		if m.collapsed {
			m.focus = focusSurfaces
		}
		return m, nil

	case key.Matches(msg, m.keys.SwitchFocus):
		if m.focus == focusContacts || m.collapsed {
			m.focus = focusSurfaces
		} else {
			m.focus = focusContacts
		}
		return m, nil

	case key.Matches(msg, m.keys.CloseSurface):
		k, ok := m.activeKey()
		if !ok {
			return m, nil
		}
		return m, m.run("close", func(context.Context) error {
			return m.session.CloseConversation(k)
		})

	case key.Matches(msg, m.keys.NextSurface):
		if n := len(m.snap.Surfaces); n > 0 {
			m.active = (m.active + 1) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevSurface):
		if n := len(m.snap.Surfaces); n > 0 {
			m.active = (m.active + n - 1) % n
		}
		return m, nil
	}

	if m.focus == focusContacts {
		return m.handleContactsKey(msg)
	}

	if key.Matches(msg, m.keys.Enter) {
		k, ok := m.activeKey()
		text := m.input.Value()
		if !ok || text == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			return resultMsg{action: "send", text: text, err: m.session.Send(ctx, k, text)}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleContactsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.contacts)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Enter):
		if m.cursor >= len(m.contacts) {
			return m, nil
		}
		k := chat.DirectKey(m.contacts[m.cursor].ID)
		m.focus = focusSurfaces
		m.focusKey = &k
		return m, m.run("open", func(context.Context) error {
			return m.session.OpenConversation(k)
		})
	}
	return m, nil
}

// run executes fn off the UI goroutine and reports its outcome.
func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return resultMsg{action: action, err: fn(ctx)}
	}
}

// refresh pulls the latest snapshot and contacts. A surface the user just
// opened takes the selection; otherwise the selected key is kept.
func (m *Model) refresh() {
	prev, prevOK := m.activeKey()

	m.snap = m.session.Snapshot()
	m.contacts = m.dir.List()

	m.active = 0
	if m.focusKey != nil {
		if i := slices.Index(m.snap.Surfaces, *m.focusKey); i >= 0 {
			m.active = i
			m.focusKey = nil
			prevOK = false
		}
	}
	if prevOK {
		if i := slices.Index(m.snap.Surfaces, prev); i >= 0 {
			m.active = i
		}
	}
	if m.cursor >= len(m.contacts) {
		m.cursor = max(0, len(m.contacts)-1)
	}
}

func (m Model) activeKey() (chat.Key, bool) {
	if m.active < 0 || m.active >= len(m.snap.Surfaces) {
		return chat.Key{}, false
	}
	return m.snap.Surfaces[m.active], true
}
