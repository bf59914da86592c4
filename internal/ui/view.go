package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/omochice/dock-chat/internal/chat"
)

const (
	contactsWidth = 24
	maxMessages   = 20
	maxFeed       = 3
)

// Styles holds the lipgloss styles of the dock.
type Styles struct {
	Title     lipgloss.Style
	Dock      lipgloss.Style
	Selected  lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Sender    lipgloss.Style
	Own       lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Connected lipgloss.Style
	Offline   lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true),
		Dock:      lipgloss.NewStyle().Width(contactsWidth).Border(lipgloss.RoundedBorder()).Padding(0, 1),
		Selected:  lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		Tab:       lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245")),
		ActiveTab: lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true),
		Sender:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		Own:       lipgloss.NewStyle().Foreground(lipgloss.Color("78")).Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Connected: lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		Offline:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	}
}

// View renders the dock.
func (m Model) View() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.viewDock(), " ", m.viewSurfaces())
	return lipgloss.JoinVertical(lipgloss.Left, m.viewStatus(), body, m.viewFeed(), m.viewHelp())
}

func (m Model) viewStatus() string {
	status := m.styles.Offline.Render("● " + m.snap.Status)
	if m.snap.Status == "connected" {
		status = m.styles.Connected.Render("● " + m.snap.Status)
	}
	line := m.styles.Title.Render(m.self.DisplayName()) + "  " + status

	var problems []string
	if m.snap.ConnError != "" {
		problems = append(problems, m.snap.ConnError)
	}
	if m.snap.LastError != "" {
		problems = append(problems, "server: "+m.snap.LastError)
	}
	if m.notice != "" {
		problems = append(problems, m.notice)
	}
	if len(problems) > 0 {
		line += "  " + m.styles.Error.Render(strings.Join(problems, " | "))
	}
	return line
}

func (m Model) viewDock() string {
	if m.collapsed {
		return m.styles.Muted.Render(fmt.Sprintf("▸ %d", len(m.contacts)))
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Contacts"))
	b.WriteString("\n")
	if len(m.contacts) == 0 {
		b.WriteString(m.styles.Muted.Render("no contacts"))
	}
	for i, c := range m.contacts {
		name := c.DisplayName()
		if m.focus == focusContacts && i == m.cursor {
			b.WriteString(m.styles.Selected.Render("> " + name))
		} else {
			b.WriteString("  " + name)
		}
		if i < len(m.contacts)-1 {
			b.WriteString("\n")
		}
	}
	return m.styles.Dock.Render(b.String())
}

func (m Model) viewSurfaces() string {
	if len(m.snap.Surfaces) == 0 {
		return m.styles.Muted.Render("No open conversations. Press tab to pick a contact.")
	}

	tabs := make([]string, len(m.snap.Surfaces))
	for i, k := range m.snap.Surfaces {
		title := m.title(k)
		if i == m.active {
			tabs[i] = m.styles.ActiveTab.Render(title)
		} else {
			tabs[i] = m.styles.Tab.Render(title)
		}
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n\n")

	k, _ := m.activeKey()
	msgs := m.snap.Conversation(k)
	if len(msgs) == 0 {
		b.WriteString(m.styles.Muted.Render("No messages yet."))
	}
	for i, msg := range msgs {
		if i == maxMessages {
			b.WriteString(m.styles.Muted.Render(fmt.Sprintf("… %s older", humanize.Comma(int64(len(msgs)-maxMessages)))))
			break
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}

func (m Model) renderMessage(msg chat.Message) string {
	sender := m.styles.Sender.Render(m.dir.Name(msg.FromID))
	if msg.FromID == m.snap.SelfID {
		sender = m.styles.Own.Render("you")
	}
	line := sender + " " + msg.Text
	if when := relativeTime(msg.CreatedAt); when != "" {
		line += " " + m.styles.Muted.Render(when)
	}
	return line
}

func (m Model) viewFeed() string {
	if len(m.snap.Feed) == 0 {
		return ""
	}
	lines := make([]string, 0, maxFeed)
	for i, in := range m.snap.Feed {
		if i == maxFeed {
			break
		}
		text := in.Text
		if text == "" {
			text = in.Message
		}
		lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("[%s] %s", in.Type, text)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewHelp() string {
	parts := make([]string, 0, 6)
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.styles.Muted.Render(strings.Join(parts, " • "))
}

// title names the surface for k.
func (m Model) title(k chat.Key) string {
	if k.Kind == chat.KindGroup {
		return fmt.Sprintf("Group %d", k.ID)
	}
	return m.dir.Name(k.ID)
}

func relativeTime(createdAt string) string {
	if createdAt == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return ""
	}
	return humanize.Time(t)
}
