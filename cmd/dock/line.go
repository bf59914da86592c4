package main

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/omochice/dock-chat/internal/chat"
	"github.com/omochice/dock-chat/internal/client"
	"github.com/omochice/dock-chat/internal/logging"
)

var lineCmd = &cobra.Command{
	Use:   "line",
	Short: "Line-oriented client reading commands from stdin",
	Long: `Line mode prints every inbound message and reads commands from stdin:

  /dm <user id> <text>     send a direct message
  /group <group id> <text> send a group message
  /open <user id>          open a direct conversation
  /close <user id>         close a direct conversation
  /to <user id>            send plain lines to this user
  /to group <group id>     send plain lines to this group
  /to                      clear the target
  /reconnect               replace the connection
  /quit                    exit

Any other line is sent to the /to target. Without one it goes to the most
recently active conversation at the moment the line is read, which changes
whenever a new message arrives.`,
	RunE: runLine,
}

func runLine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Client.Log.Level, cfg.Client.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	c, err := newSession(cmd, cfg.Client, log)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := c.Start(startCtx); err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signed in as %s. Type /quit to exit.\n", c.Self().DisplayName())

	p := &printer{out: out, names: c.Directory().Name, self: c.Self().ID}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range c.Updates() {
			p.print(c.Snapshot())
		}
	}()

	err = readCommands(ctx, c, cmd.InOrStdin(), out)
	_ = c.Close()
	wg.Wait()
	return err
}

// lineSession is the part of the client line mode drives.
type lineSession interface {
	Snapshot() chat.Snapshot
	SendDirect(ctx context.Context, toID int64, text string) error
	SendGroup(ctx context.Context, groupID int64, text string) error
	Send(ctx context.Context, key chat.Key, text string) error
	OpenConversation(key chat.Key) error
	CloseConversation(key chat.Key) error
	Reconnect(ctx context.Context) error
}

var _ lineSession = (*client.Client)(nil)

var errQuit = errors.New("quit")

func readCommands(ctx context.Context, s lineSession, in io.Reader, out io.Writer) error {
	st := &lineState{session: s}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		err := st.execute(ctx, strings.TrimSpace(scanner.Text()))
		switch {
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, chat.ErrEmptyText):
		case err != nil:
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// lineState carries the reply target between lines.
type lineState struct {
	session lineSession
	target  *chat.Key
}

func (st *lineState) execute(ctx context.Context, line string) error {
	s := st.session
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		if st.target != nil {
			return s.Send(ctx, *st.target, line)
		}
		surfaces := s.Snapshot().Surfaces
		if len(surfaces) == 0 {
			return errors.New("no open conversation; use /dm, /open or /to first")
		}
		return s.Send(ctx, surfaces[0], line)
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	switch name {
	case "to":
		return st.setTarget(strings.Fields(rest))
	case "quit", "exit":
		return errQuit
	case "reconnect":
		return s.Reconnect(ctx)
	case "dm", "group":
		idArg, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
		id, err := parseID(idArg)
		if err != nil {
			return err
		}
		if name == "dm" {
			return s.SendDirect(ctx, id, text)
		}
		return s.SendGroup(ctx, id, text)
	case "open", "close":
		id, err := parseID(strings.TrimSpace(rest))
		if err != nil {
			return err
		}
		if name == "open" {
			return s.OpenConversation(chat.DirectKey(id))
		}
		return s.CloseConversation(chat.DirectKey(id))
	default:
		return fmt.Errorf("unknown command /%s", name)
	}
}

func (st *lineState) setTarget(args []string) error {
	switch {
	case len(args) == 0:
		st.target = nil
		return nil
	case len(args) == 1:
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		k := chat.DirectKey(id)
		st.target = &k
		return nil
	case len(args) == 2 && args[0] == "group":
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		k := chat.GroupKey(id)
		st.target = &k
		return nil
	default:
		return errors.New("usage: /to [group] <id>")
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// printer writes messages it has not printed yet, oldest first.
type printer struct {
	out     io.Writer
	names   func(int64) string
	self    int64
	lastSeq uint64
	feed    int
	status  string
}

func (p *printer) print(snap chat.Snapshot) {
	if snap.Status != p.status {
		p.status = snap.Status
		line := "*** " + snap.Status
		if snap.ConnError != "" {
			line += ": " + snap.ConnError
		}
		fmt.Fprintln(p.out, line+" ***")
	}

	var fresh []chat.Message
	for _, msgs := range snap.Conversations {
		for _, m := range msgs {
			if m.Seq <= p.lastSeq {
				break
			}
			fresh = append(fresh, m)
		}
	}
	slices.SortFunc(fresh, func(a, b chat.Message) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	for _, m := range fresh {
		fmt.Fprintln(p.out, p.format(m))
		p.lastSeq = m.Seq
	}

	for i := len(snap.Feed) - 1 - p.feed; i >= 0; i-- {
		in := snap.Feed[i]
		text := in.Text
		if text == "" {
			text = in.Message
		}
		fmt.Fprintf(p.out, "*** [%s] %s ***\n", in.Type, text)
	}
	p.feed = len(snap.Feed)
}

func (p *printer) format(m chat.Message) string {
	from := p.names(m.FromID)
	if m.FromID == p.self {
		from = "you"
	}
	switch m.Kind {
	case chat.KindGroup:
		return fmt.Sprintf("[Group %d] %s: %s", m.GroupID, from, m.Text)
	default:
		peer := m.FromID
		if m.FromID == p.self {
			peer = m.ToID
		}
		return fmt.Sprintf("[%s] %s: %s", p.names(peer), from, m.Text)
	}
}
