package main

import (
	"bufio"
	"code-mentor/domain/chat"
	"code-mentor/execution"
	"code-mentor/services"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /help                 raise a help request
  /run <file> [lang]    run a source file through the mock engine
  /notifications        list notifications (facilitator)
  /read-all             mark every notification as read
  /quit                 leave the room
Anything else is sent as a message.`

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a room from the terminal",
		Long:  "Join a room from the terminal.\n\n" + chatHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roleFlag, _ := cmd.Flags().GetString("role")
			room, _ := cmd.Flags().GetString("room")
			role, err := services.ParseRole(roleFlag)
			if err != nil {
				return err
			}
			config, err := loadServerConfig()
			if err != nil {
				return err
			}
			client, err := loadClientConfig()
			if err != nil {
				return err
			}
			if client.User == "" {
				client.User = uuid.NewString()
			}

			log := logs.GetLoggerFromString(config.LogLevel)
			b, err := openBackend(cmd.Context(), config, log)
			if err != nil {
				return err
			}
			defer b.close()
			moderator, err := newModerator(config, log)
			if err != nil {
				return err
			}

			term := newTerminal(cmd.OutOrStdout(), client.Colours)
			session, err := services.OpenSession(cmd.Context(), services.SessionDeps{
				Log:                  log,
				Channel:              b.channel,
				Engine:               execution.NewEngine(log, execution.WithDelay(config.ExecutionDelay)),
				Moderator:            moderator,
				NotificationInterval: config.NotificationInterval,
				SeedNotifications:    config.SeedNotifications,
			}, services.SessionOptions{Role: role, UserID: client.User, Room: chat.RoomID(room), OnChange: term.onChange})
			if err != nil {
				return err
			}
			defer session.Close()
			term.attach(session)

			return term.loop(cmd.Context(), cmd.InOrStdin())
		},
	}
	cmd.Flags().String("role", string(services.RoleStudent), "Role: student or facilitator")
	cmd.Flags().String("room", "general", "Room to join")
	return cmd
}

// terminal renders a session on a text stream.
type terminal struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
	session *services.Session
	printed int
}

func newTerminal(out io.Writer, colours bool) *terminal {
	return &terminal{out: out, colours: colours}
}

// attach replays the history delivered before the session was known.
func (t *terminal) attach(session *services.Session) {
	t.mu.Lock()
	t.session = session
	t.mu.Unlock()
	t.onChange(services.ChangeMessages)
}

func (t *terminal) onChange(kind services.ChangeKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return
	}
	switch kind {
	case services.ChangeMessages:
		messages := t.session.Messages()
		for _, m := range messages[min(t.printed, len(messages)):] {
			t.printMessage(m)
		}
		t.printed = len(messages)
	case services.ChangeError:
		if err := t.session.LastError(); err != nil {
			t.println(color.Red, "! "+err.Error())
		}
	case services.ChangeOutput:
		t.println(color.Cyan, t.session.Output())
	case services.ChangeNotifications:
		t.println(color.Yellow, fmt.Sprintf("* %d unread notifications", t.session.UnreadCount()))
	}
}

func (t *terminal) printMessage(m chat.Message) {
	line := fmt.Sprintf("[%s] %s: %s", m.SentAt.Local().Format("15:04:05"), m.Sender, m.Content)
	switch m.Kind {
	case chat.KindHelpRequest:
		t.println(color.Red, line)
	case chat.KindFacilitator:
		t.println(color.Green, line)
	case chat.KindSystem:
		t.println(color.Gray, line)
	default:
		t.println(color.White, line)
	}
}

func (t *terminal) println(c color.Color, line string) {
	if t.colours {
		line = c.Render(line)
	}
	fmt.Fprintln(t.out, line)
}

func (t *terminal) notice(c color.Color, line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.println(c, line)
}

func (t *terminal) loop(ctx context.Context, in io.Reader) error {
	t.notice(color.Gray, fmt.Sprintf("Joined %s as %s. Type /quit to leave.", t.session.Room(), t.session.Role()))
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quit := t.handle(ctx, line); quit {
			return nil
		}
	}
	return scanner.Err()
}

func (t *terminal) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/help":
		if _, err := t.session.RequestHelp(ctx); err != nil {
			t.notice(color.Red, "! "+err.Error())
		}
	case "/run":
		if len(fields) < 2 {
			t.notice(color.Red, "! usage: /run <file> [lang]")
			return false
		}
		lang := ""
		if len(fields) > 2 {
			lang = fields[2]
		}
		req, err := execution.LoadSource(fields[1], execution.Language(lang))
		if err != nil {
			t.notice(color.Red, "! "+err.Error())
			return false
		}
		t.notice(color.Gray, "Running...")
		if _, err := t.session.RunCode(ctx, req.Source, req.Language); err != nil {
			t.notice(color.Red, "! "+err.Error())
		}
	case "/notifications":
		for _, n := range t.session.Notifications() {
			t.notice(color.Yellow, fmt.Sprintf("%s [%s] %s - %s (%s)", n.At.Local().Format("15:04:05"), n.Priority, n.Title, n.Message, n.Student))
		}
	case "/read-all":
		t.notice(color.Gray, fmt.Sprintf("%d notifications marked as read", t.session.MarkAllRead()))
	default:
		if _, err := t.session.Send(ctx, line); err != nil {
			t.notice(color.Red, "! "+err.Error())
		}
	}
	return false
}
