package transport

import (
	"code-mentor/domain/chat"
	"code-mentor/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const writeTimeout = 5 * time.Second

// WSHandler turns one websocket connection into one dashboard session.
type WSHandler struct {
	log            *slog.Logger
	deps           services.SessionDeps
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
}

func NewWSHandler(log *slog.Logger, deps services.SessionDeps, allowedOrigins []string) *WSHandler {
	h := &WSHandler{
		log:            log,
		deps:           deps,
		allowedOrigins: lo.SliceToMap(allowedOrigins, func(o string) (string, bool) { return o, true }),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return h.allowedOrigins[origin]
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	role, err := services.ParseRole(query.Get("role"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	room := chat.RoomID(query.Get("room"))
	if room == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}
	userID := query.Get("user")
	if userID == "" {
		userID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	box := newMailbox()
	session, err := services.OpenSession(ctx, h.deps, services.SessionOptions{
		Role:     role,
		UserID:   userID,
		Room:     room,
		OnChange: box.mark,
	})
	if err != nil {
		h.log.Warn("Session refused", "room", room, "error", err)
		_ = conn.WriteJSON(Outbound{Type: FrameError, Error: err.Error()})
		return
	}

	c := &connection{conn: conn, session: session, box: box, log: h.log}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
	}()

	c.readLoop(ctx)

	cancel()
	_ = session.Close()
	c.runs.Wait()
	<-writerDone
}

// connection pairs a session with its socket.
// Only writeLoop writes to conn once the session is open.
type connection struct {
	conn    *websocket.Conn
	session *services.Session
	box     *mailbox
	log     *slog.Logger
	runs    sync.WaitGroup
}

func (c *connection) readLoop(ctx context.Context) {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("WebSocket closed unexpectedly", "error", err)
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(payload, &in); err != nil {
			c.box.fail("invalid frame: expected JSON with a type field")
			continue
		}
		c.handle(ctx, in)
	}
}

func (c *connection) handle(ctx context.Context, in Inbound) {
	switch in.Type {
	case FrameSend:
		c.ack(c.session.Send(ctx, in.Content))
	case FrameHelp:
		c.ack(c.session.RequestHelp(ctx))
	case FrameRun:
		c.runs.Add(1)
		go func() {
			defer c.runs.Done()
			if _, err := c.session.RunCode(ctx, in.Source, in.Language); err != nil && ctx.Err() == nil {
				c.box.fail(err.Error())
			}
		}()
	case FrameRead:
		if c.session.MarkRead(in.ID) {
			c.box.mark(services.ChangeNotifications)
		}
	case FrameReadAll:
		c.session.MarkAllRead()
		c.box.mark(services.ChangeNotifications)
	default:
		c.box.fail("unknown frame type " + in.Type)
	}
}

func (c *connection) ack(ack chat.Ack, err error) {
	if err != nil {
		c.box.fail(err.Error())
		return
	}
	c.box.acknowledge(ack.ID)
}

func (c *connection) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.box.wake:
		}
		for _, frame := range c.frames(c.box.drain()) {
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.log.Warn("Failed to write to WebSocket", "error", err)
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (c *connection) frames(p pending) []Outbound {
	var out []Outbound
	for _, id := range p.acks {
		out = append(out, Outbound{Type: FrameAck, ID: id})
	}
	if p.kinds[services.ChangeMessages] {
		messages := c.session.Messages()
		if messages == nil {
			messages = []chat.Message{}
		}
		out = append(out, Outbound{
			Type:      FrameMessages,
			Room:      c.session.Room(),
			Messages:  messages,
			Connected: lo.ToPtr(c.session.Connected()),
		})
	}
	if p.kinds[services.ChangeError] {
		if err := c.session.LastError(); err != nil {
			out = append(out, Outbound{Type: FrameError, Error: err.Error()})
		}
	}
	for _, reason := range p.errors {
		out = append(out, Outbound{Type: FrameError, Error: reason})
	}
	if p.kinds[services.ChangeOutput] {
		out = append(out, Outbound{Type: FrameOutput, Output: c.session.Output()})
	}
	if p.kinds[services.ChangeNotifications] {
		out = append(out, Outbound{
			Type:          FrameNotifications,
			Notifications: c.session.Notifications(),
			Unread:        lo.ToPtr(c.session.UnreadCount()),
		})
	}
	return out
}

type pending struct {
	kinds  map[services.ChangeKind]bool
	acks   []string
	errors []string
}

// mailbox coalesces session changes between two writes.
type mailbox struct {
	mu   sync.Mutex
	p    pending
	wake chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		p:    pending{kinds: make(map[services.ChangeKind]bool)},
		wake: make(chan struct{}, 1),
	}
}

func (b *mailbox) mark(kind services.ChangeKind) {
	b.mu.Lock()
	b.p.kinds[kind] = true
	b.mu.Unlock()
	b.poke()
}

func (b *mailbox) fail(reason string) {
	b.mu.Lock()
	b.p.errors = append(b.p.errors, reason)
	b.mu.Unlock()
	b.poke()
}

func (b *mailbox) acknowledge(id string) {
	b.mu.Lock()
	b.p.acks = append(b.p.acks, id)
	b.mu.Unlock()
	b.poke()
}

func (b *mailbox) drain() pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.p
	b.p = pending{kinds: make(map[services.ChangeKind]bool)}
	return out
}

func (b *mailbox) poke() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}
