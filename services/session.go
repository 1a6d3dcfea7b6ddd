package services

import (
	"code-mentor/contract"
	"code-mentor/domain/chat"
	"code-mentor/errors"
	"code-mentor/execution"
	"code-mentor/moderation"
	"code-mentor/observability"
	"code-mentor/runtime"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

const (
	HelpRequestContent          = "🚨 I need immediate help with my code!"
	DefaultNotificationInterval = 10 * time.Second
)

type Role string

const (
	RoleStudent     Role = "student"
	RoleFacilitator Role = "facilitator"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleFacilitator:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidRole, s)
	}
}

func (r Role) Kind() chat.Kind {
	if r == RoleFacilitator {
		return chat.KindFacilitator
	}
	return chat.KindStudent
}

// Sender is the label shown next to a message.
func (r Role) Sender() string {
	if r == RoleFacilitator {
		return "Facilitator"
	}
	return "Student"
}

// ChangeKind tells an observer which part of the session moved.
type ChangeKind string

const (
	ChangeMessages      ChangeKind = "messages"
	ChangeError         ChangeKind = "error"
	ChangeOutput        ChangeKind = "output"
	ChangeNotifications ChangeKind = "notifications"
)

type SessionDeps struct {
	Log       *slog.Logger
	Channel   contract.Channel
	Engine    *execution.Engine
	Moderator *moderation.Moderator
	Metrics   *observability.Metrics
	// NotificationInterval is the facilitator simulator tick. Zero uses the default.
	NotificationInterval time.Duration
	// SeedNotifications opens facilitator feeds with the sample backlog.
	SeedNotifications bool
	Random            func() float64
}

type SessionOptions struct {
	Role   Role
	UserID string
	Room   chat.RoomID
	// OnChange is called after every state change, outside the session lock.
	OnChange func(ChangeKind)
}

// Session is one dashboard view. It owns its scheduler and its
// subscription, nothing it started outlives Close.
type Session struct {
	opts      SessionOptions
	log       *slog.Logger
	channel   contract.Channel
	engine    *execution.Engine
	moderator *moderation.Moderator
	metrics   *observability.Metrics
	random    func() float64
	scheduler *runtime.Scheduler
	feed      *Feed

	ctx    context.Context
	cancel context.CancelFunc
	sub    contract.Subscription
	runs   sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	messages  []chat.Message
	lastError error
	output    string
}

func OpenSession(ctx context.Context, deps SessionDeps, opts SessionOptions) (*Session, error) {
	if _, err := ParseRole(string(opts.Role)); err != nil {
		return nil, err
	}
	if deps.Channel == nil || deps.Engine == nil {
		return nil, fmt.Errorf("session requires a channel and an engine")
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		opts:      opts,
		log:       deps.Log.With("room", opts.Room, "role", opts.Role, "user", opts.UserID),
		channel:   deps.Channel,
		engine:    deps.Engine,
		moderator: deps.Moderator,
		metrics:   deps.Metrics,
		random:    deps.Random,
		scheduler: runtime.NewScheduler(sessionCtx, deps.Log),
		feed:      &Feed{},
		ctx:       sessionCtx,
		cancel:    cancel,
	}
	if s.random == nil {
		s.random = rand.Float64
	}

	sub, err := deps.Channel.Subscribe(sessionCtx, opts.Room, s.onUpdate)
	if err != nil {
		s.scheduler.Stop()
		cancel()
		return nil, err
	}
	s.sub = sub

	if opts.Role == RoleFacilitator {
		if deps.SeedNotifications {
			s.feed = NewFeed(SampleNotifications(time.Now().UTC()))
		}
		interval := deps.NotificationInterval
		if interval <= 0 {
			interval = DefaultNotificationInterval
		}
		s.scheduler.Every("notifications", interval, func(context.Context) { s.simulate() })
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.WithLabelValues(string(opts.Role)).Inc()
	}
	s.log.Info("Session opened")
	return s, nil
}

func (s *Session) Role() Role        { return s.opts.Role }
func (s *Session) Room() chat.RoomID { return s.opts.Room }

// Send posts content as the session role.
func (s *Session) Send(ctx context.Context, content string) (chat.Ack, error) {
	return s.post(ctx, s.opts.Role.Kind(), content)
}

func (s *Session) RequestHelp(ctx context.Context) (chat.Ack, error) {
	return s.post(ctx, chat.KindHelpRequest, HelpRequestContent)
}

func (s *Session) post(ctx context.Context, kind chat.Kind, content string) (chat.Ack, error) {
	if s.isClosed() {
		return chat.Ack{}, errors.ErrSessionClosed
	}
	if s.moderator != nil {
		var found []string
		content, found = s.moderator.Censor(content)
		if len(found) > 0 {
			s.log.Debug("Message censored", "words", found)
		}
	}
	ack, err := s.channel.Send(ctx, chat.SendCommand{
		Room:    s.opts.Room,
		UserID:  s.opts.UserID,
		Sender:  s.opts.Role.Sender(),
		Kind:    kind,
		Content: content,
	})
	if err != nil {
		s.countFailure(err)
		return chat.Ack{}, err
	}
	if s.metrics != nil {
		s.metrics.MessagesSent.WithLabelValues(string(kind)).Inc()
	}
	return ack, nil
}

// RunCode executes source through the mock engine. The wait is cut short
// when either ctx or the session ends, and a late result is dropped.
func (s *Session) RunCode(ctx context.Context, source string, language execution.Language) (execution.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return execution.Result{}, errors.ErrSessionClosed
	}
	s.runs.Add(1)
	s.mu.Unlock()
	defer s.runs.Done()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	result, err := s.engine.Execute(runCtx, execution.Request{Source: source, Language: language})
	if err != nil {
		if s.ctx.Err() != nil {
			return execution.Result{}, errors.ErrSessionClosed
		}
		return execution.Result{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return execution.Result{}, errors.ErrSessionClosed
	}
	s.output = result.Output
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Executions.WithLabelValues(string(result.Language)).Inc()
	}
	s.changed(ChangeOutput)
	return result, nil
}

// Messages is the latest snapshot delivered by the channel.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

func (s *Session) Connected() bool {
	return s.channel.Connected()
}

func (s *Session) Notifications() []Notification { return s.feed.All() }
func (s *Session) UnreadCount() int              { return s.feed.Unread() }
func (s *Session) MarkRead(id string) bool       { return s.feed.MarkRead(id) }
func (s *Session) MarkAllRead() int              { return s.feed.MarkAllRead() }
func (s *Session) DeleteNotification(id string) bool {
	return s.feed.Delete(id)
}

// Close stops the scheduler, the subscription and every RunCode in flight.
// No OnChange fires once it returns. It is idempotent and must not be
// called from an OnChange callback.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.runs.Wait()
	s.scheduler.Stop()
	s.sub.Unsubscribe()
	if s.metrics != nil {
		s.metrics.ActiveSessions.WithLabelValues(string(s.opts.Role)).Dec()
	}
	s.log.Info("Session closed")
	return nil
}

func (s *Session) onUpdate(u contract.Update) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	kind := ChangeMessages
	if u.Err != nil {
		s.lastError = u.Err
		kind = ChangeError
	} else {
		s.messages = u.Messages
		s.lastError = nil
	}
	s.mu.Unlock()
	s.changed(kind)
}

func (s *Session) simulate() {
	n, ok := Simulate(s.random, time.Now().UTC())
	if !ok || s.isClosed() {
		return
	}
	s.feed.Push(n)
	if s.metrics != nil {
		s.metrics.Notifications.Inc()
	}
	s.changed(ChangeNotifications)
}

func (s *Session) changed(kind ChangeKind) {
	if s.opts.OnChange != nil {
		s.opts.OnChange(kind)
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) countFailure(err error) {
	if s.metrics == nil {
		return
	}
	reason := "invalid"
	switch {
	case goerrors.Is(err, errors.ErrDisconnected):
		reason = "disconnected"
	case goerrors.Is(err, errors.ErrRemoteUnavailable):
		reason = "unavailable"
	case goerrors.Is(err, errors.ErrChannelClosed):
		reason = "closed"
	}
	s.metrics.SendFailures.WithLabelValues(reason).Inc()
}
