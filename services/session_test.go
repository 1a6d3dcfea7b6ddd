package services

import (
	"code-mentor/channel"
	"code-mentor/contract"
	"code-mentor/domain/chat"
	"code-mentor/errors"
	"code-mentor/execution"
	"code-mentor/mocks"
	"code-mentor/moderation"
	"code-mentor/observability"
	"code-mentor/repositories"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newLocalDeps(t *testing.T, executionDelay time.Duration) SessionDeps {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	local := channel.NewLocalChannel(context.Background(), repositories.NewCacheRepository(db, log, 0), log,
		channel.WithEchoDelay(5*time.Millisecond))
	t.Cleanup(func() { _ = local.Close() })

	return SessionDeps{
		Log:     log,
		Channel: local,
		Engine:  execution.NewEngine(log, execution.WithDelay(executionDelay)),
		Metrics: observability.NewMetrics(),
	}
}

func waitForMessages(t *testing.T, s *Session, n int) []chat.Message {
	t.Helper()
	require.Eventually(t, func() bool { return len(s.Messages()) == n }, 2*time.Second, 5*time.Millisecond)
	return s.Messages()
}

func TestOpenSession_InvalidRole(t *testing.T) {
	deps := newLocalDeps(t, time.Millisecond)

	_, err := OpenSession(context.Background(), deps, SessionOptions{Role: "admin", Room: "r1"})

	require.ErrorIs(t, err, errors.ErrInvalidRole)
}

func TestSession_Send_RoleDecidesKind(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, time.Millisecond)

	student, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, UserID: "alice", Room: "r1"})
	req.NoError(err)
	defer student.Close()
	facilitator, err := OpenSession(ctx, deps, SessionOptions{Role: RoleFacilitator, UserID: "bob", Room: "r1"})
	req.NoError(err)
	defer facilitator.Close()

	// When both roles talk in the same room
	_, err = student.Send(ctx, "my loop never ends")
	req.NoError(err)
	waitForMessages(t, facilitator, 1)
	_, err = facilitator.Send(ctx, "check the condition")
	req.NoError(err)

	// Then both views converge on the same ordered log
	messages := waitForMessages(t, student, 2)
	req.Equal(chat.KindStudent, messages[0].Kind)
	req.Equal("Student", messages[0].Sender)
	req.Equal("alice", messages[0].UserID)
	req.Equal(chat.KindFacilitator, messages[1].Kind)
	req.Equal("Facilitator", messages[1].Sender)
	req.Equal(messages, waitForMessages(t, facilitator, 2))
	req.Equal(2.0, testutil.ToFloat64(deps.Metrics.ActiveSessions.WithLabelValues("student"))+
		testutil.ToFloat64(deps.Metrics.ActiveSessions.WithLabelValues("facilitator")))
}

func TestSession_RequestHelp(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, time.Millisecond)
	session, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, Room: "r1"})
	req.NoError(err)
	defer session.Close()

	_, err = session.RequestHelp(ctx)
	req.NoError(err)

	messages := waitForMessages(t, session, 1)
	req.Equal(chat.KindHelpRequest, messages[0].Kind)
	req.Equal(HelpRequestContent, messages[0].Content)
	req.Equal(1.0, testutil.ToFloat64(deps.Metrics.MessagesSent.WithLabelValues("help-request")))
}

func TestSession_Send_IsModerated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, time.Millisecond)
	moderator, err := moderation.NewModerator([]string{"stupid"}, '*', deps.Log)
	req.NoError(err)
	deps.Moderator = moderator
	session, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, Room: "r1"})
	req.NoError(err)
	defer session.Close()

	_, err = session.Send(ctx, "this stupid compiler")
	req.NoError(err)

	messages := waitForMessages(t, session, 1)
	req.Equal("this ****** compiler", messages[0].Content)
}

func TestSession_RunCode(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, 10*time.Millisecond)
	session, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, Room: "r1"})
	req.NoError(err)
	defer session.Close()

	result, err := session.RunCode(ctx, `print("Hello")`, execution.Python)

	req.NoError(err)
	req.Equal("Hello", result.Output)
	req.Equal("Hello", session.Output())
	req.Equal(1.0, testutil.ToFloat64(deps.Metrics.Executions.WithLabelValues("python")))
}

func TestSession_Close_DropsPendingExecution(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, time.Second)
	session, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, Room: "r1"})
	req.NoError(err)

	// Given an execution waiting on its delay
	errs := make(chan error, 1)
	go func() {
		_, err := session.RunCode(ctx, `print("late")`, execution.Python)
		errs <- err
	}()
	time.Sleep(20 * time.Millisecond)

	// When the view is torn down
	req.NoError(session.Close())

	// Then the result is never applied
	select {
	case err := <-errs:
		req.ErrorIs(err, errors.ErrSessionClosed)
	case <-time.After(time.Second):
		req.Fail("execution was not cancelled")
	}
	req.Empty(session.Output())
}

func TestSession_Close_NoFurtherChanges(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, time.Millisecond)
	observer, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, Room: "r1"})
	req.NoError(err)
	writer, err := OpenSession(ctx, deps, SessionOptions{Role: RoleFacilitator, Room: "r1"})
	req.NoError(err)
	defer writer.Close()

	req.NoError(observer.Close())
	req.NoError(observer.Close())

	_, err = writer.Send(ctx, "anyone there?")
	req.NoError(err)
	waitForMessages(t, writer, 1)

	req.Empty(observer.Messages())
	_, err = observer.Send(ctx, "too late")
	req.ErrorIs(err, errors.ErrSessionClosed)
	_, err = observer.RunCode(ctx, "print('x')", execution.Python)
	req.ErrorIs(err, errors.ErrSessionClosed)
	req.Equal(0.0, testutil.ToFloat64(deps.Metrics.ActiveSessions.WithLabelValues("student")))
}

func TestSession_Close_WaitsForRunInFlight(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, time.Millisecond)
	entered, release := make(chan struct{}), make(chan struct{})
	var outputs atomic.Int32
	session, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, Room: "r1", OnChange: func(kind ChangeKind) {
		if kind != ChangeOutput {
			return
		}
		outputs.Add(1)
		close(entered)
		<-release
	}})
	req.NoError(err)

	// Given a run that is reporting its output
	go func() { _, _ = session.RunCode(ctx, `print("Hello")`, execution.Python) }()
	<-entered

	// When the view is torn down meanwhile
	closed := make(chan struct{})
	go func() {
		_ = session.Close()
		close(closed)
	}()

	// Then Close returns only once the callback is over
	select {
	case <-closed:
		req.Fail("Close returned while a run was still reporting")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		req.Fail("Close did not return")
	}

	// And no run reports afterwards
	_, err = session.RunCode(ctx, `print("late")`, execution.Python)
	req.ErrorIs(err, errors.ErrSessionClosed)
	req.Equal(int32(1), outputs.Load())
}

func TestSession_Update_Error_IsRecorded(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockChannel := mocks.NewMockChannel(ctrl)
	mockSub := mocks.NewMockSubscription(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	var listener contract.Listener
	mockChannel.EXPECT().
		Subscribe(gomock.Any(), chat.RoomID("r1"), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ chat.RoomID, l contract.Listener) (contract.Subscription, error) {
			listener = l
			return mockSub, nil
		})
	mockSub.EXPECT().Unsubscribe().Times(1)

	changes := make(chan ChangeKind, 4)
	session, err := OpenSession(context.Background(),
		SessionDeps{Log: log, Channel: mockChannel, Engine: execution.NewEngine(log)},
		SessionOptions{Role: RoleStudent, Room: "r1", OnChange: func(k ChangeKind) { changes <- k }})
	req.NoError(err)
	defer session.Close()

	// When the backend reports a failure
	listener(contract.Update{Room: "r1", Err: errors.ErrRemoteUnavailable})

	// Then it is surfaced, never swallowed
	req.Equal(ChangeError, <-changes)
	req.ErrorIs(session.LastError(), errors.ErrRemoteUnavailable)

	// And a later snapshot clears it
	listener(contract.Update{Room: "r1", Messages: []chat.Message{{ID: "m1", Content: "back"}}})
	req.Equal(ChangeMessages, <-changes)
	req.NoError(session.LastError())
	req.Len(session.Messages(), 1)
}

func TestSession_Send_ChannelFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockChannel := mocks.NewMockChannel(ctrl)
	mockSub := mocks.NewMockSubscription(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	metrics := observability.NewMetrics()

	mockChannel.EXPECT().Subscribe(gomock.Any(), gomock.Any(), gomock.Any()).Return(mockSub, nil)
	mockChannel.EXPECT().Send(gomock.Any(), gomock.Any()).Return(chat.Ack{}, errors.ErrDisconnected)
	mockSub.EXPECT().Unsubscribe()

	session, err := OpenSession(context.Background(),
		SessionDeps{Log: log, Channel: mockChannel, Engine: execution.NewEngine(log), Metrics: metrics},
		SessionOptions{Role: RoleStudent, Room: "r1"})
	req.NoError(err)
	defer session.Close()

	_, err = session.Send(context.Background(), "hello")

	req.ErrorIs(err, errors.ErrDisconnected)
	req.Equal(1.0, testutil.ToFloat64(metrics.SendFailures.WithLabelValues("disconnected")))
}

func TestSession_Facilitator_ReceivesNotifications(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, time.Millisecond)
	deps.NotificationInterval = 5 * time.Millisecond
	deps.Random = func() float64 { return 0.99 }

	facilitator, err := OpenSession(ctx, deps, SessionOptions{Role: RoleFacilitator, Room: "r1"})
	req.NoError(err)
	student, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, Room: "r1"})
	req.NoError(err)
	defer student.Close()

	req.Eventually(func() bool { return facilitator.UnreadCount() >= 2 }, time.Second, 5*time.Millisecond)
	req.NoError(facilitator.Close())

	// Then nothing is raised once closed
	count := len(facilitator.Notifications())
	time.Sleep(30 * time.Millisecond)
	req.Len(facilitator.Notifications(), count)

	first := facilitator.Notifications()[0]
	req.Equal(NotificationHelpRequest, first.Kind)
	req.Equal(PriorityHigh, first.Priority)
	req.Equal("Mike Wilson", first.Student)

	req.True(facilitator.MarkRead(first.ID))
	req.Equal(count-1, facilitator.UnreadCount())
	req.Equal(count-1, facilitator.MarkAllRead())
	req.Zero(facilitator.UnreadCount())

	// And students never get the simulator
	req.Empty(student.Notifications())
}

func TestSession_Facilitator_SeededFeed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	deps := newLocalDeps(t, time.Millisecond)
	deps.SeedNotifications = true
	deps.Random = func() float64 { return 0 }

	facilitator, err := OpenSession(ctx, deps, SessionOptions{Role: RoleFacilitator, Room: "r1"})
	req.NoError(err)
	defer facilitator.Close()
	student, err := OpenSession(ctx, deps, SessionOptions{Role: RoleStudent, Room: "r1"})
	req.NoError(err)
	defer student.Close()

	// Then the facilitator opens on the sample backlog
	req.Len(facilitator.Notifications(), 4)
	req.Equal(3, facilitator.UnreadCount())
	req.Equal("Alice Johnson", facilitator.Notifications()[0].Student)

	// And students still get none
	req.Empty(student.Notifications())
}
