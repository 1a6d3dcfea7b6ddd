package workers

import (
	"code-mentor/mocks"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestStoreHealthWorker_ReportsReachability(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockRemoteStore(ctrl)

	// Given the store answers once and then becomes unreachable
	gomock.InOrder(
		store.EXPECT().Ping(gomock.Any()).Return(nil).Times(1),
		store.EXPECT().Ping(gomock.Any()).Return(fmt.Errorf("connection refused")).AnyTimes(),
	)

	var mu sync.Mutex
	var reports []bool
	worker := NewStoreHealthWorker(log, store, 5*time.Millisecond, func(healthy bool) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, healthy)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then both states are reported in order
	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	req.NoError(<-done)

	mu.Lock()
	defer mu.Unlock()
	req.True(reports[0])
	req.False(reports[1])
}
