package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/alerts"
	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTracker_CheckExpiredAlertsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	clock := newClock()
	store := kv.NewMemoryStore()

	alerter := alerts.NewMockAlertService(ctrl)
	alerter.EXPECT().IsEnabled().Return(true).AnyTimes()

	var offline []string

	alerter.EXPECT().Alert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *alerts.WebhookAlert) error {
			offline = append(offline, a.DeviceID)

			return nil
		}).AnyTimes()

	tr := New(store, GatewayPartition, 90*time.Second, zerolog.Nop(), WithClock(clock.Now), WithAlerter(alerter))

	_, err := tr.Report(ctx, "raspi", "online", nil)
	require.NoError(t, err)
	_, err = tr.Report(ctx, "lab-pi", "offline", nil)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	_, err = tr.Report(ctx, "fresh-pi", "online", nil)
	require.NoError(t, err)

	clock.Advance(80 * time.Second)

	require.NoError(t, tr.checkExpired(ctx))
	require.NoError(t, tr.checkExpired(ctx))
	assert.Equal(t, []string{"raspi"}, offline)

	e, err := store.Get(ctx, GatewayPartition, "raspi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Version)
}

func TestTracker_CheckExpiredRearmsAfterRecovery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	clock := newClock()

	alerter := alerts.NewMockAlertService(ctrl)
	alerter.EXPECT().IsEnabled().Return(true).AnyTimes()

	var titles []string

	alerter.EXPECT().Alert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a *alerts.WebhookAlert) error {
			titles = append(titles, a.Title)

			return nil
		}).AnyTimes()

	tr := New(kv.NewMemoryStore(), BoardPartition, time.Minute, zerolog.Nop(), WithClock(clock.Now), WithAlerter(alerter))

	_, err := tr.Report(ctx, "stm32-master", "online", nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	require.NoError(t, tr.checkExpired(ctx))

	_, err = tr.Report(ctx, "stm32-master", "online", nil)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	require.NoError(t, tr.checkExpired(ctx))

	assert.Equal(t, []string{"Device Offline", "Device Recovered", "Device Offline"}, titles)
}

func TestTracker_MonitorStopsOnCancel(t *testing.T) {
	tr := New(kv.NewMemoryStore(), GatewayPartition, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		tr.Monitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
