package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/review-hub/internal/models"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	channels []string
	failures int
	closed   atomic.Int32
	events   chan models.ChangeEvent
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{events: make(chan models.ChangeEvent, 16)}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, channelName, _ string) (<-chan models.ChangeEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channelName)
	if f.failures > 0 {
		f.failures--
		return nil, nil, errors.New("broker unavailable")
	}
	return f.events, func() { f.closed.Add(1) }, nil
}

func (f *fakeSubscriber) channelNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.channels...)
}

type fakeRefresher struct {
	calls atomic.Int32
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (models.Entitlement, error) {
	f.calls.Add(1)
	return models.Entitlement{}, nil
}

type fakeBadgeCache struct {
	calls atomic.Int32
}

func (f *fakeBadgeCache) InvalidateUnread(_ string) {
	f.calls.Add(1)
}

func newTestListener(sub Subscriber, refresher Refresher) *Listener {
	return newTestListenerWithBadges(sub, refresher, nil)
}

func newTestListenerWithBadges(sub Subscriber, refresher Refresher, badges BadgeCache) *Listener {
	l := New(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})), sub, refresher, badges)
	l.debounce = 50 * time.Millisecond
	l.drainDelay = 10 * time.Millisecond
	l.retryDelay = 10 * time.Millisecond
	return l
}

func TestOpen_UniqueChannelNames(t *testing.T) {
	sub := newFakeSubscriber()
	l := newTestListener(sub, &fakeRefresher{})
	defer l.CloseAll()

	h1, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, h1.State())
	assert.True(t, strings.HasPrefix(h1.Channel(), "changes.u1."))

	h2, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	// Быстрое переоткрытие не может столкнуться со старым каналом.
	assert.NotEqual(t, h1.Channel(), h2.Channel())
}

func TestOpen_ReplacesExistingHandle(t *testing.T) {
	sub := newFakeSubscriber()
	l := newTestListener(sub, &fakeRefresher{})
	defer l.CloseAll()

	h1, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	h2, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, StateDisconnected, h1.State())
	assert.Equal(t, StateConnected, h2.State())
	assert.GreaterOrEqual(t, sub.closed.Load(), int32(1))
}

func TestOpen_RetriesOnceAfterFailure(t *testing.T) {
	sub := newFakeSubscriber()
	sub.failures = 1
	l := newTestListener(sub, &fakeRefresher{})
	defer l.CloseAll()

	h, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, h.State())
	assert.Len(t, sub.channelNames(), 2)
}

func TestOpen_GivesUpAfterSingleRetry(t *testing.T) {
	sub := newFakeSubscriber()
	sub.failures = 2
	l := newTestListener(sub, &fakeRefresher{})

	_, err := l.Open(context.Background(), "u1")
	require.Error(t, err)
	assert.Len(t, sub.channelNames(), 2)
}

func TestDebounce_CollapsesBurstIntoSingleRefresh(t *testing.T) {
	sub := newFakeSubscriber()
	refresher := &fakeRefresher{}
	l := newTestListener(sub, refresher)
	defer l.CloseAll()

	_, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	// Многострочная транзакция: несколько событий подряд.
	for range 3 {
		sub.events <- models.ChangeEvent{
			Table:   "subscriptions",
			Event:   "UPDATE",
			UserUID: "u1",
			Columns: []string{"status"},
		}
	}

	assert.Eventually(t, func() bool {
		return refresher.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// Дополнительных пересчётов после паузы нет.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), refresher.calls.Load())
}

func TestFilter_IgnoresUnwatchedColumns(t *testing.T) {
	sub := newFakeSubscriber()
	refresher := &fakeRefresher{}
	l := newTestListener(sub, refresher)
	defer l.CloseAll()

	_, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	sub.events <- models.ChangeEvent{
		Table: "users", Event: "UPDATE", UserUID: "u1",
		Columns: []string{"company_name"},
	}
	sub.events <- models.ChangeEvent{
		Table: "reviews", Event: "INSERT", UserUID: "u1",
		Columns: []string{"status"},
	}

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), refresher.calls.Load())
}

func TestFilter_EventWithoutColumnsIsRelevant(t *testing.T) {
	sub := newFakeSubscriber()
	refresher := &fakeRefresher{}
	l := newTestListener(sub, refresher)
	defer l.CloseAll()

	_, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	sub.events <- models.ChangeEvent{Table: "subscriptions", Event: "INSERT", UserUID: "u1"}

	assert.Eventually(t, func() bool {
		return refresher.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNotificationEvent_DropsBadgeWithoutRefresh(t *testing.T) {
	sub := newFakeSubscriber()
	refresher := &fakeRefresher{}
	badges := &fakeBadgeCache{}
	l := newTestListenerWithBadges(sub, refresher, badges)
	defer l.CloseAll()

	_, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	sub.events <- models.ChangeEvent{Table: "notifications", Event: "INSERT", UserUID: "u1"}

	assert.Eventually(t, func() bool {
		return badges.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// Счётчик непрочитанных сброшен, пересчёт доступа не запускался.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), refresher.calls.Load())
}

func TestPaymentHistoryEvent_TriggersRefresh(t *testing.T) {
	sub := newFakeSubscriber()
	refresher := &fakeRefresher{}
	l := newTestListener(sub, refresher)
	defer l.CloseAll()

	_, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	sub.events <- models.ChangeEvent{Table: "payment_history", Event: "INSERT", UserUID: "u1"}

	assert.Eventually(t, func() bool {
		return refresher.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestClose_IsIdempotent(t *testing.T) {
	sub := newFakeSubscriber()
	l := newTestListener(sub, &fakeRefresher{})

	h, err := l.Open(context.Background(), "u1")
	require.NoError(t, err)

	l.Close("u1")
	l.Close("u1")
	h.Close()

	assert.Equal(t, StateDisconnected, h.State())
	assert.Equal(t, int32(1), sub.closed.Load())
}
