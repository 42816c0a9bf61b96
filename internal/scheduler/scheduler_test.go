package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/store-price-compare/internal/aggregate"
	"github.com/maltedev/store-price-compare/internal/history"
	"github.com/maltedev/store-price-compare/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fakeEvaluator struct {
	mu      sync.Mutex
	calls   []string
	offers  map[string][]models.NormalizedOffer
	fail    map[string]bool
	panics  map[string]bool
	block   chan struct{}
	started chan struct{}
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, productQuery string, storeIDs []string) (models.ComparisonResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, productQuery)
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.block != nil {
		<-f.block
	}
	if f.panics[productQuery] {
		panic("evaluator crashed")
	}
	if f.fail[productQuery] {
		return models.ComparisonResult{}, errors.New("scrape failed")
	}
	return aggregate.Aggregate(productQuery, f.offers[productQuery]), nil
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) UpsertComparison(ctx context.Context, productName string, cheapest, mostExpensive models.NormalizedOffer) error {
	return m.Called(ctx, productName, cheapest, mostExpensive).Error(0)
}

func (m *MockGateway) ListHistory(ctx context.Context) ([]models.HistoryRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.HistoryRecord), args.Error(1)
}

func (m *MockGateway) DistinctTrackedProducts(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func offer(store, price string) models.NormalizedOffer {
	return models.NormalizedOffer{StoreID: store, ProductName: store + " item", Price: decimal.RequireFromString(price)}
}

func newScheduler(t *testing.T, ev Evaluator, gw history.Gateway, products ...string) (*Scheduler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	s, err := New(ev, gw, Options{
		Interval: time.Hour,
		Products: products,
		Stores:   []string{"migros", "amazon"},
		Clock:    clock,
	}, nil)
	require.NoError(t, err)
	return s, clock
}

func TestNew_RequiresStores(t *testing.T) {
	_, err := New(&fakeEvaluator{}, new(MockGateway), Options{}, nil)
	assert.Error(t, err)
}

func TestRunCycle(t *testing.T) {
	ctx := context.Background()

	ev := &fakeEvaluator{
		offers: map[string][]models.NormalizedOffer{
			"milk":  {offer("migros", "24.95"), offer("amazon", "89.90")},
			"bread": {offer("migros", "10")},
			"eggs":  {offer("amazon", "55")},
		},
		fail: map[string]bool{"water": true},
	}
	gw := new(MockGateway)
	gw.On("DistinctTrackedProducts", ctx).Return([]string{"bread", "eggs", "milk"}, nil)
	gw.On("UpsertComparison", ctx, "milk", mock.Anything, mock.Anything).Return(nil)
	gw.On("UpsertComparison", ctx, "bread", mock.Anything, mock.Anything).Return(history.ErrPersistence)
	gw.On("UpsertComparison", ctx, "eggs", mock.Anything, mock.Anything).Return(nil)

	s, _ := newScheduler(t, ev, gw, "water", "milk")

	require.True(t, s.RunCycle(ctx))
	assert.Equal(t, StateIdle, s.State())

	// configured products first, then stored ones, without duplicates
	assert.Equal(t, []string{"water", "milk", "bread", "eggs"}, ev.calls)
	gw.AssertNumberOfCalls(t, "UpsertComparison", 3)

	status := s.Status(ctx)
	require.NotNil(t, status.LastRunAt)
	assert.Equal(t, "idle", status.State)
	require.Len(t, status.Tracked, 4)
	for _, tp := range status.Tracked {
		assert.NotNil(t, tp.LastRunAt, tp.ProductQuery)
	}
}

func TestRunCycle_EmptyResultNotPersisted(t *testing.T) {
	ctx := context.Background()
	ev := &fakeEvaluator{}
	gw := new(MockGateway)
	gw.On("DistinctTrackedProducts", ctx).Return([]string{}, nil)

	s, _ := newScheduler(t, ev, gw, "milk")
	require.True(t, s.RunCycle(ctx))
	gw.AssertNotCalled(t, "UpsertComparison", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_PanicIsolated(t *testing.T) {
	ctx := context.Background()
	ev := &fakeEvaluator{
		offers: map[string][]models.NormalizedOffer{"milk": {offer("migros", "5")}},
		panics: map[string]bool{"water": true},
	}
	gw := new(MockGateway)
	gw.On("DistinctTrackedProducts", ctx).Return([]string(nil), errors.New("db down"))
	gw.On("UpsertComparison", ctx, "milk", mock.Anything, mock.Anything).Return(nil)

	s, _ := newScheduler(t, ev, gw, "water", "milk")
	require.True(t, s.RunCycle(ctx))
	gw.AssertCalled(t, "UpsertComparison", ctx, "milk", mock.Anything, mock.Anything)
	assert.Equal(t, StateIdle, s.State())
}

func TestRunCycle_SingleFlight(t *testing.T) {
	ctx := context.Background()
	ev := &fakeEvaluator{
		offers:  map[string][]models.NormalizedOffer{"milk": {offer("migros", "5")}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	gw := new(MockGateway)
	gw.On("DistinctTrackedProducts", mock.Anything).Return([]string{}, nil)
	gw.On("UpsertComparison", mock.Anything, "milk", mock.Anything, mock.Anything).Return(nil)

	s, _ := newScheduler(t, ev, gw, "milk")

	done := make(chan bool)
	go func() { done <- s.RunCycle(ctx) }()

	select {
	case <-ev.started:
	case <-time.After(time.Second):
		t.Fatal("first cycle did not start")
	}
	assert.Equal(t, StateRunning, s.State())

	// a tick while running is skipped
	assert.False(t, s.RunCycle(ctx))

	close(ev.block)
	assert.True(t, <-done)
	assert.Equal(t, StateIdle, s.State())

	ev.mu.Lock()
	assert.Equal(t, []string{"milk"}, ev.calls)
	ev.mu.Unlock()
}

func TestStartStop(t *testing.T) {
	gw := new(MockGateway)
	s, _ := newScheduler(t, &fakeEvaluator{}, gw, "milk")

	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	// the first run is one interval away, so nothing ran
	gw.AssertNotCalled(t, "DistinctTrackedProducts", mock.Anything)
}
