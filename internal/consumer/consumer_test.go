package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/store-price-compare/internal/models"
)

type MockStream struct {
	mock.Mock
}

func (m *MockStream) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	args := m.Called(ctx, stream, group, start)
	return redis.NewStatusResult(args.String(0), args.Error(1))
}

func (m *MockStream) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	args := m.Called(ctx, a)
	var streams []redis.XStream
	if v := args.Get(0); v != nil {
		streams = v.([]redis.XStream)
	}
	return redis.NewXStreamSliceCmdResult(streams, args.Error(1))
}

func (m *MockStream) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	args := m.Called(ctx, stream, group, ids)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

type MockComparer struct {
	mock.Mock
}

func (m *MockComparer) Compare(ctx context.Context, productQuery string, storeIDs []string) (models.ComparisonResult, error) {
	args := m.Called(ctx, productQuery, storeIDs)
	return args.Get(0).(models.ComparisonResult), args.Error(1)
}

func compareMsg(id, payload string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]interface{}{
		"event_type": EventTypeCompareRequested,
		"payload":    payload,
	}}
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("runs comparison", func(t *testing.T) {
		cmp := new(MockComparer)
		cmp.On("Compare", ctx, "milk", []string{"migros"}).Return(models.ComparisonResult{ValidOfferCount: 2}, nil)

		c := New(new(MockStream), cmp, Config{}, nil)
		err := c.HandleMessage(ctx, compareMsg("1-0", `{"product_name":"milk","stores":["migros"]}`))
		require.NoError(t, err)
		cmp.AssertExpectations(t)
	})

	t.Run("falls back to default stores", func(t *testing.T) {
		cmp := new(MockComparer)
		cmp.On("Compare", ctx, "eggs", []string{"sok", "migros"}).Return(models.ComparisonResult{}, nil)

		c := New(new(MockStream), cmp, Config{DefaultStores: []string{"sok", "migros"}}, nil)
		require.NoError(t, c.HandleMessage(ctx, compareMsg("1-0", `{"product_name":"eggs"}`)))
		cmp.AssertExpectations(t)
	})

	t.Run("ignores other events", func(t *testing.T) {
		cmp := new(MockComparer)
		c := New(new(MockStream), cmp, Config{}, nil)

		err := c.HandleMessage(ctx, redis.XMessage{ID: "1-0", Values: map[string]interface{}{"event_type": "PRICE_COMPARISON_UPDATED"}})
		assert.NoError(t, err)
		cmp.AssertNotCalled(t, "Compare", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad payloads", func(t *testing.T) {
		c := New(new(MockStream), new(MockComparer), Config{}, nil)

		err := c.HandleMessage(ctx, redis.XMessage{ID: "1-0", Values: map[string]interface{}{"event_type": EventTypeCompareRequested}})
		assert.EqualError(t, err, "missing payload in event")

		err = c.HandleMessage(ctx, compareMsg("2-0", "{"))
		assert.ErrorContains(t, err, "failed to parse payload")
	})

	t.Run("compare error", func(t *testing.T) {
		cmp := new(MockComparer)
		cmp.On("Compare", ctx, "", []string{"amazon"}).Return(models.ComparisonResult{}, errors.New("product name required"))

		c := New(new(MockStream), cmp, Config{}, nil)
		err := c.HandleMessage(ctx, compareMsg("1-0", `{"stores":["amazon"]}`))
		assert.ErrorContains(t, err, "product name required")
	})
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := new(MockStream)
	stream.On("XGroupCreateMkStream", mock.Anything, DefaultStream, DefaultGroup, "0").
		Return("", errors.New("BUSYGROUP Consumer Group name already exists"))
	stream.On("XReadGroup", mock.Anything, mock.Anything).Return([]redis.XStream{{
		Stream:   DefaultStream,
		Messages: []redis.XMessage{compareMsg("1-0", `{"product_name":"bread","stores":["sok"]}`)},
	}}, nil).Once()
	stream.On("XReadGroup", mock.Anything, mock.Anything).Return(nil, redis.Nil).Maybe()
	stream.On("XAck", mock.Anything, DefaultStream, DefaultGroup, []string{"1-0"}).
		Run(func(mock.Arguments) { cancel() }).
		Return(1, nil)

	cmp := new(MockComparer)
	cmp.On("Compare", mock.Anything, "bread", []string{"sok"}).Return(models.ComparisonResult{ValidOfferCount: 1}, nil)

	c := New(stream, cmp, Config{Block: 10 * time.Millisecond}, nil)
	err := c.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	stream.AssertExpectations(t)
	cmp.AssertExpectations(t)
}

func TestRun_GroupCreateFails(t *testing.T) {
	stream := new(MockStream)
	stream.On("XGroupCreateMkStream", mock.Anything, DefaultStream, DefaultGroup, "0").
		Return("", errors.New("connection refused"))

	c := New(stream, new(MockComparer), Config{}, nil)
	err := c.Run(context.Background())
	assert.ErrorContains(t, err, "failed to create consumer group")
}
