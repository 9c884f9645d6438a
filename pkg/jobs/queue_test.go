package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/search"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

// MockSearcher is a mock implementation of Searcher.
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) SearchPrice(ctx context.Context, q sources.Query) (*search.Result, error) {
	args := m.Called(ctx, q)
	r, _ := args.Get(0).(*search.Result)
	return r, args.Error(1)
}

// MockUpdater is a mock implementation of PriceUpdater.
type MockUpdater struct {
	mock.Mock
}

func (m *MockUpdater) UpdatePrice(ctx context.Context, itemType sources.ItemType, id int64, price float64) (bool, error) {
	args := m.Called(ctx, itemType, id, price)
	return args.Bool(0), args.Error(1)
}

var dipirona = sources.Query{ItemName: "Dipirona", ItemType: sources.ItemTypeMedicine, Dosage: "500mg"}

func priced(v float64) *search.Result {
	return &search.Result{AveragePrice: &v, Source: "A,B", LastUpdated: time.Now()}
}

func closeQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Close(ctx))
}

func TestQueue_UpdatesDiscoveredPrice(t *testing.T) {
	searcher := new(MockSearcher)
	updater := new(MockUpdater)
	searcher.On("SearchPrice", mock.Anything, dipirona).Return(priced(5.63), nil)
	updater.On("UpdatePrice", mock.Anything, sources.ItemTypeMedicine, int64(42), 5.63).Return(true, nil)

	q := NewQueue(searcher, updater, Options{Workers: 1, QueueSize: 4})
	id, err := q.Submit(Request{ItemID: 42, Query: dipirona})
	require.NoError(t, err)

	select {
	case o := <-q.Results():
		assert.Equal(t, id, o.JobID)
		assert.True(t, o.Updated)
		assert.Equal(t, 5.63, *o.Result.AveragePrice)
		assert.Equal(t, int64(42), o.Request.ItemID)
	case f := <-q.Errors():
		t.Fatalf("unexpected failure: %v", f)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}

	closeQueue(t, q)
	searcher.AssertExpectations(t)
	updater.AssertExpectations(t)
}

func TestQueue_SearchOnlyRequest(t *testing.T) {
	searcher := new(MockSearcher)
	updater := new(MockUpdater)
	searcher.On("SearchPrice", mock.Anything, dipirona).Return(priced(7), nil)

	q := NewQueue(searcher, updater, Options{Workers: 1})
	_, err := q.Submit(Request{Query: dipirona})
	require.NoError(t, err)

	o := <-q.Results()
	assert.False(t, o.Updated)
	closeQueue(t, q)

	updater.AssertNotCalled(t, "UpdatePrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQueue_Failures(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name      string
		result    *search.Result
		searchErr error
		updateErr error
		expected  error
	}{
		{name: "no price", result: nil, expected: ErrNoPriceFound},
		{name: "null average", result: &search.Result{}, expected: ErrNoPriceFound},
		{name: "search error", searchErr: sources.ErrInvalidItemType, expected: sources.ErrInvalidItemType},
		{name: "update error", result: priced(3.2), updateErr: boom, expected: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(MockSearcher)
			updater := new(MockUpdater)
			searcher.On("SearchPrice", mock.Anything, dipirona).Return(tt.result, tt.searchErr)
			updater.On("UpdatePrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(false, tt.updateErr)

			q := NewQueue(searcher, updater, Options{Workers: 1})
			id, err := q.Submit(Request{ItemID: 7, Query: dipirona})
			require.NoError(t, err)

			select {
			case f := <-q.Errors():
				assert.Equal(t, id, f.JobID)
				assert.ErrorIs(t, f, tt.expected)
				assert.Contains(t, f.Error(), "Dipirona")
			case o := <-q.Results():
				t.Fatalf("unexpected outcome: %+v", o)
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for failure")
			}

			closeQueue(t, q)
		})
	}
}

func TestQueue_Full(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	searcher := new(MockSearcher)
	searcher.On("SearchPrice", mock.Anything, dipirona).Run(func(mock.Arguments) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}).Return(nil, nil)

	q := NewQueue(searcher, nil, Options{Workers: 1, QueueSize: 1})

	_, err := q.Submit(Request{Query: dipirona})
	require.NoError(t, err)
	<-started

	_, err = q.Submit(Request{Query: dipirona})
	require.NoError(t, err)

	_, err = q.Submit(Request{Query: dipirona})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	closeQueue(t, q)
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(new(MockSearcher), nil, Options{})
	closeQueue(t, q)
	closeQueue(t, q)

	_, err := q.Submit(Request{Query: dipirona})
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, open := <-q.Results()
	assert.False(t, open)
	_, open = <-q.Errors()
	assert.False(t, open)
}

func TestQueue_InvalidRequest(t *testing.T) {
	q := NewQueue(new(MockSearcher), nil, Options{})
	defer closeQueue(t, q)

	_, err := q.Submit(Request{Query: sources.Query{ItemType: sources.ItemTypeMedicine}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, search.ErrEmptyItemName)

	_, err = q.Submit(Request{Query: sources.Query{ItemName: "Dipirona", ItemType: "food"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, sources.ErrInvalidItemType)
}

func TestQueue_CloseCancelsRunningSearch(t *testing.T) {
	started := make(chan struct{}, 1)
	searcher := new(MockSearcher)
	searcher.On("SearchPrice", mock.Anything, dipirona).Run(func(args mock.Arguments) {
		started <- struct{}{}
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.Canceled)

	q := NewQueue(searcher, nil, Options{Workers: 1})
	_, err := q.Submit(Request{Query: dipirona})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)

	f, ok := <-q.Errors()
	require.True(t, ok)
	assert.ErrorIs(t, f, context.Canceled)
}
