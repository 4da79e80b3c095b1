package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2025, 9, 10, 18, 0, 0, 0, time.UTC) }

func TestController_SetFieldMarksDirty(t *testing.T) {
	c := NewController(DefaultFields(), fixedNow)
	assert.False(t, c.Dirty())

	require.NoError(t, c.SetField(FieldDescription, "milk"))
	assert.True(t, c.Dirty())

	require.NoError(t, c.SetField(FieldDescription, ""))
	assert.False(t, c.Dirty(), "dirty is derived from the initial values")
}

func TestController_SetFieldRejectsBadInput(t *testing.T) {
	c := NewController(DefaultFields(), fixedNow)

	assert.ErrorIs(t, c.SetField("colour", "red"), ErrUnknownField)
	assert.ErrorIs(t, c.SetField(FieldCategoryID, "groceries"), ErrInvalidFieldValue)
	assert.ErrorIs(t, c.SetField(FieldSplitType, "thirds"), ErrInvalidFieldValue)
	assert.False(t, c.Dirty())

	require.NoError(t, c.SetField(FieldCategoryID, " 7 "))
	assert.Equal(t, int64(7), c.Fields().CategoryID)
	assert.Equal(t, "7", c.Fields().Get(FieldCategoryID))
}

func TestController_SubmitEmptyAmountNeverRunsAction(t *testing.T) {
	c := NewController(DefaultFields(), fixedNow)
	require.NoError(t, c.SetField(FieldCategoryID, "3"))
	require.NoError(t, c.SetField(FieldPaidByUserID, "1"))

	called := false
	err := c.Submit(context.Background(), func(context.Context, Fields) error {
		called = true
		return nil
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, verr.Validation.Err(FieldAmount), ErrAmountRequired)
	assert.False(t, called)
	assert.False(t, c.Submitting())
	assert.ErrorIs(t, c.Errors().Err(FieldAmount), ErrAmountRequired)
}

func TestController_SetFieldClearsOnlyThatError(t *testing.T) {
	c := NewController(DefaultFields(), fixedNow)
	_ = c.Submit(context.Background(), func(context.Context, Fields) error { return nil })
	require.Len(t, c.Errors().Invalid(), 3)

	require.NoError(t, c.SetField(FieldAmount, "x"))

	assert.NoError(t, c.Errors().Err(FieldAmount))
	assert.ErrorIs(t, c.Errors().Err(FieldCategoryID), ErrCategoryRequired)
}

func TestController_SubmitPassesSnapshot(t *testing.T) {
	c := NewController(DefaultFields(), fixedNow)
	require.NoError(t, c.SetField(FieldAmount, "9.99"))
	require.NoError(t, c.SetField(FieldCategoryID, "2"))
	require.NoError(t, c.SetField(FieldPaidByUserID, "1"))

	var got Fields
	err := c.Submit(context.Background(), func(_ context.Context, f Fields) error {
		assert.True(t, c.Submitting())
		got = f
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "9.99", got.Amount)
	assert.False(t, c.Submitting())
	assert.Nil(t, c.Errors())
}

func TestController_SubmitReturnsActionError(t *testing.T) {
	c := NewController(validFields(), fixedNow)
	boom := errors.New("boom")

	err := c.Submit(context.Background(), func(context.Context, Fields) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Submitting())
}

func TestController_ConcurrentSubmitIsRejected(t *testing.T) {
	c := NewController(validFields(), fixedNow)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	done := make(chan error, 1)
	go func() {
		done <- c.Submit(context.Background(), func(context.Context, Fields) error {
			mu.Lock()
			calls++
			mu.Unlock()
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := c.Submit(context.Background(), func(context.Context, Fields) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	})
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	assert.ErrorIs(t, c.Exclusive(context.Background(), func(context.Context) error { return nil }), ErrSubmitInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, calls)
	assert.False(t, c.Submitting())
}

func TestController_ResetAndClearTransient(t *testing.T) {
	c := NewController(DefaultFields(), fixedNow)
	for name, v := range map[Field]string{
		FieldAmount:       "4",
		FieldDescription:  "bread",
		FieldDate:         "2025-09-09",
		FieldCategoryID:   "5",
		FieldPaidByUserID: "2",
	} {
		require.NoError(t, c.SetField(name, v))
	}

	c.ClearTransient()
	f := c.Fields()
	assert.Empty(t, f.Amount)
	assert.Empty(t, f.Description)
	assert.Empty(t, f.Date)
	assert.Equal(t, int64(5), f.CategoryID)
	assert.Equal(t, int64(2), f.PaidByUserID)

	c.Reset()
	assert.Equal(t, DefaultFields(), c.Fields())
	assert.False(t, c.Dirty())
}

func TestController_TodayFollowsClock(t *testing.T) {
	c := NewController(DefaultFields(), fixedNow)
	assert.Equal(t, "2025-09-10", c.Today().String())
}
