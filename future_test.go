package flow_go

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFuture_CompleteOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := NewFuture[int]()
	assert.False(t, f.IsDone())

	assert.True(t, f.Complete(1, nil))
	assert.False(t, f.Complete(2, errors.New("late")), "second completion must be rejected")

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, f.IsDone())
}

func TestFuture_OnCompleteBeforeAndAfter(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := NewFuture[string]()

	var got []string
	var mu sync.Mutex
	record := func(v string, _ error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, v)
	}

	f.OnComplete(record)
	f.Complete("x", nil)
	f.OnComplete(record) // already complete: runs immediately

	assert.Equal(t, []string{"x", "x"}, got)
}

func TestFuture_GetHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := NewFuture[int]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	v, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, v)
	assert.False(t, f.IsDone())
}

func TestFailedCarriesValue(t *testing.T) {
	defer goleak.VerifyNone(t)
	boom := errors.New("boom")
	v, err := Failed(7, boom).Wait()
	assert.Equal(t, 7, v)
	assert.ErrorIs(t, err, boom)
}

func TestJoin_Empty(t *testing.T) {
	defer goleak.VerifyNone(t)
	j := Join[int]()
	assert.True(t, j.IsDone())
	_, err := j.Wait()
	assert.NoError(t, err)
}

func TestJoin_WaitsForAllAndJoinsErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	a, b, c := NewFuture[int](), NewFuture[int](), NewFuture[int]()
	j := Join(a, b, c)

	errA := errors.New("a failed")
	errC := errors.New("c failed")
	a.Complete(0, errA)
	assert.False(t, j.IsDone(), "join must wait for every input, not fail fast")
	b.Complete(1, nil)
	c.Complete(0, errC)

	_, err := j.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
}

func TestJoin_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)
	const n = 100
	fs := make([]*Future[int], n)
	for i := range fs {
		fs[i] = NewFuture[int]()
	}
	j := Join(fs...)

	var wg sync.WaitGroup
	for i := range fs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fs[i].Complete(i, nil)
		}(i)
	}
	wg.Wait()

	_, err := j.Get(context.Background())
	assert.NoError(t, err)
}
