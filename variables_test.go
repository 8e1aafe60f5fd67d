package flow_go

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestVariables_SetGet(t *testing.T) {
	defer goleak.VerifyNone(t)
	v := NewVariables()

	require.NoError(t, v.Set("a", 1))
	require.NoError(t, v.Set("b", nil)) // nil 은 무시

	assert.Equal(t, 1, v.Get("a", 0))
	assert.Equal(t, "def", v.Get("b", "def"))
	assert.False(t, v.Exists("b"))
	assert.Equal(t, 1, v.Size())

	require.NoError(t, v.Remove("a", "missing"))
	assert.Equal(t, 0, v.Size())
}

func TestVariables_FromDropsNil(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := map[string]any{"x": "y", "nil": nil}
	v := NewVariablesFrom(src)

	assert.Equal(t, 1, v.Size())
	src["x"] = "changed"
	assert.Equal(t, "y", v.Get("x", nil), "bag must own a copy of the source map")
}

func TestVariables_Freeze(t *testing.T) {
	defer goleak.VerifyNone(t)
	v := NewVariables()
	require.NoError(t, v.Set("k", "v"))

	f := v.Freeze()
	assert.True(t, f.Frozen())
	assert.False(t, v.Frozen())
	assert.Same(t, f, f.Freeze(), "freezing a frozen bag returns it")

	assert.ErrorIs(t, f.Set("k", "other"), ErrIllegalMutation)
	assert.ErrorIs(t, f.Remove("k"), ErrIllegalMutation)
	assert.ErrorIs(t, f.Clear(), ErrIllegalMutation)
	assert.ErrorIs(t, f.SetDefault(1), ErrIllegalMutation)

	// the source stays mutable and independent
	require.NoError(t, v.Set("k", "new"))
	assert.Equal(t, "v", f.Get("k", nil))
}

func TestVariables_Default(t *testing.T) {
	defer goleak.VerifyNone(t)
	v := NewVariables()
	assert.Nil(t, v.Default())
	require.NoError(t, v.SetDefault(42))
	assert.Equal(t, 42, v.Default())
	assert.True(t, v.Exists(DefaultKey))
}

func TestVariables_AllIsCopy(t *testing.T) {
	defer goleak.VerifyNone(t)
	v := NewVariablesFrom(map[string]any{"a": 1})
	all := v.All()
	all["b"] = 2
	assert.False(t, v.Exists("b"))
}

func TestGetAs(t *testing.T) {
	defer goleak.VerifyNone(t)
	v := NewVariablesFrom(map[string]any{"n": 3, "s": "str"})

	n, err := GetAs[int](v, "n")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = GetAs[int](v, "s")
	assert.Error(t, err)

	_, err = GetAs[string](v, "missing")
	assert.Error(t, err)
}

func TestVariables_ConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)
	v := NewVariables()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ { //nolint:intrange
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%10)
			if err := v.Set(key, i); err != nil && !errors.Is(err, ErrIllegalMutation) {
				t.Errorf("unexpected error: %v", err)
			}
			_ = v.Get(key, nil)
			_ = v.All()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, v.Size())
}
