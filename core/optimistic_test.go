package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimisticMutation(t *testing.T) {
	newMut := func(state *[]string) *OptimisticMutation {
		return BeginMutation(
			func() interface{} {
				snap := make([]string, len(*state))
				copy(snap, *state)
				return snap
			},
			func(snapshot interface{}) { *state = snapshot.([]string) },
		)
	}

	t.Run("commit keeps applied state", func(t *testing.T) {
		state := []string{"a"}
		mut := newMut(&state)

		assert.NoError(t, mut.Apply(func() { state = append(state, "b") }))
		assert.NoError(t, mut.Commit())
		assert.Equal(t, []string{"a", "b"}, state)
		assert.True(t, mut.Settled())
	})

	t.Run("rollback restores snapshot", func(t *testing.T) {
		state := []string{"a", "b"}
		mut := newMut(&state)

		assert.NoError(t, mut.Apply(func() { state = []string{"z"} }))
		assert.NoError(t, mut.Rollback())
		assert.Equal(t, []string{"a", "b"}, state)
	})

	t.Run("rollback before apply restores snapshot", func(t *testing.T) {
		state := []string{"a"}
		mut := newMut(&state)

		state = append(state, "outside") // external change is also undone
		assert.NoError(t, mut.Rollback())
		assert.Equal(t, []string{"a"}, state)
	})

	t.Run("settles exactly once", func(t *testing.T) {
		state := []string{"a"}
		mut := newMut(&state)

		assert.NoError(t, mut.Apply(func() {}))
		assert.NoError(t, mut.Commit())
		assert.Equal(t, ErrMutationSettled, mut.Commit())
		assert.Equal(t, ErrMutationSettled, mut.Rollback())
		assert.Equal(t, ErrMutationSettled, mut.Apply(func() {}))
	})

	t.Run("commit requires apply", func(t *testing.T) {
		state := []string{"a"}
		mut := newMut(&state)
		assert.Equal(t, ErrMutationNotApplied, mut.Commit())
	})
}
