package core

import "errors"

var (
	ErrMutationSettled    = errors.New("mutation already settled")
	ErrMutationNotApplied = errors.New("mutation not applied yet")
)

type mutationState int

const (
	mutationPending mutationState = iota
	mutationApplied
	mutationCommitted
	mutationRolledBack
)

// OptimisticMutation is a local state change applied before an authoritative
// call confirms it. The prior state is snapshotted up front; Rollback restores
// it verbatim when the call fails, Commit discards it on success.
// One mutation settles exactly once.
type OptimisticMutation struct {
	snapshot interface{}
	state    mutationState
	clone    func() interface{}
	restore  func(snapshot interface{})
}

// BeginMutation snapshots the current state via clone.
// restore must put a snapshot back in place of the live state.
func BeginMutation(clone func() interface{}, restore func(snapshot interface{})) *OptimisticMutation {
	return &OptimisticMutation{
		snapshot: clone(),
		clone:    clone,
		restore:  restore,
	}
}

// Apply runs the tentative change against the live state.
func (m *OptimisticMutation) Apply(change func()) error {
	if m.state != mutationPending {
		return ErrMutationSettled
	}
	change()
	m.state = mutationApplied
	return nil
}

// Commit settles the mutation, keeping the applied state.
func (m *OptimisticMutation) Commit() error {
	if m.state != mutationApplied {
		if m.state == mutationPending {
			return ErrMutationNotApplied
		}
		return ErrMutationSettled
	}
	m.state = mutationCommitted
	m.snapshot = nil
	return nil
}

// Rollback settles the mutation, restoring the snapshot taken at Begin.
func (m *OptimisticMutation) Rollback() error {
	switch m.state {
	case mutationCommitted, mutationRolledBack:
		return ErrMutationSettled
	}
	m.restore(m.snapshot)
	m.state = mutationRolledBack
	return nil
}

// Settled reports whether the mutation has been committed or rolled back.
func (m *OptimisticMutation) Settled() bool {
	return m.state == mutationCommitted || m.state == mutationRolledBack
}
