package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kikundi/core"
)

func TestApplyRSVP(t *testing.T) {
	now := time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	att := func(userID string, status Status, at time.Time) Attendee {
		return Attendee{UserID: userID, Name: "User " + userID, Status: status, UpdatedAt: at}
	}

	t.Run("insert into empty list", func(t *testing.T) {
		got := ApplyRSVP(nil, "u1", "User u1", StatusGoing, now)
		assert.Equal(t, []Attendee{att("u1", StatusGoing, now)}, got)
	})

	t.Run("full replace of prior status", func(t *testing.T) {
		list := []Attendee{att("u1", StatusGoing, now), att("u2", StatusMaybe, now)}
		got := ApplyRSVP(list, "u1", "User u1", StatusNotGoing, later)

		assert.Len(t, got, 2)
		assert.Equal(t, att("u2", StatusMaybe, now), got[0])
		assert.Equal(t, att("u1", StatusNotGoing, later), got[1])
	})

	t.Run("idempotent", func(t *testing.T) {
		list := []Attendee{att("u2", StatusMaybe, now)}
		once := ApplyRSVP(list, "u1", "User u1", StatusGoing, now)
		twice := ApplyRSVP(once, "u1", "User u1", StatusGoing, now)
		assert.Equal(t, once, twice)
	})

	t.Run("other entries keep their order", func(t *testing.T) {
		list := []Attendee{
			att("u1", StatusGoing, now),
			att("u2", StatusMaybe, now),
			att("u3", StatusNotGoing, now),
		}
		got := ApplyRSVP(list, "u2", "User u2", StatusGoing, later)

		assert.Equal(t, "u1", got[0].UserID)
		assert.Equal(t, "u3", got[1].UserID)
		assert.Equal(t, "u2", got[2].UserID)
	})

	t.Run("input list not modified", func(t *testing.T) {
		list := []Attendee{att("u1", StatusGoing, now)}
		_ = ApplyRSVP(list, "u1", "User u1", StatusNotGoing, later)
		assert.Equal(t, StatusGoing, list[0].Status)
	})
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusGoing.Valid())
	assert.True(t, StatusMaybe.Valid())
	assert.True(t, StatusNotGoing.Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("attending").Valid())
}

func TestRSVPOptimisticRollback(t *testing.T) {
	now := time.Date(2024, time.January, 10, 14, 0, 0, 0, time.UTC)
	sess := Session{
		ID: "s1",
		Attendees: []Attendee{
			{UserID: "u1", Name: "User u1", Status: StatusGoing, UpdatedAt: now},
		},
	}
	snapshot := CopyAttendees(sess.Attendees)

	mut := core.BeginMutation(
		func() interface{} { return CopyAttendees(sess.Attendees) },
		func(snap interface{}) { sess.Attendees = snap.([]Attendee) },
	)
	err := mut.Apply(func() {
		sess.Attendees = ApplyRSVP(sess.Attendees, "u1", "User u1", StatusNotGoing, now.Add(time.Hour))
	})
	assert.NoError(t, err)
	assert.Equal(t, StatusNotGoing, sess.Attendees[0].Status)

	// persisting failed: prior snapshot must come back verbatim
	assert.NoError(t, mut.Rollback())
	assert.Equal(t, snapshot, sess.Attendees)

	assert.True(t, mut.Settled())
	assert.Equal(t, core.ErrMutationSettled, mut.Commit())
}
