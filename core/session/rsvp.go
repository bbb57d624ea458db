package session

import "time"

// RSVP statuses. A user holds at most one status per session.
type Status string

const (
	StatusGoing    Status = "going"
	StatusMaybe    Status = "maybe"
	StatusNotGoing Status = "not-going"
)

func (s Status) Valid() bool {
	switch s {
	case StatusGoing, StatusMaybe, StatusNotGoing:
		return true
	}
	return false
}

type Attendee struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Status    Status    `json:"rsvp_status"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// ApplyRSVP returns a new attendee list reflecting the user's RSVP.
// The transition is always a full replace: any prior entry for the user is
// removed and a single entry appended. Applying the same status twice yields
// a list identical in content. The input list is not modified.
func ApplyRSVP(attendees []Attendee, userID, name string, status Status, now time.Time) []Attendee {
	out := make([]Attendee, 0, len(attendees)+1)
	for _, att := range attendees {
		if att.UserID == userID {
			continue
		}
		out = append(out, att)
	}
	return append(out, Attendee{
		UserID:    userID,
		Name:      name,
		Status:    status,
		UpdatedAt: now,
	})
}

// CopyAttendees deep-copies an attendee list; used to snapshot state before
// an optimistic transition so a failed persist can roll it back verbatim.
func CopyAttendees(attendees []Attendee) []Attendee {
	if attendees == nil {
		return nil
	}
	out := make([]Attendee, len(attendees))
	copy(out, attendees)
	return out
}
