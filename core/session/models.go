package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kikundi/core"
)

// UnknownGroupName stands in for sessions whose group display name is missing.
const UnknownGroupName = "Unknown Group"

type Session struct {
	ID              string     `json:"id"`
	GroupID         string     `json:"group_id"`
	GroupName       string     `json:"group_name"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	ScheduledStart  time.Time  `json:"scheduled_start"` // UTC
	DurationMinutes int        `json:"duration_minutes"`
	CreatedBy       string     `json:"created_by"`
	Attendees       []Attendee `json:"attendees"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

// ScheduledEnd derives the window end: start + duration, exact, no rounding.
func (s Session) ScheduledEnd() time.Time {
	return s.ScheduledStart.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

func (s Session) DisplayGroupName() string {
	if s.GroupName == "" {
		return UnknownGroupName
	}
	return s.GroupName
}

// NewSession contains information needed to schedule a new Session.
type NewSession struct {
	Title           string    `json:"title" validate:"required"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	ScheduledStart  time.Time `json:"scheduled_start" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Description = core.CleanString(ns.Description)
	ns.Location = core.CleanString(ns.Location)
	return validate.Struct(ns)
}

// UpdateSession defines what information may be provided to modify an existing Session.
type UpdateSession struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Location        string    `json:"location"`
	ScheduledStart  time.Time `json:"scheduled_start"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,gt=0"`
}

func (us *UpdateSession) Validate(orig Session, validate *validator.Validate) error {
	title := core.CleanString(us.Title)
	if title != "" {
		us.Title = title
	} else {
		us.Title = orig.Title
	}
	us.Description = core.CleanString(us.Description)
	us.Location = core.CleanString(us.Location)

	if us.ScheduledStart.IsZero() {
		us.ScheduledStart = orig.ScheduledStart
	}
	if us.DurationMinutes == 0 {
		us.DurationMinutes = orig.DurationMinutes
	}
	return validate.Struct(us)
}

type QueryFilter struct {
	GroupID string    `query:"-"`
	From    time.Time `query:"from"`
	To      time.Time `query:"to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.GroupID == "" && qf.From.IsZero() && qf.To.IsZero()
}
