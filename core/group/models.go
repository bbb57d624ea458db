package group

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kikundi/core"
)

// Membership roles, scoped to a single group.
const (
	MemberRoleOwner     = "owner"
	MemberRoleOrganizer = "organizer"
	MemberRoleMember    = "member"
)

var memberRolePriorities = map[string]int{
	MemberRoleOwner:     3,
	MemberRoleOrganizer: 2,
	MemberRoleMember:    1,
}

func MemberRolePriority(role string) int {
	return memberRolePriorities[role]
}

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	IsPrivate   bool      `json:"is_private"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Member struct {
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"` // UTC
}

func (m Member) CanOrganize() bool {
	return MemberRolePriority(m.Role) >= memberRolePriorities[MemberRoleOrganizer]
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name        string `json:"name" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

func (ng *NewGroup) Validate(validate *validator.Validate, svc *Service) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Subject = core.CleanString(ng.Subject)
	ng.Description = core.CleanString(ng.Description)

	if err := validate.Struct(ng); err != nil {
		return err
	}
	return svc.checkNameUniqueness(ng.Name)
}

// UpdateGroup defines what information may be provided to modify an existing Group.
type UpdateGroup struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	IsPrivate   *bool  `json:"is_private"`
}

func (ug *UpdateGroup) Validate(orig Group, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(ug.Name)
	if name != "" {
		ug.Name = name
	} else {
		ug.Name = orig.Name
	}

	subject := core.CleanString(ug.Subject)
	if subject != "" {
		ug.Subject = subject
	} else {
		ug.Subject = orig.Subject
	}
	ug.Description = core.CleanString(ug.Description)

	if err := validate.Struct(ug); err != nil {
		return err
	}
	return svc.checkNameUniqueness(ug.Name, orig)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Subject  string `query:"subject"`
	MemberID string `query:"-"` // set from the authed user for "my groups"
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Subject == "" && qf.MemberID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Subject = core.CleanString(qf.Subject)
}
