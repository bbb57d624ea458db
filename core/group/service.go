package group

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/kikundi/core"
)

var (
	// errors
	ErrNotFound        = errors.New("group not found")
	ErrNameExists      = errors.New("a group with this name already exists")
	ErrNotMember       = errors.New("user is not a member of this group")
	ErrOwnerLeaving    = errors.New("the group owner cannot leave; transfer ownership or delete the group")
	ErrOwnerRoleChange = errors.New("the group owner's role cannot be changed")
	ErrMemberNotFound  = errors.New("member not found")
)

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string, excludedGroups ...Group) error
		CreateGroup(ctx context.Context, grp Group, owner Member) (Group, error)
		// QueryGroups applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Group.Name or Group.Subject.
		QueryGroups(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		DeleteGroupsByID(ctx context.Context, ids []string) (int, error)

		GetMember(ctx context.Context, groupID, userID string) (Member, error)
		QueryMembers(ctx context.Context, groupID string) ([]Member, error)
		AddMember(ctx context.Context, mbr Member) (Member, error)
		UpdateMember(ctx context.Context, mbr Member) (Member, error)
		RemoveMember(ctx context.Context, groupID, userID string) error
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) checkNameUniqueness(name string, exclGroups ...Group) error {
	if err := svc.repo.CheckNameUniqueness(context.Background(), name, exclGroups...); err != nil {
		if err == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create persists the new group; the creator becomes its owner member.
func (svc *Service) Create(ctx context.Context, ownerID, ownerName string, ng NewGroup) (Group, error) {
	now := time.Now().UTC()
	grp := Group{
		Name:        ng.Name,
		Subject:     ng.Subject,
		Description: ng.Description,
		OwnerID:     ownerID,
		IsPrivate:   ng.IsPrivate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	owner := Member{
		UserID:   ownerID,
		UserName: ownerName,
		Role:     MemberRoleOwner,
		JoinedAt: now,
	}
	return svc.repo.CreateGroup(ctx, grp, owner)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Group, error) {
	return svc.repo.QueryGroups(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, ug UpdateGroup) (Group, error) {
	grp := Group{
		ID:          id,
		Name:        ug.Name,
		Subject:     ug.Subject,
		Description: ug.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	if ug.IsPrivate != nil {
		grp.IsPrivate = *ug.IsPrivate
	}
	return svc.repo.UpdateGroup(ctx, grp)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteGroupsByID(ctx, ids)
	return err
}

// Join adds the user as a plain member. Joining a group the user already
// belongs to is a no-op returning the existing membership.
func (svc *Service) Join(ctx context.Context, groupID, userID, userName string) (Member, error) {
	if mbr, err := svc.repo.GetMember(ctx, groupID, userID); err == nil {
		return mbr, nil
	} else if err != ErrMemberNotFound {
		return Member{}, err
	}

	return svc.repo.AddMember(ctx, Member{
		GroupID:  groupID,
		UserID:   userID,
		UserName: userName,
		Role:     MemberRoleMember,
		JoinedAt: time.Now().UTC(),
	})
}

// Leave removes the user's membership. The owner cannot leave.
func (svc *Service) Leave(ctx context.Context, groupID, userID string) error {
	mbr, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if mbr.Role == MemberRoleOwner {
		return core.NewValidationError(ErrOwnerLeaving)
	}
	return svc.repo.RemoveMember(ctx, groupID, userID)
}

// RemoveMember removes another user's membership; the owner membership is protected.
func (svc *Service) RemoveMember(ctx context.Context, groupID, userID string) error {
	mbr, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if mbr.Role == MemberRoleOwner {
		return core.NewValidationError(ErrOwnerLeaving)
	}
	return svc.repo.RemoveMember(ctx, groupID, userID)
}

// SetMemberRole promotes or demotes a member. The owner membership is
// protected: demoting it would orphan the group while OwnerID still points at
// the demoted user.
func (svc *Service) SetMemberRole(ctx context.Context, groupID, userID, role string) (Member, error) {
	mbr, err := svc.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return Member{}, err
	}
	if mbr.Role == MemberRoleOwner {
		return Member{}, core.NewValidationError(ErrOwnerRoleChange)
	}
	mbr.Role = role
	return svc.repo.UpdateMember(ctx, mbr)
}

func (svc *Service) Members(ctx context.Context, groupID string) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, groupID)
}

// GetMember returns the user's membership in the group, or ErrMemberNotFound.
func (svc *Service) GetMember(ctx context.Context, groupID, userID string) (Member, error) {
	return svc.repo.GetMember(ctx, groupID, userID)
}
