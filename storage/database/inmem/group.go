package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/kikundi/core"
	"github.com/trezcool/kikundi/core/group"
)

type groupRepository struct {
	db *groupTable
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db.group}
}

func (repo *groupRepository) query() []group.Group {
	groups := make([]group.Group, 0, len(repo.db.table))
	for _, g := range repo.db.table {
		grp := *g
		grp.MemberCount = len(repo.db.members[grp.ID])
		groups = append(groups, grp)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].CreatedAt.Before(groups[j].CreatedAt) })
	return groups
}

func (repo *groupRepository) CheckNameUniqueness(_ context.Context, name string, excludedGroups ...group.Group) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]struct{}, len(excludedGroups))
	for _, g := range excludedGroups {
		excluded[g.ID] = struct{}{}
	}

	for _, grp := range repo.db.table {
		if _, skip := excluded[grp.ID]; skip {
			continue
		}
		if strings.EqualFold(grp.Name, name) {
			return group.ErrNameExists
		}
	}
	return nil
}

func (repo *groupRepository) CreateGroup(_ context.Context, grp group.Group, owner group.Member) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	grp.ID = uuid.New().String()
	repo.db.table[grp.ID] = &grp

	owner.GroupID = grp.ID
	owner.Role = group.MemberRoleOwner
	repo.db.members[grp.ID] = []group.Member{owner}

	grp.MemberCount = 1
	return grp, nil
}

func (repo *groupRepository) QueryGroups(_ context.Context, filter *group.QueryFilter, ordering []core.DBOrdering) ([]group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	groups := repo.query()
	if filter == nil || filter.IsEmpty() {
		return groups, nil
	}

	matches := make([]group.Group, 0, len(groups))
	for _, grp := range groups {
		if repo.matchGroup(grp, filter) {
			matches = append(matches, grp)
		}
	}
	return matches, nil
}

func (repo *groupRepository) matchGroup(grp group.Group, filter *group.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(grp.Name), search) &&
			!strings.Contains(strings.ToLower(grp.Subject), search) {
			return false
		}
	}
	if filter.Subject != "" && !strings.EqualFold(grp.Subject, filter.Subject) {
		return false
	}
	if filter.MemberID != "" {
		var found bool
		for _, mbr := range repo.db.members[grp.ID] {
			if mbr.UserID == filter.MemberID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (repo *groupRepository) GetGroup(_ context.Context, id string) (group.Group, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if grp, ok := repo.db.table[id]; ok {
		out := *grp
		out.MemberCount = len(repo.db.members[id])
		return out, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) UpdateGroup(_ context.Context, grp group.Group) (group.Group, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[grp.ID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	if grp.Name != "" {
		orig.Name = grp.Name
	}
	if grp.Subject != "" {
		orig.Subject = grp.Subject
	}
	orig.Description = grp.Description
	orig.IsPrivate = grp.IsPrivate
	if !grp.UpdatedAt.IsZero() {
		orig.UpdatedAt = grp.UpdatedAt
	}

	out := *orig
	out.MemberCount = len(repo.db.members[out.ID])
	return out, nil
}

func (repo *groupRepository) DeleteGroupsByID(_ context.Context, ids []string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			delete(repo.db.members, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *groupRepository) GetMember(_ context.Context, groupID, userID string) (group.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, mbr := range repo.db.members[groupID] {
		if mbr.UserID == userID {
			return mbr, nil
		}
	}
	return group.Member{}, group.ErrMemberNotFound
}

func (repo *groupRepository) QueryMembers(_ context.Context, groupID string) ([]group.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]group.Member, len(repo.db.members[groupID]))
	copy(members, repo.db.members[groupID])
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (repo *groupRepository) AddMember(_ context.Context, mbr group.Member) (group.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.members[mbr.GroupID] = append(repo.db.members[mbr.GroupID], mbr)
	return mbr, nil
}

func (repo *groupRepository) UpdateMember(_ context.Context, mbr group.Member) (group.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	members := repo.db.members[mbr.GroupID]
	for i, m := range members {
		if m.UserID == mbr.UserID {
			members[i].Role = mbr.Role
			return members[i], nil
		}
	}
	return group.Member{}, group.ErrMemberNotFound
}

func (repo *groupRepository) RemoveMember(_ context.Context, groupID, userID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	members := repo.db.members[groupID]
	for i, m := range members {
		if m.UserID == userID {
			repo.db.members[groupID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}
