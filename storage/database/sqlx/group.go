package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core"
	"github.com/trezcool/kikundi/core/group"
)

// groupOrderColumns maps `?ordering=` fields to sortable columns.
var groupOrderColumns = map[string]string{
	"name":         "g.name",
	"subject":      "g.subject",
	"member_count": "member_count", // select alias
	"created_at":   "g.created_at",
}

type groupRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Subject     string    `db:"subject"`
	Description string    `db:"description"`
	OwnerID     string    `db:"owner_id"`
	IsPrivate   bool      `db:"is_private"`
	MemberCount int       `db:"member_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r groupRow) toGroup() group.Group {
	return group.Group{
		ID:          r.ID,
		Name:        r.Name,
		Subject:     r.Subject,
		Description: r.Description,
		OwnerID:     r.OwnerID,
		IsPrivate:   r.IsPrivate,
		MemberCount: r.MemberCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type memberRow struct {
	GroupID  string    `db:"group_id"`
	UserID   string    `db:"user_id"`
	UserName string    `db:"user_name"`
	Role     string    `db:"role"`
	JoinedAt time.Time `db:"joined_at"`
}

func (r memberRow) toMember() group.Member {
	return group.Member{
		GroupID:  r.GroupID,
		UserID:   r.UserID,
		UserName: r.UserName,
		Role:     r.Role,
		JoinedAt: r.JoinedAt,
	}
}

const groupSelect = `
SELECT g.*, (SELECT COUNT(*) FROM group_member gm WHERE gm.group_id = g.id) AS member_count
FROM "group" g`

const memberSelect = `
SELECT gm.group_id, gm.user_id, u.name AS user_name, gm.role, gm.joined_at
FROM group_member gm
JOIN "user" u ON u.id = gm.user_id`

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo groupRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return group.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo groupRepository) CheckNameUniqueness(ctx context.Context, name string, excludedGroups ...group.Group) error {
	query := `SELECT COUNT(*) FROM "group" WHERE LOWER(name) = LOWER($1)`
	args := []interface{}{name}
	if len(excludedGroups) > 0 {
		ids := make([]string, 0, len(excludedGroups))
		for _, g := range excludedGroups {
			ids = append(ids, g.ID)
		}
		query += ` AND NOT (id = ANY($2))`
		args = append(args, pq.Array(ids))
	}

	var cnt int
	if err := repo.db.GetContext(ctx, &cnt, query, args...); err != nil {
		return errors.Wrap(err, "checking group uniqueness")
	}
	if cnt > 0 {
		return group.ErrNameExists
	}
	return nil
}

// CreateGroup inserts the group and its owner membership in one transaction.
func (repo groupRepository) CreateGroup(ctx context.Context, grp group.Group, owner group.Member) (group.Group, error) {
	grp.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO "group" (id, name, subject, description, owner_id, is_private, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		grp.ID, grp.Name, grp.Subject, grp.Description, grp.OwnerID, grp.IsPrivate, grp.CreatedAt, grp.UpdatedAt,
	)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_member (group_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
		grp.ID, owner.UserID, group.MemberRoleOwner, owner.JoinedAt,
	)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group owner")
	}

	if err = tx.Commit(); err != nil {
		return group.Group{}, errors.Wrap(err, "committing tx")
	}
	grp.MemberCount = 1
	return grp, nil
}

func (repo groupRepository) QueryGroups(ctx context.Context, filter *group.QueryFilter, ordering []core.DBOrdering) ([]group.Group, error) {
	query := groupSelect
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			conds = append(conds, "(g.name ILIKE "+p+" OR g.subject ILIKE "+p+")")
		}
		if filter.Subject != "" {
			conds = append(conds, "g.subject ILIKE "+arg(filter.Subject))
		}
		if filter.MemberID != "" {
			conds = append(conds, "EXISTS (SELECT 1 FROM group_member gm2 WHERE gm2.group_id = g.id AND gm2.user_id = "+arg(filter.MemberID)+")")
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering, groupOrderColumns, "g.created_at ASC")

	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}

	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.toGroup())
	}
	return groups, nil
}

func (repo groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return group.Group{}, group.ErrNotFound
	}
	var row groupRow
	if err := repo.db.GetContext(ctx, &row, groupSelect+` WHERE g.id = $1`, id); err != nil {
		return group.Group{}, repo.trapNoRowsErr(err, "finding group")
	}
	return row.toGroup(), nil
}

func (repo groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	sets := []string{}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if grp.Name != "" {
		sets = append(sets, "name = "+arg(grp.Name))
	}
	if grp.Subject != "" {
		sets = append(sets, "subject = "+arg(grp.Subject))
	}
	sets = append(sets, "description = "+arg(grp.Description))
	sets = append(sets, "is_private = "+arg(grp.IsPrivate))
	if !grp.UpdatedAt.IsZero() {
		sets = append(sets, "updated_at = "+arg(grp.UpdatedAt.UTC()))
	}

	query := `UPDATE "group" SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + arg(grp.ID)
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return group.Group{}, errors.Wrap(err, "updating group")
	}
	return repo.GetGroup(ctx, grp.ID)
}

func (repo groupRepository) DeleteGroupsByID(ctx context.Context, ids []string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM "group" WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting groups")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}

func (repo groupRepository) GetMember(ctx context.Context, groupID, userID string) (group.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row, memberSelect+` WHERE gm.group_id = $1 AND gm.user_id = $2`, groupID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return group.Member{}, group.ErrMemberNotFound
		}
		return group.Member{}, errors.Wrap(err, "finding group member")
	}
	return row.toMember(), nil
}

func (repo groupRepository) QueryMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	var rows []memberRow
	err := repo.db.SelectContext(ctx, &rows, memberSelect+` WHERE gm.group_id = $1 ORDER BY gm.joined_at ASC`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "querying group members")
	}

	members := make([]group.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.toMember())
	}
	return members, nil
}

func (repo groupRepository) AddMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO group_member (group_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`,
		mbr.GroupID, mbr.UserID, mbr.Role, mbr.JoinedAt,
	)
	if err != nil {
		return group.Member{}, errors.Wrap(err, "inserting group member")
	}
	return repo.GetMember(ctx, mbr.GroupID, mbr.UserID)
}

func (repo groupRepository) UpdateMember(ctx context.Context, mbr group.Member) (group.Member, error) {
	_, err := repo.db.ExecContext(ctx,
		`UPDATE group_member SET role = $1 WHERE group_id = $2 AND user_id = $3`,
		mbr.Role, mbr.GroupID, mbr.UserID,
	)
	if err != nil {
		return group.Member{}, errors.Wrap(err, "updating group member")
	}
	return repo.GetMember(ctx, mbr.GroupID, mbr.UserID)
}

func (repo groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM group_member WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return errors.Wrap(err, "removing group member")
}
