package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core/resource"
)

type resourceRow struct {
	ID          string    `db:"id"`
	GroupID     string    `db:"group_id"`
	Title       string    `db:"title"`
	URL         string    `db:"url"`
	Kind        string    `db:"kind"`
	Notes       string    `db:"notes"`
	AddedBy     string    `db:"added_by"`
	AddedByName string    `db:"added_by_name"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r resourceRow) toResource() resource.Resource {
	return resource.Resource{
		ID:          r.ID,
		GroupID:     r.GroupID,
		Title:       r.Title,
		URL:         r.URL,
		Kind:        r.Kind,
		Notes:       r.Notes,
		AddedBy:     r.AddedBy,
		AddedByName: r.AddedByName,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type resourceRepository struct {
	db *sqlx.DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *sqlx.DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo resourceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return resource.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	res.ID = uuid.New().String()

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO resource (id, group_id, title, url, kind, notes, added_by, added_by_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.ID, res.GroupID, res.Title, res.URL, res.Kind, res.Notes, res.AddedBy, res.AddedByName, res.CreatedAt,
	)
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return res, nil
}

func (repo resourceRepository) QueryResources(ctx context.Context, groupID string) ([]resource.Resource, error) {
	var rows []resourceRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM resource WHERE group_id = $1 ORDER BY created_at DESC`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}

	resources := make([]resource.Resource, 0, len(rows))
	for _, r := range rows {
		resources = append(resources, r.toResource())
	}
	return resources, nil
}

func (repo resourceRepository) GetResource(ctx context.Context, id string) (resource.Resource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return resource.Resource{}, resource.ErrNotFound
	}
	var row resourceRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM resource WHERE id = $1`, id); err != nil {
		return resource.Resource{}, repo.trapNoRowsErr(err, "finding resource")
	}
	return row.toResource(), nil
}

func (repo resourceRepository) DeleteResourcesByID(ctx context.Context, ids []string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM resource WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting resources")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}
