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
	"github.com/trezcool/kikundi/core/session"
)

// sessionOrderColumns maps `?ordering=` fields to sortable columns.
var sessionOrderColumns = map[string]string{
	"title":            "s.title",
	"scheduled_start":  "s.scheduled_start",
	"duration_minutes": "s.duration_minutes",
	"created_at":       "s.created_at",
}

type sessionRow struct {
	ID              string    `db:"id"`
	GroupID         string    `db:"group_id"`
	GroupName       string    `db:"group_name"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	Location        string    `db:"location"`
	ScheduledStart  time.Time `db:"scheduled_start"`
	DurationMinutes int       `db:"duration_minutes"`
	CreatedBy       string    `db:"created_by"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r sessionRow) toSession() session.Session {
	return session.Session{
		ID:              r.ID,
		GroupID:         r.GroupID,
		GroupName:       r.GroupName,
		Title:           r.Title,
		Description:     r.Description,
		Location:        r.Location,
		ScheduledStart:  r.ScheduledStart.UTC(),
		DurationMinutes: r.DurationMinutes,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type attendeeRow struct {
	SessionID  string    `db:"session_id"`
	UserID     string    `db:"user_id"`
	Name       string    `db:"name"`
	RSVPStatus string    `db:"rsvp_status"`
	UpdatedAt  time.Time `db:"updated_at"`
}

const sessionSelect = `
SELECT s.id, s.group_id, g.name AS group_name, s.title, s.description, s.location,
       s.scheduled_start, s.duration_minutes, s.created_by, s.created_at, s.updated_at
FROM session s
JOIN "group" g ON g.id = s.group_id`

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return session.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	sess.ID = uuid.New().String()

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO session (id, group_id, title, description, location, scheduled_start, duration_minutes, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sess.ID, sess.GroupID, sess.Title, sess.Description, sess.Location,
		sess.ScheduledStart.UTC(), sess.DurationMinutes, sess.CreatedBy, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	query := sessionSelect
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if filter != nil {
		if filter.GroupID != "" {
			conds = append(conds, "s.group_id = "+arg(filter.GroupID))
		}
		if !filter.From.IsZero() {
			conds = append(conds, "(s.scheduled_start + s.duration_minutes * INTERVAL '1 minute') > "+arg(filter.From.UTC()))
		}
		if !filter.To.IsZero() {
			conds = append(conds, "s.scheduled_start < "+arg(filter.To.UTC()))
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(ordering, sessionOrderColumns, "s.scheduled_start ASC")

	rows, err := repo.querySessionRows(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return repo.attachAttendees(ctx, rows)
}

func (repo sessionRepository) QuerySessionsForUserByRange(ctx context.Context, userID string, from, to time.Time) ([]session.Session, error) {
	query := sessionSelect + `
JOIN group_member gm ON gm.group_id = s.group_id AND gm.user_id = $1
WHERE s.scheduled_start < $3 AND (s.scheduled_start + s.duration_minutes * INTERVAL '1 minute') > $2
ORDER BY s.scheduled_start ASC`

	rows, err := repo.querySessionRows(ctx, query, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions by range")
	}
	return repo.attachAttendees(ctx, rows)
}

func (repo sessionRepository) GetSession(ctx context.Context, id string) (session.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return session.Session{}, session.ErrNotFound
	}
	var row sessionRow
	if err := repo.db.GetContext(ctx, &row, sessionSelect+` WHERE s.id = $1`, id); err != nil {
		return session.Session{}, repo.trapNoRowsErr(err, "finding session")
	}

	sessions, err := repo.attachAttendees(ctx, []sessionRow{row})
	if err != nil {
		return session.Session{}, err
	}
	return sessions[0], nil
}

func (repo sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	sets := []string{}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if sess.Title != "" {
		sets = append(sets, "title = "+arg(sess.Title))
	}
	sets = append(sets, "description = "+arg(sess.Description))
	sets = append(sets, "location = "+arg(sess.Location))
	if !sess.ScheduledStart.IsZero() {
		sets = append(sets, "scheduled_start = "+arg(sess.ScheduledStart.UTC()))
	}
	if sess.DurationMinutes > 0 {
		sets = append(sets, "duration_minutes = "+arg(sess.DurationMinutes))
	}
	if !sess.UpdatedAt.IsZero() {
		sets = append(sets, "updated_at = "+arg(sess.UpdatedAt.UTC()))
	}

	query := `UPDATE session SET ` + strings.Join(sets, ", ") + ` WHERE id = ` + arg(sess.ID)
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	return repo.GetSession(ctx, sess.ID)
}

func (repo sessionRepository) DeleteSessionsByID(ctx context.Context, ids []string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM session WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting sessions")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}

// ReplaceAttendees swaps the full attendee list in one transaction.
func (repo sessionRepository) ReplaceAttendees(ctx context.Context, sessionID string, attendees []session.Attendee) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM session_attendee WHERE session_id = $1`, sessionID); err != nil {
		return errors.Wrap(err, "clearing session attendees")
	}
	for _, att := range attendees {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_attendee (session_id, user_id, name, rsvp_status, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			sessionID, att.UserID, att.Name, string(att.Status), att.UpdatedAt.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "inserting session attendee")
		}
	}
	return errors.Wrap(tx.Commit(), "committing tx")
}

func (repo sessionRepository) querySessionRows(ctx context.Context, query string, args ...interface{}) ([]sessionRow, error) {
	var rows []sessionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (repo sessionRepository) attachAttendees(ctx context.Context, rows []sessionRow) ([]session.Session, error) {
	sessions := make([]session.Session, 0, len(rows))
	if len(rows) == 0 {
		return sessions, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var attRows []attendeeRow
	err := repo.db.SelectContext(ctx, &attRows,
		`SELECT * FROM session_attendee WHERE session_id = ANY($1) ORDER BY updated_at ASC`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying session attendees")
	}

	bySession := make(map[string][]session.Attendee, len(rows))
	for _, ar := range attRows {
		bySession[ar.SessionID] = append(bySession[ar.SessionID], session.Attendee{
			UserID:    ar.UserID,
			Name:      ar.Name,
			Status:    session.Status(ar.RSVPStatus),
			UpdatedAt: ar.UpdatedAt.UTC(),
		})
	}
	for _, r := range rows {
		sess := r.toSession()
		sess.Attendees = bySession[r.ID]
		sessions = append(sessions, sess)
	}
	return sessions, nil
}
