package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core/chat"
)

type messageRow struct {
	ID         string          `db:"id"`
	GroupID    string          `db:"group_id"`
	AuthorID   string          `db:"author_id"`
	AuthorName string          `db:"author_name"`
	Body       string          `db:"body"`
	Pinned     bool            `db:"pinned"`
	Reactions  json.RawMessage `db:"reactions"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (r messageRow) toMessage() (chat.Message, error) {
	msg := chat.Message{
		ID:         r.ID,
		GroupID:    r.GroupID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Body:       r.Body,
		Pinned:     r.Pinned,
		CreatedAt:  r.CreatedAt.UTC(),
	}
	if len(r.Reactions) > 0 {
		if err := json.Unmarshal(r.Reactions, &msg.Reactions); err != nil {
			return chat.Message{}, errors.Wrap(err, "decoding message reactions")
		}
	}
	return msg, nil
}

func marshalReactions(reactions []chat.Reaction) (json.RawMessage, error) {
	if reactions == nil {
		reactions = []chat.Reaction{}
	}
	raw, err := json.Marshal(reactions)
	return raw, errors.Wrap(err, "encoding message reactions")
}

type chatRepository struct {
	db *sqlx.DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo chatRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return chat.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo chatRepository) CreateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.ID = uuid.New().String()
	raw, err := marshalReactions(msg.Reactions)
	if err != nil {
		return chat.Message{}, err
	}

	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO message (id, group_id, author_id, author_name, body, pinned, reactions, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.GroupID, msg.AuthorID, msg.AuthorName, msg.Body, msg.Pinned, raw, msg.CreatedAt,
	)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo chatRepository) QueryMessages(ctx context.Context, filter *chat.QueryFilter) ([]chat.Message, error) {
	query := `SELECT * FROM message`
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	limit := chat.DefaultPageSize
	if filter != nil {
		if filter.GroupID != "" {
			conds = append(conds, "group_id = "+arg(filter.GroupID))
		}
		if !filter.Before.IsZero() {
			conds = append(conds, "created_at < "+arg(filter.Before.UTC()))
		}
		if filter.Limit > 0 {
			limit = filter.Limit
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT " + arg(limit)

	var rows []messageRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}

	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msg, err := r.toMessage()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (repo chatRepository) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return chat.Message{}, chat.ErrNotFound
	}
	var row messageRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM message WHERE id = $1`, id); err != nil {
		return chat.Message{}, repo.trapNoRowsErr(err, "finding message")
	}
	return row.toMessage()
}

func (repo chatRepository) UpdateMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	raw, err := marshalReactions(msg.Reactions)
	if err != nil {
		return chat.Message{}, err
	}

	_, err = repo.db.ExecContext(ctx,
		`UPDATE message SET pinned = $1, reactions = $2 WHERE id = $3`,
		msg.Pinned, raw, msg.ID,
	)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "updating message")
	}
	return repo.GetMessage(ctx, msg.ID)
}

func (repo chatRepository) DeleteMessagesByID(ctx context.Context, ids []string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM message WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting messages")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}
