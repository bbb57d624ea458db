package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/kikundi/core/chat"
)

type chatRepository struct {
	db *messageTable
}

var _ chat.Repository = (*chatRepository)(nil)

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db.message}
}

func (repo *chatRepository) query() []chat.Message {
	msgs := make([]chat.Message, 0, len(repo.db.table))
	for _, m := range repo.db.table {
		msg := *m
		msg.Reactions = chat.CopyReactions(m.Reactions)
		msgs = append(msgs, msg)
	}
	// newest first
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	return msgs
}

func (repo *chatRepository) CreateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	msg.ID = uuid.New().String()
	stored := msg
	stored.Reactions = chat.CopyReactions(msg.Reactions)
	repo.db.table[msg.ID] = &stored
	return msg, nil
}

func (repo *chatRepository) QueryMessages(_ context.Context, filter *chat.QueryFilter) ([]chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	limit := chat.DefaultPageSize
	if filter != nil && filter.Limit > 0 {
		limit = filter.Limit
	}

	matches := make([]chat.Message, 0, limit)
	for _, msg := range repo.query() {
		if filter != nil {
			if filter.GroupID != "" && msg.GroupID != filter.GroupID {
				continue
			}
			if !filter.Before.IsZero() && !msg.CreatedAt.Before(filter.Before) {
				continue
			}
		}
		matches = append(matches, msg)
		if len(matches) >= limit {
			break
		}
	}
	return matches, nil
}

func (repo *chatRepository) GetMessage(_ context.Context, id string) (chat.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if msg, ok := repo.db.table[id]; ok {
		out := *msg
		out.Reactions = chat.CopyReactions(msg.Reactions)
		return out, nil
	}
	return chat.Message{}, chat.ErrNotFound
}

func (repo *chatRepository) UpdateMessage(_ context.Context, msg chat.Message) (chat.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[msg.ID]
	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	orig.Pinned = msg.Pinned
	orig.Reactions = chat.CopyReactions(msg.Reactions)

	out := *orig
	out.Reactions = chat.CopyReactions(orig.Reactions)
	return out, nil
}

func (repo *chatRepository) DeleteMessagesByID(_ context.Context, ids []string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}
