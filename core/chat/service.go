package chat

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/kikundi/core"
)

// DefaultPageSize bounds message listing when the caller does not.
const DefaultPageSize = 50

var (
	// errors
	ErrNotFound = errors.New("message not found")
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessages returns messages newest first; Before and Limit page them.
		QueryMessages(ctx context.Context, filter *QueryFilter) ([]Message, error)
		GetMessage(ctx context.Context, id string) (Message, error)
		UpdateMessage(ctx context.Context, msg Message) (Message, error)
		DeleteMessagesByID(ctx context.Context, ids []string) (int, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) Post(ctx context.Context, groupID, authorID, authorName string, nm NewMessage) (Message, error) {
	return svc.repo.CreateMessage(ctx, Message{
		GroupID:    groupID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Body:       nm.Body,
		CreatedAt:  time.Now().UTC(),
	})
}

func (svc *Service) List(ctx context.Context, filter *QueryFilter) ([]Message, error) {
	if filter.Limit <= 0 || filter.Limit > DefaultPageSize {
		filter.Limit = DefaultPageSize
	}
	return svc.repo.QueryMessages(ctx, filter)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Message, error) {
	return svc.repo.GetMessage(ctx, id)
}

// ToggleReaction flips the user's reaction on the message. The reaction list
// transition is applied optimistically on the loaded message and rolled back
// to the prior snapshot if persisting fails.
func (svc *Service) ToggleReaction(ctx context.Context, msg *Message, emoji, userID string) error {
	mut := core.BeginMutation(
		func() interface{} { return CopyReactions(msg.Reactions) },
		func(snapshot interface{}) { msg.Reactions = snapshot.([]Reaction) },
	)
	_ = mut.Apply(func() {
		msg.Reactions = ToggleReaction(msg.Reactions, emoji, userID)
	})

	if _, err := svc.repo.UpdateMessage(ctx, *msg); err != nil {
		_ = mut.Rollback()
		return pkgerrors.Wrap(err, "saving reaction")
	}
	_ = mut.Commit()
	return nil
}

// TogglePin flips the message's pinned flag, rolling back on a failed persist.
func (svc *Service) TogglePin(ctx context.Context, msg *Message) error {
	mut := core.BeginMutation(
		func() interface{} { return msg.Pinned },
		func(snapshot interface{}) { msg.Pinned = snapshot.(bool) },
	)
	_ = mut.Apply(func() { msg.Pinned = !msg.Pinned })

	if _, err := svc.repo.UpdateMessage(ctx, *msg); err != nil {
		_ = mut.Rollback()
		return pkgerrors.Wrap(err, "saving pin")
	}
	_ = mut.Commit()
	return nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteMessagesByID(ctx, ids)
	return err
}
