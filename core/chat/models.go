package chat

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kikundi/core"
)

type Reaction struct {
	Emoji   string   `json:"emoji"`
	UserIDs []string `json:"user_ids"`
}

type Message struct {
	ID         string     `json:"id"`
	GroupID    string     `json:"group_id"`
	AuthorID   string     `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Body       string     `json:"body"`
	Pinned     bool       `json:"pinned"`
	Reactions  []Reaction `json:"reactions"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
}

// NewMessage contains information needed to post a new Message.
type NewMessage struct {
	Body string `json:"body" validate:"required,max=2000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

type QueryFilter struct {
	GroupID string    `query:"-"`
	Before  time.Time `query:"before"`
	Limit   int       `query:"limit"`
}

// ToggleReaction returns a new reaction list with the user's reaction for the
// emoji flipped: added when absent, removed when present. Reactions left with
// no users are dropped. The input list is not modified.
func ToggleReaction(reactions []Reaction, emoji, userID string) []Reaction {
	out := make([]Reaction, 0, len(reactions)+1)
	var seen bool
	for _, r := range reactions {
		if r.Emoji != emoji {
			out = append(out, r)
			continue
		}
		seen = true

		users := make([]string, 0, len(r.UserIDs)+1)
		var had bool
		for _, id := range r.UserIDs {
			if id == userID {
				had = true
				continue
			}
			users = append(users, id)
		}
		if !had {
			users = append(users, userID)
		}
		if len(users) > 0 {
			out = append(out, Reaction{Emoji: emoji, UserIDs: users})
		}
	}
	if !seen {
		out = append(out, Reaction{Emoji: emoji, UserIDs: []string{userID}})
	}
	return out
}

// CopyReactions deep-copies a reaction list; used to snapshot state before an
// optimistic toggle so a failed persist can roll it back verbatim.
func CopyReactions(reactions []Reaction) []Reaction {
	if reactions == nil {
		return nil
	}
	out := make([]Reaction, len(reactions))
	for i, r := range reactions {
		users := make([]string, len(r.UserIDs))
		copy(users, r.UserIDs)
		out[i] = Reaction{Emoji: r.Emoji, UserIDs: users}
	}
	return out
}
