package resource

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kikundi/core"
)

// Resource kinds
const (
	KindLink = "link"
	KindFile = "file"
	KindNote = "note"
)

type Resource struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Kind        string    `json:"kind"`
	Notes       string    `json:"notes,omitempty"`
	AddedBy     string    `json:"added_by"`
	AddedByName string    `json:"added_by_name"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

// NewResource contains information needed to share a new Resource.
type NewResource struct {
	Title string `json:"title" validate:"required"`
	URL   string `json:"url" validate:"omitempty,url"`
	Kind  string `json:"kind" validate:"required,oneof=link file note"`
	Notes string `json:"notes"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.URL = core.CleanString(nr.URL)
	nr.Notes = core.CleanString(nr.Notes)
	return validate.Struct(nr)
}
