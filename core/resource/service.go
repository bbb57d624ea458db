package resource

import (
	"context"
	"errors"
	"time"
)

var (
	// errors
	ErrNotFound = errors.New("resource not found")
)

type (
	Repository interface {
		CreateResource(ctx context.Context, res Resource) (Resource, error)
		QueryResources(ctx context.Context, groupID string) ([]Resource, error)
		GetResource(ctx context.Context, id string) (Resource, error)
		DeleteResourcesByID(ctx context.Context, ids []string) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Add(ctx context.Context, groupID, userID, userName string, nr NewResource) (Resource, error) {
	return svc.repo.CreateResource(ctx, Resource{
		GroupID:     groupID,
		Title:       nr.Title,
		URL:         nr.URL,
		Kind:        nr.Kind,
		Notes:       nr.Notes,
		AddedBy:     userID,
		AddedByName: userName,
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) List(ctx context.Context, groupID string) ([]Resource, error) {
	return svc.repo.QueryResources(ctx, groupID)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Resource, error) {
	return svc.repo.GetResource(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteResourcesByID(ctx, ids)
	return err
}
