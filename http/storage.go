package http

import (
	"context"

	"github.com/sagarc03/repostore"
)

// FacadeStorage serves Storage from a repostore.Facade.
type FacadeStorage struct {
	facade *repostore.Facade
}

var _ Storage = (*FacadeStorage)(nil)

func NewFacadeStorage(f *repostore.Facade) *FacadeStorage {
	return &FacadeStorage{facade: f}
}

func (s *FacadeStorage) Exists(ctx context.Context, uri, path string) (bool, error) {
	return s.facade.Exists(ctx, uri, path)
}

func (s *FacadeStorage) Get(ctx context.Context, uri, path string) ([]byte, error) {
	repo, err := s.facade.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}
	return repo.Get(ctx, path)
}

func (s *FacadeStorage) Put(ctx context.Context, uri, path string, data []byte) error {
	repo, err := s.facade.Resolve(ctx, uri)
	if err != nil {
		return err
	}
	return repo.Put(ctx, path, data)
}

func (s *FacadeStorage) Keys(ctx context.Context, uri, prefix string) ([]string, error) {
	repo, err := s.facade.Resolve(ctx, uri)
	if err != nil {
		return nil, err
	}
	return repo.Keys(ctx, prefix)
}

func (s *FacadeStorage) DeleteAll(ctx context.Context, uri, prefix string) error {
	repo, err := s.facade.Resolve(ctx, uri)
	if err != nil {
		return err
	}
	return repo.DeleteAll(ctx, prefix)
}

func (s *FacadeStorage) CreateContainer(ctx context.Context, uri string) (repostore.ContainerHandle, error) {
	repo, err := s.facade.Resolve(ctx, uri)
	if err != nil {
		return repostore.ContainerHandle{}, err
	}
	return repo.CreateContainer(ctx)
}

// DeleteContainer deletes every object first when force is set.
func (s *FacadeStorage) DeleteContainer(ctx context.Context, uri string, force bool) error {
	repo, err := s.facade.Resolve(ctx, uri)
	if err != nil {
		return err
	}
	if force {
		if err := repo.DeleteAll(ctx, ""); err != nil {
			return err
		}
	}
	return repo.DeleteContainer(ctx)
}
