package repostore_test

import (
	"context"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/sagarc03/repostore"
	"github.com/stretchr/testify/mock"
)

type SpyDriver struct {
	mock.Mock
	scheme repostore.Scheme
}

func (s *SpyDriver) Scheme() repostore.Scheme { return s.scheme }

func (s *SpyDriver) Exists(ctx context.Context, root, key string) (repostore.Existence, error) {
	args := s.Called(ctx, root, key)
	return args.Get(0).(repostore.Existence), args.Error(1)
}

func (s *SpyDriver) Get(ctx context.Context, root, key string) ([]byte, error) {
	args := s.Called(ctx, root, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (s *SpyDriver) Put(ctx context.Context, root, key string, data []byte) error {
	args := s.Called(ctx, root, key, data)
	return args.Error(0)
}

func (s *SpyDriver) List(ctx context.Context, root, prefix string) iter.Seq2[string, error] {
	args := s.Called(ctx, root, prefix)
	keys, _ := args.Get(0).([]string)
	err := args.Error(1)
	return func(yield func(string, error) bool) {
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}

func (s *SpyDriver) DeleteAll(ctx context.Context, root, prefix string) error {
	args := s.Called(ctx, root, prefix)
	return args.Error(0)
}

func (s *SpyDriver) CreateContainer(ctx context.Context, root string) (repostore.ContainerHandle, error) {
	args := s.Called(ctx, root)
	return args.Get(0).(repostore.ContainerHandle), args.Error(1)
}

func (s *SpyDriver) DeleteContainer(ctx context.Context, h repostore.ContainerHandle) error {
	args := s.Called(ctx, h)
	return args.Error(0)
}

type SpyJournal struct {
	mock.Mock
}

func (s *SpyJournal) Record(ctx context.Context, h repostore.ContainerHandle) error {
	return s.Called(ctx, h).Error(0)
}

func (s *SpyJournal) Release(ctx context.Context, h repostore.ContainerHandle) error {
	return s.Called(ctx, h).Error(0)
}

func (s *SpyJournal) Pending(ctx context.Context) ([]repostore.ContainerHandle, error) {
	args := s.Called(ctx)
	handles, _ := args.Get(0).([]repostore.ContainerHandle)
	return handles, args.Error(1)
}

// memDriver is an in-memory driver following the same container rules as the
// real backends.
type memDriver struct {
	scheme repostore.Scheme

	mu         sync.Mutex
	containers map[string]map[string][]byte
}

func newMemDriver(scheme repostore.Scheme) *memDriver {
	return &memDriver{scheme: scheme, containers: make(map[string]map[string][]byte)}
}

func (m *memDriver) Scheme() repostore.Scheme { return m.scheme }

func (m *memDriver) Exists(_ context.Context, root, key string) (repostore.Existence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[root][key]; ok {
		return repostore.Present, nil
	}
	return repostore.Absent, nil
}

func (m *memDriver) Get(_ context.Context, root, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.containers[root][key]
	if !ok {
		return nil, repostore.ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *memDriver) Put(_ context.Context, root, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.containers[root]
	if !ok {
		return repostore.ErrNotFound
	}
	c[key] = slices.Clone(data)
	return nil
}

func (m *memDriver) List(_ context.Context, root, prefix string) iter.Seq2[string, error] {
	m.mu.Lock()
	keys := slices.Sorted(maps.Keys(m.containers[root]))
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, k := range keys {
			if strings.HasPrefix(k, prefix) && !yield(k, nil) {
				return
			}
		}
	}
}

func (m *memDriver) DeleteAll(_ context.Context, root, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.containers[root] {
		if strings.HasPrefix(k, prefix) {
			delete(m.containers[root], k)
		}
	}
	return nil
}

func (m *memDriver) CreateContainer(_ context.Context, root string) (repostore.ContainerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[root]; !ok {
		m.containers[root] = make(map[string][]byte)
	}
	return repostore.ContainerHandle{Scheme: m.scheme, Name: root}, nil
}

func (m *memDriver) DeleteContainer(_ context.Context, h repostore.ContainerHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.containers[h.Name]) > 0 {
		return repostore.ErrContainerNotEmpty
	}
	delete(m.containers, h.Name)
	return nil
}

func (m *memDriver) hasContainer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.containers[name]
	return ok
}

func loadersFor(drivers map[repostore.Scheme]repostore.Driver) map[repostore.Scheme]repostore.Loader {
	loaders := make(map[repostore.Scheme]repostore.Loader, len(repostore.Schemes))
	for _, s := range repostore.Schemes {
		d, ok := drivers[s]
		if !ok {
			d = newMemDriver(s)
		}
		loaders[s] = func(context.Context) (repostore.Driver, error) { return d, nil }
	}
	return loaders
}
