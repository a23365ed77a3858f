package repostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const maxProvisionAttempts = 8

// Manager tracks containers created for a session and tears them down.
//
// Provision only reserves a name. Remote creation is left to the caller so
// that tools under test can be checked for creating containers themselves.
type Manager struct {
	drivers     DriverSource
	journal     Journal
	log         *slog.Logger
	concurrency int
	generate    NameGenerator

	mu      sync.Mutex
	handles []ContainerHandle
	names   map[ContainerHandle]struct{}
}

type ManagerOption func(*Manager)

// WithNaming sets the prefix and suffix length of generated names.
func WithNaming(prefix string, suffixLength int) ManagerOption {
	return func(m *Manager) {
		m.generate = func() string { return RandomName(prefix, suffixLength) }
	}
}

// WithNameGenerator replaces the random name source.
func WithNameGenerator(gen NameGenerator) ManagerOption {
	return func(m *Manager) {
		if gen != nil {
			m.generate = gen
		}
	}
}

// WithConcurrency bounds the number of containers torn down at once. Zero or
// less means unbounded.
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		m.concurrency = n
	}
}

// WithJournal persists every provisioned handle.
func WithJournal(j Journal) ManagerOption {
	return func(m *Manager) {
		m.journal = j
	}
}

func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func NewManager(drivers DriverSource, opts ...ManagerOption) *Manager {
	m := &Manager{
		drivers:  drivers,
		log:      slog.Default(),
		generate: func() string { return RandomName(DefaultNamePrefix, DefaultSuffixLength) },
		names:    make(map[ContainerHandle]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Provision reserves a fresh container name for scheme and registers it.
// Names already registered are regenerated a bounded number of times.
func (m *Manager) Provision(ctx context.Context, scheme Scheme) (string, ContainerHandle, error) {
	if !scheme.IsValid() {
		return "", ContainerHandle{}, fmt.Errorf("provision: %w: %q", ErrUnknownScheme, scheme)
	}

	var lastErr error
	for range maxProvisionAttempts {
		h := ContainerHandle{Scheme: scheme, Name: m.generate()}

		err := m.Track(ctx, h)
		if err == nil {
			m.log.Debug("container provisioned", slog.String("scheme", string(scheme)), slog.String("name", h.Name))
			return h.Name, h, nil
		}
		if !errors.Is(err, ErrNameCollision) {
			return "", ContainerHandle{}, fmt.Errorf("provision: %w", err)
		}

		lastErr = err
		m.log.Warn("container name collision", slog.String("name", h.Name))
	}

	return "", ContainerHandle{}, fmt.Errorf("provision: %d attempts: %w", maxProvisionAttempts, lastErr)
}

// Track registers a container created outside Provision.
func (m *Manager) Track(ctx context.Context, h ContainerHandle) error {
	if !h.Scheme.IsValid() || h.Name == "" {
		return fmt.Errorf("track %s: %w", h, ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.names[h]; ok {
		return fmt.Errorf("track %s: %w", h, ErrNameCollision)
	}

	if m.journal != nil {
		if err := m.journal.Record(ctx, h); err != nil {
			return fmt.Errorf("track %s: %w", h, err)
		}
	}

	m.names[h] = struct{}{}
	m.handles = append(m.handles, h)

	return nil
}

// Restore registers every pending handle from the journal and returns how
// many were added.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.journal == nil {
		return 0, nil
	}

	pending, err := m.journal.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, h := range pending {
		if _, ok := m.names[h]; ok {
			continue
		}
		m.names[h] = struct{}{}
		m.handles = append(m.handles, h)
		added++
	}

	return added, nil
}

// Handles returns the registered handles in creation order.
func (m *Manager) Handles() []ContainerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ContainerHandle, len(m.handles))
	copy(out, m.handles)
	return out
}

func (m *Manager) drain() []ContainerHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	handles := m.handles
	m.handles = nil
	m.names = make(map[ContainerHandle]struct{})
	return handles
}

// TeardownAll drains the registry and releases every container: all objects
// are deleted, then the container itself. Containers are torn down
// concurrently and every failure is collected. The result is nil or a
// *TeardownError listing failures in creation order.
func (m *Manager) TeardownAll(ctx context.Context) error {
	handles := m.drain()
	if len(handles) == 0 {
		return nil
	}

	start := time.Now()
	errs := make([]error, len(handles))

	var g errgroup.Group
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}

	for i, h := range handles {
		g.Go(func() error {
			errs[i] = m.teardown(ctx, h)
			return nil
		})
	}
	_ = g.Wait()

	var failures []ContainerError
	for i, err := range errs {
		if err != nil {
			failures = append(failures, ContainerError{Handle: handles[i], Err: err})
		}
	}

	m.log.Info("teardown complete",
		slog.Int("containers", len(handles)),
		slog.Int("failed", len(failures)),
		slog.Duration("duration", time.Since(start)),
	)

	if len(failures) == 0 {
		return nil
	}
	return &TeardownError{Total: len(handles), Failures: failures}
}

func (m *Manager) teardown(ctx context.Context, h ContainerHandle) error {
	d, err := m.drivers.Driver(ctx, h.Scheme)
	if err != nil {
		return err
	}

	if err := d.DeleteAll(ctx, h.Name, ""); err != nil {
		m.log.Error("teardown: delete objects", slog.String("container", h.String()), "err", err)
		return fmt.Errorf("delete objects: %w", err)
	}

	if err := d.DeleteContainer(ctx, h); err != nil {
		m.log.Error("teardown: delete container", slog.String("container", h.String()), "err", err)
		return fmt.Errorf("delete container: %w", err)
	}

	if m.journal != nil {
		if err := m.journal.Release(ctx, h); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("release: %w", err)
		}
	}

	return nil
}
