package repostore

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"sync"
)

// Loader builds the driver for one scheme. It is called lazily on first use.
type Loader func(ctx context.Context) (Driver, error)

// Facade resolves repository URIs to drivers. Drivers are built on first use
// and cached; loader failures are not cached. Each scheme loads under its own
// lock, so a slow loader only blocks callers of the same scheme.
type Facade struct {
	slots map[Scheme]*driverSlot
	log   *slog.Logger
}

type driverSlot struct {
	load Loader

	mu     sync.Mutex
	driver Driver
}

type FacadeOption func(*Facade)

func WithFacadeLogger(log *slog.Logger) FacadeOption {
	return func(f *Facade) {
		if log != nil {
			f.log = log
		}
	}
}

// NewFacade requires a loader for every scheme in Schemes.
func NewFacade(loaders map[Scheme]Loader, opts ...FacadeOption) (*Facade, error) {
	for _, s := range Schemes {
		if loaders[s] == nil {
			return nil, fmt.Errorf("new facade: no loader for scheme %q: %w", s, ErrInvalidInput)
		}
	}

	f := &Facade{
		slots: make(map[Scheme]*driverSlot, len(loaders)),
		log:   slog.Default(),
	}
	for s, l := range loaders {
		f.slots[s] = &driverSlot{load: l}
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Driver returns the driver for scheme, building it on first use.
func (f *Facade) Driver(ctx context.Context, scheme Scheme) (Driver, error) {
	slot, ok := f.slots[scheme]
	if !ok {
		panic(fmt.Sprintf("repostore: no driver for scheme %q", scheme))
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.driver != nil {
		return slot.driver, nil
	}

	d, err := slot.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s driver: %w", scheme, err)
	}

	slot.driver = d
	f.log.Debug("driver loaded", slog.String("scheme", string(scheme)))

	return d, nil
}

// Resolve parses uri and binds it to its driver. URI and configuration
// errors are returned here, before any backend call.
func (f *Facade) Resolve(ctx context.Context, uri string) (*Repository, error) {
	addr, err := Parse(uri)
	if err != nil {
		return nil, err
	}

	d, err := f.Driver(ctx, addr.Scheme)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}

	return &Repository{addr: addr, driver: d}, nil
}

// Exists reports whether rel exists under uri. Backend failures are returned
// as errors, never as false.
func (f *Facade) Exists(ctx context.Context, uri, rel string) (bool, error) {
	repo, err := f.Resolve(ctx, uri)
	if err != nil {
		return false, err
	}
	return repo.Exists(ctx, rel)
}

// Repository is an Address bound to its driver. Relative paths passed to its
// methods are joined with the address prefix.
type Repository struct {
	addr   Address
	driver Driver
}

// NewRepository binds addr to d directly.
func NewRepository(addr Address, d Driver) *Repository {
	return &Repository{addr: addr, driver: d}
}

func (r *Repository) Address() Address { return r.addr }

func (r *Repository) Existence(ctx context.Context, rel string) (Existence, error) {
	key, err := r.addr.ObjectKey(rel)
	if err != nil {
		return ExistenceUnknown, err
	}

	e, err := r.driver.Exists(ctx, r.addr.Root, key)
	if err != nil {
		return ExistenceUnknown, fmt.Errorf("exists %s: %w", key, err)
	}
	return e, nil
}

func (r *Repository) Exists(ctx context.Context, rel string) (bool, error) {
	e, err := r.Existence(ctx, rel)
	if err != nil {
		return false, err
	}
	return e == Present, nil
}

func (r *Repository) Get(ctx context.Context, rel string) ([]byte, error) {
	key, err := r.addr.ObjectKey(rel)
	if err != nil {
		return nil, err
	}

	data, err := r.driver.Get(ctx, r.addr.Root, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (r *Repository) Put(ctx context.Context, rel string, data []byte) error {
	key, err := r.addr.ObjectKey(rel)
	if err != nil {
		return err
	}

	if err := r.driver.Put(ctx, r.addr.Root, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// GetJSON reads rel and decodes it into v.
func (r *Repository) GetJSON(ctx context.Context, rel string, v any) error {
	data, err := r.Get(ctx, rel)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", rel, err)
	}
	return nil
}

// PutJSON encodes v and writes it to rel.
func (r *Repository) PutJSON(ctx context.Context, rel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return r.Put(ctx, rel, data)
}

// List yields keys under rel, relative to the repository prefix.
func (r *Repository) List(ctx context.Context, rel string) iter.Seq2[string, error] {
	prefix, err := r.addr.ListPrefix(rel)
	if err != nil {
		return func(yield func(string, error) bool) {
			yield("", err)
		}
	}

	base := JoinKey(r.addr.prefix...)
	return func(yield func(string, error) bool) {
		for key, err := range r.driver.List(ctx, r.addr.Root, prefix) {
			if err != nil {
				yield("", fmt.Errorf("list %s: %w", r.addr, err))
				return
			}
			if !yield(TrimKeyPrefix(key, base), nil) {
				return
			}
		}
	}
}

// Keys drains List into a slice.
func (r *Repository) Keys(ctx context.Context, rel string) ([]string, error) {
	var keys []string
	for key, err := range r.List(ctx, rel) {
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (r *Repository) DeleteAll(ctx context.Context, rel string) error {
	prefix, err := r.addr.ListPrefix(rel)
	if err != nil {
		return err
	}

	if err := r.driver.DeleteAll(ctx, r.addr.Root, prefix); err != nil {
		return fmt.Errorf("delete all %s: %w", r.addr, err)
	}
	return nil
}

func (r *Repository) CreateContainer(ctx context.Context) (ContainerHandle, error) {
	h, err := r.driver.CreateContainer(ctx, r.addr.Root)
	if err != nil {
		return ContainerHandle{}, fmt.Errorf("create container %s: %w", r.addr.Root, err)
	}
	return h, nil
}

func (r *Repository) DeleteContainer(ctx context.Context) error {
	h := ContainerHandle{Scheme: r.addr.Scheme, Name: r.addr.Root}
	if err := r.driver.DeleteContainer(ctx, h); err != nil {
		return fmt.Errorf("delete container %s: %w", r.addr.Root, err)
	}
	return nil
}
