package repostore

import (
	"context"
	"iter"
)

// Driver is the uniform contract every storage backend implements. Keys are
// full object keys within root; the Repository applies address prefixes.
//
// Implementations must be safe for concurrent use and must classify native
// failures with the sentinel errors of this package. A native "not found"
// never surfaces as a generic error, and a generic failure never surfaces as
// Absent.
type Driver interface {
	Scheme() Scheme

	// Exists returns Absent with a nil error when the object does not exist.
	// Any non-nil error is paired with ExistenceUnknown.
	Exists(ctx context.Context, root, key string) (Existence, error)
	Get(ctx context.Context, root, key string) ([]byte, error)
	Put(ctx context.Context, root, key string, data []byte) error

	// List yields every key starting with prefix, flattening native
	// pagination. The sequence is lazy and single-use. Iteration stops at the
	// first error.
	List(ctx context.Context, root, prefix string) iter.Seq2[string, error]

	// DeleteAll deletes every key starting with prefix. Zero matches and keys
	// already gone are success. Per-key failures are reported as a
	// *PartialFailureError.
	DeleteAll(ctx context.Context, root, prefix string) error

	// CreateContainer treats an existing container owned by the caller as
	// success.
	CreateContainer(ctx context.Context, root string) (ContainerHandle, error)

	// DeleteContainer fails with ErrContainerNotEmpty when objects remain.
	// An absent container is success.
	DeleteContainer(ctx context.Context, handle ContainerHandle) error
}

// DriverSource selects the driver for a scheme.
type DriverSource interface {
	Driver(ctx context.Context, scheme Scheme) (Driver, error)
}

// Journal persists provisioned container handles so that a later process can
// tear them down.
type Journal interface {
	// Record fails with ErrNameCollision when the handle is already recorded.
	Record(ctx context.Context, handle ContainerHandle) error
	// Release fails with ErrNotFound when the handle is not pending.
	Release(ctx context.Context, handle ContainerHandle) error
	// Pending returns unreleased handles in creation order.
	Pending(ctx context.Context) ([]ContainerHandle, error)
}
