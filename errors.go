package repostore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
)

var (
	// ErrMalformedURI is returned when a repository URI has no scheme separator or an empty root
	ErrMalformedURI = errors.New("malformed uri")
	// ErrUnknownScheme is returned when a repository URI names a scheme outside file, s3, gs and abs
	ErrUnknownScheme = errors.New("unknown scheme")
	// ErrNotFound is returned when an object or container does not exist
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when the backend rejects the caller's credentials
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTimeout is returned when an operation's deadline expires
	ErrTimeout = errors.New("timeout")
	// ErrConfigurationMissing is returned when a backend is selected without its required settings
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrPartialFailure is returned when a bulk operation only partially succeeded
	ErrPartialFailure = errors.New("partial failure")
	// ErrBackendUnavailable is returned for transport-level and server-side failures
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrContainerNotEmpty is returned when deleting a container that still holds objects
	ErrContainerNotEmpty = errors.New("container not empty")
	// ErrNameCollision is returned when a container name is already registered
	ErrNameCollision = errors.New("name collision")
)

var sentinels = []error{
	ErrMalformedURI,
	ErrUnknownScheme,
	ErrNotFound,
	ErrPermissionDenied,
	ErrTimeout,
	ErrConfigurationMissing,
	ErrPartialFailure,
	ErrBackendUnavailable,
	ErrInvalidInput,
	ErrContainerNotEmpty,
	ErrNameCollision,
}

// ParseError records a repository URI that could not be parsed.
type ParseError struct {
	URI string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %v", e.URI, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// KeyError is the failure of a single object inside a bulk operation.
type KeyError struct {
	Key string
	Err error
}

func (e KeyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e KeyError) Unwrap() error { return e.Err }

// PartialFailureError reports a bulk operation where some objects were
// processed and others were not. Failed lists every key whose outcome is not
// known to be success, including keys left unconfirmed by a timeout.
type PartialFailureError struct {
	Op      string
	Deleted int
	Failed  []KeyError
	// Err is the error that stopped the operation early, if any.
	Err error
}

func (e *PartialFailureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d deleted, %d failed", e.Op, e.Deleted, len(e.Failed))
	if e.Err != nil {
		fmt.Fprintf(&b, ", stopped: %v", e.Err)
	}
	for i, f := range e.Failed {
		if i == 5 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failed)-i)
			break
		}
		fmt.Fprintf(&b, "; %s", f.Error())
	}
	return b.String()
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed)+1)
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ContainerError is the teardown failure of a single container.
type ContainerError struct {
	Handle ContainerHandle
	Err    error
}

func (e ContainerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Handle, e.Err)
}

func (e ContainerError) Unwrap() error { return e.Err }

// TeardownError aggregates every container that could not be torn down.
// Failures are ordered by container creation order.
type TeardownError struct {
	Total    int
	Failures []ContainerError
}

func (e *TeardownError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("teardown: %d of %d containers failed: %s", len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *TeardownError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// DeleteTally accumulates the outcome of a multi-object delete. It is safe for
// concurrent use.
type DeleteTally struct {
	mu      sync.Mutex
	op      string
	deleted int
	failed  []KeyError
}

// NewDeleteTally returns an empty tally for the named operation.
func NewDeleteTally(op string) *DeleteTally {
	return &DeleteTally{op: op}
}

// Deleted records n objects as deleted.
func (t *DeleteTally) Deleted(n int) {
	t.mu.Lock()
	t.deleted += n
	t.mu.Unlock()
}

// Fail records a key whose deletion failed or could not be confirmed.
func (t *DeleteTally) Fail(key string, err error) {
	t.mu.Lock()
	t.failed = append(t.failed, KeyError{Key: key, Err: err})
	t.mu.Unlock()
}

// Empty reports whether nothing was recorded yet.
func (t *DeleteTally) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleted == 0 && len(t.failed) == 0
}

// Result returns nil when every delete succeeded and cause is nil. When no
// object was touched the cause is returned as is. Otherwise the tally is
// reported as a *PartialFailureError.
func (t *DeleteTally) Result(cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.failed) == 0 && cause == nil {
		return nil
	}
	if len(t.failed) == 0 && t.deleted == 0 {
		return cause
	}

	failed := make([]KeyError, len(t.failed))
	copy(failed, t.failed)

	return &PartialFailureError{
		Op:      t.op,
		Deleted: t.deleted,
		Failed:  failed,
		Err:     cause,
	}
}

// ClassifyStatus wraps err with the sentinel matching an HTTP status code.
// Statuses with no matching sentinel leave err unchanged.
func ClassifyStatus(status int, err error) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	default:
		return err
	}
}

// Classify maps context, transport and HTTP status errors onto the error
// taxonomy. Errors that already carry a sentinel are returned unchanged, as
// is context.Canceled.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) && statusErr.HTTPStatusCode() > 0 {
		return ClassifyStatus(statusErr.HTTPStatusCode(), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	return err
}
