// Package filesystem implements the file:// driver. Every call opens the
// repository root as an *os.Root so keys cannot escape it. Writes are atomic
// using a temp file and rename.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sagarc03/repostore"
)

const tmpPrefix = ".tmp-"

// Store is the local filesystem driver. Root arguments are directory paths.
type Store struct {
	log      *slog.Logger
	dirPerm  fs.FileMode
	filePerm fs.FileMode
}

type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithPermissions sets the modes used for created directories and files.
func WithPermissions(dir, file fs.FileMode) Option {
	return func(s *Store) {
		s.dirPerm = dir
		s.filePerm = file
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		log:      slog.Default(),
		dirPerm:  0o755,
		filePerm: 0o644,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Scheme() repostore.Scheme { return repostore.SchemeFile }

// Exists reports directories as Absent; only regular files are objects.
func (s *Store) Exists(ctx context.Context, root, key string) (repostore.Existence, error) {
	if err := ctx.Err(); err != nil {
		return repostore.ExistenceUnknown, repostore.Classify(err)
	}

	r, err := os.OpenRoot(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return repostore.Absent, nil
		}
		return repostore.ExistenceUnknown, mapErr(err)
	}
	defer closeRoot(s.log, r)

	info, err := r.Stat(filepath.FromSlash(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return repostore.Absent, nil
		}
		return repostore.ExistenceUnknown, mapErr(err)
	}

	if !info.Mode().IsRegular() {
		return repostore.Absent, nil
	}

	return repostore.Present, nil
}

// Get reads a file. Returns repostore.ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, root, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, repostore.Classify(err)
	}

	r, err := os.OpenRoot(root)
	if err != nil {
		return nil, mapErr(err)
	}
	defer closeRoot(s.log, r)

	data, err := r.ReadFile(filepath.FromSlash(key))
	if err != nil {
		if errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.ENOTDIR) {
			return nil, fmt.Errorf("%w: %w", repostore.ErrNotFound, err)
		}
		return nil, mapErr(err)
	}

	return data, nil
}

// Put atomically writes data to key, creating intermediate directories. The
// root directory itself must exist.
func (s *Store) Put(ctx context.Context, root, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return repostore.Classify(err)
	}

	r, err := os.OpenRoot(root)
	if err != nil {
		return mapErr(err)
	}
	defer closeRoot(s.log, r)

	dest := filepath.FromSlash(key)
	tmpFile := tmpFileName()

	t, err := r.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.filePerm)
	if err != nil {
		return fmt.Errorf("open temp file: %w", mapErr(err))
	}

	success := false
	defer func() {
		if !success {
			if rmErr := r.Remove(tmpFile); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.log.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	if _, err := t.Write(data); err != nil {
		_ = t.Close()
		return fmt.Errorf("write temp file: %w", mapErr(err))
	}
	if err := t.Sync(); err != nil {
		_ = t.Close()
		return fmt.Errorf("sync temp file: %w", mapErr(err))
	}
	if err := t.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", mapErr(err))
	}

	if dir := filepath.Dir(dest); dir != "." {
		if err := r.MkdirAll(dir, s.dirPerm); err != nil {
			return fmt.Errorf("create intermediate directories: %w", mapErr(err))
		}
	}

	if err := r.Rename(tmpFile, dest); err != nil {
		return fmt.Errorf("rename temp file: %w", mapErr(err))
	}

	success = true
	return nil
}

// List walks the directories covering prefix and yields matching file keys in
// lexical order. Temp files of in-flight writes are skipped.
func (s *Store) List(ctx context.Context, root, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		r, err := os.OpenRoot(root)
		if err != nil {
			yield("", mapErr(err))
			return
		}
		defer closeRoot(s.log, r)

		for key, err := range walk(ctx, r, prefix) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

// DeleteAll removes every file matching prefix, then prunes directories left
// empty. A missing root has nothing to delete.
func (s *Store) DeleteAll(ctx context.Context, root, prefix string) error {
	r, err := os.OpenRoot(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return mapErr(err)
	}
	defer closeRoot(s.log, r)

	tally := repostore.NewDeleteTally("delete " + root)
	dirs := make(map[string]struct{})

	for key, err := range walk(ctx, r, prefix) {
		if err != nil {
			return tally.Result(err)
		}

		if rmErr := r.Remove(filepath.FromSlash(key)); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			tally.Fail(key, mapErr(rmErr))
			continue
		}
		tally.Deleted(1)

		for dir := path.Dir(key); dir != "."; dir = path.Dir(dir) {
			dirs[dir] = struct{}{}
		}
	}

	s.prune(r, dirs)

	return tally.Result(nil)
}

// prune removes emptied directories deepest first. Directories that still
// hold entries fail to delete and are kept.
func (s *Store) prune(r *os.Root, dirs map[string]struct{}) {
	ordered := make([]string, 0, len(dirs))
	for d := range dirs {
		ordered = append(ordered, d)
	}
	slices.SortFunc(ordered, func(a, b string) int {
		return strings.Count(b, "/") - strings.Count(a, "/")
	})

	for _, d := range ordered {
		if err := r.Remove(filepath.FromSlash(d)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Debug("keep directory", slog.String("dir", d))
		}
	}
}

// CreateContainer creates the root directory. An existing directory is
// success.
func (s *Store) CreateContainer(ctx context.Context, root string) (repostore.ContainerHandle, error) {
	if err := ctx.Err(); err != nil {
		return repostore.ContainerHandle{}, repostore.Classify(err)
	}

	if err := os.MkdirAll(root, s.dirPerm); err != nil {
		return repostore.ContainerHandle{}, mapErr(err)
	}

	s.log.Debug("directory created", slog.String("root", root))
	return repostore.ContainerHandle{Scheme: repostore.SchemeFile, Name: root}, nil
}

// DeleteContainer removes a root directory that holds no objects. Empty
// subdirectories and temp files of abandoned writes do not count as objects
// and are removed with it.
func (s *Store) DeleteContainer(ctx context.Context, h repostore.ContainerHandle) error {
	if err := ctx.Err(); err != nil {
		return repostore.Classify(err)
	}

	r, err := os.OpenRoot(h.Name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return mapErr(err)
	}

	var keys []string
	for key, err := range walk(ctx, r, "") {
		if err != nil {
			closeRoot(s.log, r)
			return err
		}
		keys = append(keys, key)
	}
	closeRoot(s.log, r)

	if len(keys) > 0 {
		return fmt.Errorf("%s holds %d objects: %w", h.Name, len(keys), repostore.ErrContainerNotEmpty)
	}

	if err := os.RemoveAll(h.Name); err != nil {
		return mapErr(err)
	}

	s.log.Debug("directory removed", slog.String("root", h.Name))
	return nil
}

func walk(ctx context.Context, r *os.Root, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := "."
		if prefix != "" {
			if strings.HasSuffix(prefix, "/") {
				start = strings.TrimSuffix(prefix, "/")
			} else {
				start = path.Dir(prefix)
			}
		}

		err := fs.WalkDir(r.FS(), start, func(p string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if p == start && (errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)) {
					return fs.SkipAll
				}
				return err
			}
			if d.IsDir() {
				if p != start && prefix != "" && !strings.HasPrefix(p+"/", prefix) && !strings.HasPrefix(prefix, p+"/") {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || isTmpName(d.Name()) || !strings.HasPrefix(p, prefix) {
				return nil
			}
			if !yield(p, nil) {
				return errStop
			}
			return nil
		})

		if err != nil && !errors.Is(err, errStop) {
			yield("", mapErr(err))
		}
	}
}

var errStop = errors.New("stop")

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return repostore.Classify(err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", repostore.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", repostore.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %w", repostore.ErrBackendUnavailable, err)
	}
}

func closeRoot(log *slog.Logger, r *os.Root) {
	if err := r.Close(); err != nil {
		log.Warn("failed to close root", "err", err)
	}
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}

func isTmpName(name string) bool {
	id, ok := strings.CutPrefix(name, tmpPrefix)
	if !ok {
		return false
	}
	return uuid.Validate(id) == nil
}
