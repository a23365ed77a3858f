package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sagarc03/repostore"
	"github.com/sagarc03/repostore/journal/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handle(scheme repostore.Scheme, name string) repostore.ContainerHandle {
	return repostore.ContainerHandle{Scheme: scheme, Name: name}
}

func TestConnect_InvalidTableName(t *testing.T) {
	_, err := sqlite.Connect(context.Background(), ":memory:", "bad-name")
	assert.ErrorContains(t, err, "invalid journal table name")
}

func TestDatabase_MigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDatabase(t)

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Validate(ctx))
	require.NoError(t, db.Ping(ctx))
}

func TestDatabase_ValidateMissingTable(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Connect(ctx, ":memory:", "journal_"+getRandomString(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.ErrorContains(t, db.Validate(ctx), "does not exist")
}

func TestDatabase_Drop(t *testing.T) {
	ctx := context.Background()
	db := setupTestDatabase(t)

	require.NoError(t, db.Drop(ctx))
	assert.Error(t, db.Validate(ctx))
}

func TestJournal_RecordPendingRelease(t *testing.T) {
	ctx := context.Background()
	j := setupTestDatabase(t).Journal()

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	handles := []repostore.ContainerHandle{
		handle(repostore.SchemeS3, "repostore-test-c"),
		handle(repostore.SchemeGS, "repostore-test-a"),
		handle(repostore.SchemeABS, "repostore-test-b"),
	}
	for _, h := range handles {
		require.NoError(t, j.Record(ctx, h))
	}

	pending, err = j.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, handles, pending, "pending keeps creation order")

	require.NoError(t, j.Release(ctx, handles[1]))

	pending, err = j.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []repostore.ContainerHandle{handles[0], handles[2]}, pending)
}

func TestJournal_RecordCollision(t *testing.T) {
	ctx := context.Background()
	j := setupTestDatabase(t).Journal()
	h := handle(repostore.SchemeS3, "repostore-test-x")

	require.NoError(t, j.Record(ctx, h))
	assert.ErrorIs(t, j.Record(ctx, h), repostore.ErrNameCollision)

	require.NoError(t, j.Record(ctx, handle(repostore.SchemeGS, "repostore-test-x")), "same name on another scheme")

	require.NoError(t, j.Release(ctx, h))
	assert.ErrorIs(t, j.Record(ctx, h), repostore.ErrNameCollision, "released names stay taken")
}

func TestJournal_ReleaseUnknown(t *testing.T) {
	ctx := context.Background()
	j := setupTestDatabase(t).Journal()
	h := handle(repostore.SchemeABS, "never-recorded")

	assert.ErrorIs(t, j.Release(ctx, h), repostore.ErrNotFound)

	require.NoError(t, j.Record(ctx, h))
	require.NoError(t, j.Release(ctx, h))
	assert.ErrorIs(t, j.Release(ctx, h), repostore.ErrNotFound, "double release")
}

func TestJournal_ConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	j := setupTestDatabase(t).Journal()
	h := handle(repostore.SchemeFile, "/tmp/repo-test-race")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 8 {
		wg.Go(func() {
			if err := j.Record(ctx, h); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repostore.ErrNameCollision)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestJournal_PersistsAcrossConnections(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "journal.db")
	h := handle(repostore.SchemeS3, "repostore-test-persist")

	db, err := sqlite.Connect(ctx, dsn, "journal")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Journal().Record(ctx, h))
	require.NoError(t, db.Close())

	db, err = sqlite.Connect(ctx, dsn, "journal")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Validate(ctx))

	pending, err := db.Journal().Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []repostore.ContainerHandle{h}, pending)
}
