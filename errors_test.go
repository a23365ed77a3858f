package repostore_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/sagarc03/repostore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusError struct{ code int }

func (e statusError) Error() string       { return fmt.Sprintf("status %d", e.code) }
func (e statusError) HTTPStatusCode() int { return e.code }

type netError struct{ timeout bool }

func (e netError) Error() string   { return "dial tcp: connection refused" }
func (e netError) Timeout() bool   { return e.timeout }
func (e netError) Temporary() bool { return false }

var _ net.Error = netError{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: repostore.ErrTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("head: %w", context.DeadlineExceeded), want: repostore.ErrTimeout},
		{name: "404", err: statusError{404}, want: repostore.ErrNotFound},
		{name: "403", err: statusError{403}, want: repostore.ErrPermissionDenied},
		{name: "401", err: statusError{401}, want: repostore.ErrPermissionDenied},
		{name: "503", err: statusError{503}, want: repostore.ErrBackendUnavailable},
		{name: "429", err: statusError{429}, want: repostore.ErrBackendUnavailable},
		{name: "transport", err: netError{}, want: repostore.ErrBackendUnavailable},
		{name: "transport timeout", err: netError{timeout: true}, want: repostore.ErrTimeout},
		{name: "already classified", err: fmt.Errorf("x: %w", repostore.ErrNotFound), want: repostore.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repostore.Classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassify_TransportIsNotNotFound(t *testing.T) {
	err := repostore.Classify(netError{})
	assert.NotErrorIs(t, err, repostore.ErrNotFound)
}

func TestClassify_Passthrough(t *testing.T) {
	assert.NoError(t, repostore.Classify(nil))
	assert.Equal(t, context.Canceled, repostore.Classify(context.Canceled))

	plain := errors.New("boom")
	assert.Equal(t, plain, repostore.Classify(plain))

	teapot := statusError{418}
	assert.Equal(t, error(teapot), repostore.Classify(teapot))
}

func TestDeleteTally(t *testing.T) {
	t.Run("all deleted", func(t *testing.T) {
		tally := repostore.NewDeleteTally("delete")
		tally.Deleted(3)
		assert.NoError(t, tally.Result(nil))
	})

	t.Run("nothing touched returns cause", func(t *testing.T) {
		tally := repostore.NewDeleteTally("delete")
		cause := errors.New("list failed")
		assert.Equal(t, cause, tally.Result(cause))
		assert.True(t, tally.Empty())
	})

	t.Run("itemised partial failure", func(t *testing.T) {
		tally := repostore.NewDeleteTally("delete")
		tally.Deleted(2)
		tally.Fail("a/x", repostore.ErrPermissionDenied)
		tally.Fail("a/y", repostore.ErrBackendUnavailable)

		err := tally.Result(nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, repostore.ErrPartialFailure)
		assert.ErrorIs(t, err, repostore.ErrPermissionDenied)

		var pf *repostore.PartialFailureError
		require.ErrorAs(t, err, &pf)
		assert.Equal(t, 2, pf.Deleted)
		require.Len(t, pf.Failed, 2)
		assert.Equal(t, "a/x", pf.Failed[0].Key)
		assert.Equal(t, "a/y", pf.Failed[1].Key)
	})

	t.Run("deleted then interrupted", func(t *testing.T) {
		tally := repostore.NewDeleteTally("delete")
		tally.Deleted(1000)

		err := tally.Result(fmt.Errorf("%w: %w", repostore.ErrTimeout, context.DeadlineExceeded))
		assert.ErrorIs(t, err, repostore.ErrPartialFailure)
		assert.ErrorIs(t, err, repostore.ErrTimeout)
	})

	t.Run("concurrent", func(t *testing.T) {
		tally := repostore.NewDeleteTally("delete")
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if i%10 == 0 {
					tally.Fail(fmt.Sprintf("k%d", i), errors.New("x"))
					return
				}
				tally.Deleted(1)
			}()
		}
		wg.Wait()

		var pf *repostore.PartialFailureError
		require.ErrorAs(t, tally.Result(nil), &pf)
		assert.Equal(t, 45, pf.Deleted)
		assert.Len(t, pf.Failed, 5)
	})
}

func TestTeardownError(t *testing.T) {
	err := &repostore.TeardownError{
		Total: 3,
		Failures: []repostore.ContainerError{
			{Handle: repostore.ContainerHandle{Scheme: repostore.SchemeS3, Name: "b2"}, Err: repostore.ErrPermissionDenied},
		},
	}

	assert.ErrorIs(t, err, repostore.ErrPermissionDenied)
	assert.Contains(t, err.Error(), "1 of 3")
	assert.Contains(t, err.Error(), "s3://b2")
}
