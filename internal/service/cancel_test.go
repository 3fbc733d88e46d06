package service

import (
	"context"
	"errors"
	"testing"

	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelRegistry(t *testing.T) {
	r := NewCancelRegistry()

	ctx, release, err := r.Register(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	_, _, err = r.Register(context.Background(), "q1")
	assert.Equal(t, qerr.CodeInvalidRequest, qerr.GetCode(err))

	require.NoError(t, r.Cancel("q1"))
	<-ctx.Done()
	assert.True(t, errors.Is(context.Cause(ctx), errCanceledByCaller))
	assert.Equal(t, 0, r.Len())

	assert.True(t, qerr.IsNotFound(r.Cancel("q1")))

	release()
	release()
}

func TestCancelRegistry_ReleaseRemovesEntry(t *testing.T) {
	r := NewCancelRegistry()

	ctx, release, err := r.Register(context.Background(), "q2")
	require.NoError(t, err)
	release()

	assert.Equal(t, 0, r.Len())
	assert.Error(t, ctx.Err())
	assert.False(t, errors.Is(context.Cause(ctx), errCanceledByCaller))
	assert.True(t, qerr.IsNotFound(r.Cancel("q2")))
}

func TestCancelRegistry_StaleReleaseKeepsNewEntry(t *testing.T) {
	r := NewCancelRegistry()

	_, releaseA, err := r.Register(context.Background(), "q3")
	require.NoError(t, err)
	require.NoError(t, r.Cancel("q3"))

	ctxB, releaseB, err := r.Register(context.Background(), "q3")
	require.NoError(t, err)
	defer releaseB()

	releaseA()
	assert.Equal(t, 1, r.Len())
	assert.NoError(t, ctxB.Err())

	require.NoError(t, r.Cancel("q3"))
	<-ctxB.Done()
	assert.True(t, errors.Is(context.Cause(ctxB), errCanceledByCaller))
}
