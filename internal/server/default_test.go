package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VintageWander/filey/internal/apperr"
)

func TestDefaultStartStop(t *testing.T) {
	SetDefault(nil)
	assert.ErrorIs(t, Start(context.Background()), ErrNoDefault)
	assert.NotPanics(t, Stop)

	l := New(hello(), Config{Addr: "127.0.0.1:0"})
	SetDefault(l)
	t.Cleanup(func() { SetDefault(nil) })
	assert.Same(t, l, Default())

	done := make(chan error, 1)
	go func() { done <- Start(context.Background()) }()
	require.Eventually(t, l.Running, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, Start(context.Background()), apperr.AlreadyRunning)

	Stop()
	assert.NoError(t, waitDone(t, done))
	assert.False(t, l.Running())
}
