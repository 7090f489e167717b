package research

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/log"
)

// gatedCompleter blocks every call until released, signalling when the
// first call arrives.
type gatedCompleter struct {
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func newGatedCompleter() *gatedCompleter {
	return &gatedCompleter{started: make(chan struct{}), release: make(chan struct{})}
}

func (c *gatedCompleter) Complete(context.Context, string, string) (string, error) {
	c.startOnce.Do(func() { close(c.started) })
	<-c.release
	return "body", nil
}

func newTestManager(t *testing.T, completer Completer) (*Manager, *Store) {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Create("Shopify", "rest_api", "")
	require.NoError(t, err)
	agent, err := NewAgent(store, completer, log.NewNop(), WithSectionPause(0))
	require.NoError(t, err)
	manager, err := NewManager(agent, store, log.NewNop())
	require.NoError(t, err)
	return manager, store
}

func waitForJobGone(t *testing.T, m *Manager, jobID string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if _, ok := m.Status(jobID); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("job did not finish in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManager_RunsJobToCompletion(t *testing.T) {
	manager, store := newTestManager(t, &scriptedCompleter{})

	jobID, err := manager.Start("shopify")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	waitForJobGone(t, manager, jobID)
	c, _ := store.Get("shopify")
	assert.Equal(t, StatusComplete, c.Status)
}

func TestManager_StatusWhileRunning(t *testing.T) {
	completer := newGatedCompleter()
	manager, _ := newTestManager(t, completer)

	jobID, err := manager.Start("shopify")
	require.NoError(t, err)
	<-completer.started

	status, ok := manager.Status(jobID)
	require.True(t, ok)
	assert.Equal(t, jobID, status.JobID)
	assert.Equal(t, "shopify", status.ConnectorID)
	assert.True(t, status.Running)

	got, ok := manager.JobForConnector("shopify")
	require.True(t, ok)
	assert.Equal(t, jobID, got)

	close(completer.release)
	waitForJobGone(t, manager, jobID)
	_, ok = manager.JobForConnector("shopify")
	assert.False(t, ok)
}

func TestManager_RejectsConcurrentJobForConnector(t *testing.T) {
	completer := newGatedCompleter()
	manager, _ := newTestManager(t, completer)

	jobID, err := manager.Start("shopify")
	require.NoError(t, err)
	<-completer.started

	_, err = manager.Start("shopify")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(completer.release)
	waitForJobGone(t, manager, jobID)
}

func TestManager_StartUnknownConnector(t *testing.T) {
	manager, _ := newTestManager(t, &scriptedCompleter{})
	_, err := manager.Start("missing")
	assert.ErrorContains(t, err, "not found")
}

func TestManager_CancelLeavesCancelledState(t *testing.T) {
	completer := newGatedCompleter()
	manager, store := newTestManager(t, completer)

	jobID, err := manager.Start("shopify")
	require.NoError(t, err)
	<-completer.started

	// The cancel only takes effect at the next section boundary, so the
	// in-flight call has to be released for Cancel to return.
	done := make(chan bool, 1)
	go func() { done <- manager.Cancel(jobID) }()
	close(completer.release)
	assert.True(t, <-done)

	_, ok := manager.Status(jobID)
	assert.False(t, ok)
	c, _ := store.Get("shopify")
	assert.Equal(t, StatusCancelled, c.Status)
}

func TestManager_CancelUnknownJob(t *testing.T) {
	manager, _ := newTestManager(t, &scriptedCompleter{})
	assert.False(t, manager.Cancel("nope"))
}

func TestManager_Shutdown(t *testing.T) {
	completer := newGatedCompleter()
	manager, store := newTestManager(t, completer)

	jobID, err := manager.Start("shopify")
	require.NoError(t, err)
	<-completer.started

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(completer.release)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, manager.Shutdown(ctx))

	_, ok := manager.Status(jobID)
	assert.False(t, ok)
	c, _ := store.Get("shopify")
	assert.Equal(t, StatusCancelled, c.Status)
}
