package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixhub/catalog-server/internal/config"
)

// fakeTask implements BackgroundTask for lifecycle tests
type fakeTask struct {
	mu          sync.Mutex
	startCalled bool
	stopCalled  bool
	stop        chan struct{}
}

func newFakeTask() *fakeTask {
	return &fakeTask{stop: make(chan struct{})}
}

func (f *fakeTask) Start(ctx context.Context) error {
	f.mu.Lock()
	f.startCalled = true
	f.mu.Unlock()
	select {
	case <-ctx.Done():
	case <-f.stop:
	}
	return nil
}

func (f *fakeTask) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopCalled {
		close(f.stop)
	}
	f.stopCalled = true
	return nil
}

func (f *fakeTask) wasStartCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalled
}

func (f *fakeTask) wasStopCalled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalled
}

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestCatalogApp_StartStop(t *testing.T) {
	t.Parallel()

	addr := freeAddress(t)
	app := newTestApp(t, createValidTestConfig(t), WithAddress(addr))
	task := newFakeTask()
	app.components.Refresher = task

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start() }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, task.wasStartCalled())

	require.NoError(t, app.Stop(5*time.Second))
	assert.True(t, task.wasStopCalled())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestCatalogApp_StartFailsOnBusyPort(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	app := newTestApp(t, createValidTestConfig(t), WithAddress(l.Addr().String()))
	app.components.Refresher = newFakeTask()
	defer func() { _ = app.Components().Refresher.Stop() }()

	err = app.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP server failed")
}

func TestCatalogApp_GetConfig(t *testing.T) {
	t.Parallel()

	cfg := createValidTestConfig(t)
	app := newTestApp(t, cfg)
	assert.Same(t, cfg, app.GetConfig())
	assert.Equal(t, config.StorageTypeFile, app.GetConfig().GetStorageType())
}
