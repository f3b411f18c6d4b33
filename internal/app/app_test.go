package app

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/progress-tree/internal/config"
	"github.com/JakeFAU/progress-tree/internal/progress"
)

func testConfig(addr string) config.Config {
	return config.Config{
		Hub: config.HubConfig{
			BufferSize:     16,
			MaxBatchEvents: 1,
			MaxBatchWait:   10 * time.Millisecond,
			SinkTimeout:    time.Second,
		},
		Server:   config.ServerConfig{Addr: addr, ShutdownTimeout: time.Second},
		Simulate: config.SimulateConfig{Plan: "1"},
	}
}

func TestAppForwardsRecordsToSnapshots(t *testing.T) {
	t.Parallel()

	a, err := newAppWithLogger(testConfig(""), zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, a.ServerAddr())

	root, err := progress.New(progress.WithTitle("job"), progress.WithDivisions(2))
	require.NoError(t, err)
	runID := uuid.New()
	_, err = progress.Forward(root, runID, a.GetEmitter(), fixedClock{})
	require.NoError(t, err)
	root.Inc()
	root.Inc()

	require.NoError(t, a.Close(context.Background()))
	snap, ok := a.GetSnapshots().Get(runID)
	require.True(t, ok)
	require.True(t, snap.Done)
	require.Equal(t, "job", snap.Title)
	require.Equal(t, int64(2), snap.Records)

	families, err := a.GetRegistry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestAppServesStatus(t *testing.T) {
	t.Parallel()

	a, err := newAppWithLogger(testConfig("127.0.0.1:0"), zap.NewNop())
	require.NoError(t, err)
	addr := a.ServerAddr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	require.NoError(t, a.Close(context.Background()))
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(100, 0).UTC() }
