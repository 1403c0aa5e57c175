package training

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxlabs/sxconsole/internal/api"
	"github.com/sxlabs/sxconsole/internal/testutil"
	"github.com/sxlabs/sxconsole/internal/ui"
)

func newClient(t *testing.T, b *testutil.FakeBackend) *api.Client {
	t.Helper()
	c, err := api.New(api.Options{BaseURL: b.URL, Retries: 1})
	require.NoError(t, err)
	return c
}

func TestRunUsesDefaultModules(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.JSON(http.MethodPost, "/training/run", http.StatusOK, map[string]any{"ok": true, "result": map[string]any{"topics": "done"}})
	rec := &ui.Recorder{}
	r := NewRunner(newClient(t, b), rec, nil)

	res, err := r.Run(context.Background(), nil, true)
	require.NoError(t, err)
	assert.True(t, res.OK)

	var body api.TrainingRunRequest
	require.NoError(t, b.Requests("/training/run")[0].Decode(&body))
	assert.Equal(t, DefaultModules, body.Modules)
	assert.True(t, body.ForceFull)

	notes := rec.All()
	require.Len(t, notes, 2)
	assert.Equal(t, "Training started", notes[0].Text)
	assert.Equal(t, ui.Notification{Level: ui.LevelOK, Text: "Training finished"}, notes[1])
}

func TestUnauthorizedShowsAdminHint(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.JSON(http.MethodGet, "/training/status", http.StatusUnauthorized, map[string]any{"detail": "admin required"})
	rec := &ui.Recorder{}
	r := NewRunner(newClient(t, b), rec, nil)

	_, err := r.Status(context.Background())
	require.Error(t, err)
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, ui.Notification{Level: ui.LevelError, Text: AdminHint}, last)
}

func TestRunIsSingleFlight(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	release := make(chan struct{})
	b.Handle(http.MethodPost, "/training/run", func(w http.ResponseWriter, _ *http.Request) {
		<-release
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r := NewRunner(newClient(t, b), nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = r.Run(context.Background(), []string{"topics"}, false)
	}()
	require.Eventually(t, r.Running, time.Second, time.Millisecond)

	_, err := r.Run(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrRunning)

	close(release)
	wg.Wait()
	assert.False(t, r.Running())
	assert.Len(t, b.Requests("/training/run"), 1)
}
