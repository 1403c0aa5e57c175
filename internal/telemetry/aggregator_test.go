package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxlabs/sxconsole/internal/testutil"
)

type updates struct {
	mu   sync.Mutex
	list []Update
}

func (u *updates) add(up Update) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.list = append(u.list, up)
}

func (u *updates) statuses() []Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []Status
	for _, up := range u.list {
		if len(out) == 0 || out[len(out)-1] != up.Status {
			out = append(out, up.Status)
		}
	}
	return out
}

func newTestAggregator(t *testing.T, url string, clk *testutil.FakeClock, ups *updates) *Aggregator {
	t.Helper()
	a := NewAggregator(Options{
		URL:            url,
		Header:         http.Header{"Authorization": []string{"Bearer tok"}},
		Debounce:       500 * time.Millisecond,
		WindowSize:     20,
		MaxReconnects:  2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Clock:          clk,
		OnUpdate:       ups.add,
	})
	t.Cleanup(a.Close)
	return a
}

func TestBurstIsCoalescedIntoBoundedWindow(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	batches := make(chan []string)
	b.Handle(http.MethodGet, "/api/logs", func(w http.ResponseWriter, r *http.Request) {
		testutil.StartSSE(w)
		for {
			select {
			case <-r.Context().Done():
				return
			case batch := <-batches:
				for _, data := range batch {
					testutil.WriteSSE(w, "", data)
				}
			}
		}
	})

	clk := testutil.NewFakeClock()
	ups := &updates{}
	a := newTestAggregator(t, b.URL+"/api/logs", clk, ups)
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Status() == StatusOpen }, 2*time.Second, time.Millisecond)

	// 25 events in five bursts, one debounce interval apart.
	sent := 0
	for burst := 0; burst < 5; burst++ {
		var batch []string
		for i := 0; i < 5; i++ {
			sent++
			batch = append(batch, fmt.Sprintf(`{"sentiment_positive":%d,"threat_level":0.%02d}`, 0, sent))
		}
		batches <- batch
		want := sent
		require.Eventually(t, func() bool { return a.Stats().Received == want }, 2*time.Second, time.Millisecond)
		clk.Advance(500 * time.Millisecond)
	}

	win := a.Window()
	assert.LessOrEqual(t, len(win), 20)
	require.Len(t, win, 5)
	assert.Equal(t, 0.25, win[len(win)-1].Threat)
	assert.Equal(t, 0.05, win[0].Threat)
	assert.Equal(t, 5, a.Stats().Applied)
}

func TestMalformedEventsAreDropped(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.Handle(http.MethodGet, "/api/logs", func(w http.ResponseWriter, r *http.Request) {
		testutil.StartSSE(w)
		testutil.WriteSSE(w, "", `{"sentiment_negative":0.9}`)
		testutil.WriteSSE(w, "", `{broken`)
		<-r.Context().Done()
	})

	clk := testutil.NewFakeClock()
	ups := &updates{}
	a := newTestAggregator(t, b.URL+"/api/logs", clk, ups)
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Stats().Received == 2 }, 2*time.Second, time.Millisecond)

	clk.Advance(500 * time.Millisecond)
	win := a.Window()
	require.Len(t, win, 1)
	assert.Equal(t, 0.9, win[0].Negative)
	assert.Equal(t, 1, a.Stats().Dropped)
	assert.Equal(t, StatusOpen, a.Status())

	ups.mu.Lock()
	last := ups.list[len(ups.list)-1]
	ups.mu.Unlock()
	assert.True(t, last.Heat.Negative)
}

func TestStartTwiceFails(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.Handle(http.MethodGet, "/api/logs", func(w http.ResponseWriter, r *http.Request) {
		testutil.StartSSE(w)
		<-r.Context().Done()
	})
	a := newTestAggregator(t, b.URL+"/api/logs", testutil.NewFakeClock(), &updates{})

	require.NoError(t, a.Start(context.Background()))
	assert.ErrorIs(t, a.Start(context.Background()), ErrAlreadyStarted)
	require.Eventually(t, func() bool { return a.Status() == StatusOpen }, 2*time.Second, time.Millisecond)
	assert.Len(t, b.Requests("/api/logs"), 1)
	assert.Equal(t, "Bearer tok", b.Requests("/api/logs")[0].Header.Get("Authorization"))
}

func TestGivesUpAfterBoundedRetries(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	var calls int32
	b.Handle(http.MethodGet, "/api/logs", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ups := &updates{}
	a := newTestAggregator(t, b.URL+"/api/logs", testutil.NewFakeClock(), ups)
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Status() == StatusGaveUp }, 2*time.Second, time.Millisecond)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []Status{StatusConnecting, StatusReconnecting, StatusGaveUp}, ups.statuses())
}

func TestReconnectSendsLastEventID(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	var calls int32
	b.Handle(http.MethodGet, "/api/logs", func(w http.ResponseWriter, r *http.Request) {
		testutil.StartSSE(w)
		if atomic.AddInt32(&calls, 1) == 1 {
			testutil.WriteSSE(w, "42", `{"threat_level":0.1}`)
			return
		}
		<-r.Context().Done()
	})

	a := newTestAggregator(t, b.URL+"/api/logs", testutil.NewFakeClock(), &updates{})
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, 2*time.Second, time.Millisecond)

	reqs := b.Requests("/api/logs")
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].Header.Get("Last-Event-ID"))
	assert.Equal(t, "42", reqs[1].Header.Get("Last-Event-ID"))
	assert.GreaterOrEqual(t, a.Stats().Reconnects, 1)
}

func TestCloseCancelsPendingSample(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.Handle(http.MethodGet, "/api/logs", func(w http.ResponseWriter, r *http.Request) {
		testutil.StartSSE(w)
		testutil.WriteSSE(w, "", `{"threat_level":0.9}`)
		<-r.Context().Done()
	})

	clk := testutil.NewFakeClock()
	a := newTestAggregator(t, b.URL+"/api/logs", clk, &updates{})
	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.Stats().Received == 1 }, 2*time.Second, time.Millisecond)

	a.Close()
	clk.Advance(time.Second)

	assert.Empty(t, a.Window())
	assert.Equal(t, StatusClosed, a.Status())
}
