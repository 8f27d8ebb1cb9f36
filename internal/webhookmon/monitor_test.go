package webhookmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	method string
	url    string
	drop   bool
}

type fakeClient struct {
	mu    sync.Mutex
	info  Info
	err   error
	calls []call
}

func (f *fakeClient) GetWebhookInfo(ctx context.Context) (Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "getInfo"})
	if f.err != nil {
		return Info{}, f.err
	}
	return f.info, nil
}

func (f *fakeClient) SetWebhook(ctx context.Context, publicURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "set", url: publicURL})
	f.info.URL = publicURL
	f.info.PendingUpdateCount = 0
	return nil
}

func (f *fakeClient) DeleteWebhook(ctx context.Context, dropPending bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: "delete", drop: dropPending})
	f.info.URL = ""
	return nil
}

func (f *fakeClient) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeClient) setInfo(info Info) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info = info
}

const wantURL = "https://shop.example.com/webhook/bot"

func newTestMonitor(client RegistrationClient) *Monitor {
	return NewMonitor(Options{
		Client:      client,
		DesiredURL:  wantURL,
		SettleDelay: time.Millisecond,
	})
}

func countMethod(calls []call, method string) int {
	n := 0
	for _, c := range calls {
		if c.method == method {
			n++
		}
	}
	return n
}

func TestTickNoDriftNoResync(t *testing.T) {
	client := &fakeClient{info: Info{URL: wantURL, PendingUpdateCount: 3}}
	m := newTestMonitor(client)

	m.tick(context.Background())

	calls := client.snapshot()
	assert.Zero(t, countMethod(calls, "delete"))
	assert.Zero(t, countMethod(calls, "set"))

	st := m.Status()
	assert.Equal(t, wantURL, st.RegisteredURL)
	assert.Equal(t, 3, st.PendingCount)
	assert.Empty(t, st.LastError)
}

func TestTickURLDriftTriggersOneResync(t *testing.T) {
	client := &fakeClient{info: Info{URL: "https://old.example.com/hook"}}
	m := newTestMonitor(client)

	m.tick(context.Background())

	calls := client.snapshot()
	require.Equal(t, 1, countMethod(calls, "delete"))
	require.Equal(t, 1, countMethod(calls, "set"))

	// Deregister drops the backlog and precedes the re-register.
	var ordered []string
	for _, c := range calls {
		if c.method == "delete" {
			assert.True(t, c.drop)
		}
		if c.method != "getInfo" {
			ordered = append(ordered, c.method)
		}
	}
	assert.Equal(t, []string{"delete", "set"}, ordered)
	assert.Equal(t, wantURL, m.Status().RegisteredURL)
}

func TestTickBacklogTriggersResync(t *testing.T) {
	client := &fakeClient{info: Info{URL: wantURL, PendingUpdateCount: 31}}
	m := newTestMonitor(client)

	m.tick(context.Background())

	calls := client.snapshot()
	assert.Equal(t, 1, countMethod(calls, "delete"))
	assert.Equal(t, 1, countMethod(calls, "set"))
}

func TestTickBacklogAtLimitIsHealthy(t *testing.T) {
	client := &fakeClient{info: Info{URL: wantURL, PendingUpdateCount: 30}}
	m := newTestMonitor(client)

	m.tick(context.Background())
	assert.Zero(t, countMethod(client.snapshot(), "delete"))
	assert.Equal(t, 30, m.Status().BacklogLimit)
}

func TestTickFetchFailureRecorded(t *testing.T) {
	client := &fakeClient{err: errors.New("api down")}
	m := newTestMonitor(client)

	m.tick(context.Background())

	assert.Zero(t, countMethod(client.snapshot(), "delete"))
	assert.Contains(t, m.Status().LastError, "api down")
}

func TestForceSync(t *testing.T) {
	client := &fakeClient{info: Info{URL: "https://old.example.com/hook"}}
	m := newTestMonitor(client)

	info, err := m.ForceSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, wantURL, info.URL)

	calls := client.snapshot()
	assert.Equal(t, 1, countMethod(calls, "delete"))
	assert.Equal(t, 1, countMethod(calls, "set"))
	assert.Equal(t, wantURL, m.Status().RegisteredURL)
}

func TestRunStopsOnCancel(t *testing.T) {
	client := &fakeClient{info: Info{URL: wantURL}}
	m := NewMonitor(Options{
		Client:       client,
		DesiredURL:   wantURL,
		Interval:     10 * time.Millisecond,
		InitialDelay: time.Millisecond,
		SettleDelay:  time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(client.snapshot()) > 0
	}, time.Second, time.Millisecond, "monitor never polled")
	assert.True(t, m.Status().Running)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
	assert.False(t, m.Status().Running)
}

func TestRunHealsDriftOverTime(t *testing.T) {
	client := &fakeClient{info: Info{URL: wantURL}}
	m := NewMonitor(Options{
		Client:       client,
		DesiredURL:   wantURL,
		Interval:     5 * time.Millisecond,
		InitialDelay: time.Millisecond,
		SettleDelay:  time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// Simulate external tampering.
	client.setInfo(Info{URL: "https://rogue.example.com/hook"})

	require.Eventually(t, func() bool {
		return countMethod(client.snapshot(), "set") >= 1
	}, time.Second, time.Millisecond, "drift never corrected")

	require.Eventually(t, func() bool {
		return m.Status().RegisteredURL == wantURL
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}
