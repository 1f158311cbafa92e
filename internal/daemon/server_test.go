package daemon

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/infra"
	"github.com/eliteGoblin/focusd/site_block/internal/policy"
	"github.com/eliteGoblin/focusd/site_block/internal/usecase"
)

// nopHistory satisfies domain.HistoryStore without a database.
type nopHistory struct{}

func (nopHistory) AppendSession(domain.SessionRecord) error           { return nil }
func (nopHistory) RecentSessions(int) ([]domain.SessionRecord, error) { return nil, nil }
func (nopHistory) RecordDistraction(string, time.Time) error          { return nil }
func (nopHistory) DistractionCount(string, time.Time) (int, error)    { return 0, nil }
func (nopHistory) TotalDistractions() (int, error)                    { return 0, nil }
func (nopHistory) Prune(time.Time) error                              { return nil }
func (nopHistory) Close() error                                       { return nil }

func newTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()

	dir := t.TempDir()
	rules, err := infra.NewFileRuleTable(dir)
	require.NoError(t, err)

	groups := policy.NewRegistryWithGroups()
	engine := usecase.NewEngine(
		infra.NewMemoryStateStore(),
		rules,
		nopHistory{},
		infra.NewSystemClock(),
		NewTimerSet(func(string) {}),
		groups,
		policy.NewQuotes(),
		zap.NewNop(),
	)

	socketPath := filepath.Join(dir, "test.sock")
	srv := NewServer(socketPath, engine, zap.NewNop())
	require.NoError(t, srv.Listen())
	return srv, NewClient(socketPath)
}

func TestServer_RequestResponseRoundTrip(t *testing.T) {
	srv, client := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Serve(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
		srv.Close()
	}()

	payload, _ := json.Marshal(usecase.StartFocusRequest{Minutes: 25})
	resp, err := client.Call(usecase.Request{Type: usecase.MsgStartFocus, Payload: payload})
	require.NoError(t, err)
	assert.True(t, resp.OK, resp.Error)

	resp, err = client.Call(usecase.Request{Type: usecase.MsgGetState})
	require.NoError(t, err)
	require.True(t, resp.OK)

	var st usecase.FullState
	require.NoError(t, json.Unmarshal(resp.Data, &st))
	assert.Equal(t, domain.StatusFocus, st.Session.Status)
}

func TestServer_MalformedRequest(t *testing.T) {
	srv, client := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Serve(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
		srv.Close()
	}()

	resp, err := client.Call(usecase.Request{Type: "no-such-message"})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, usecase.ErrKindValidation, resp.ErrorKind)
}

func TestClient_DaemonNotRunning(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "absent.sock"))
	_, err := client.Call(usecase.Request{Type: usecase.MsgGetState})
	assert.Error(t, err)
}

func TestTimerSet_ArmAndCancel(t *testing.T) {
	fired := make(chan string, 1)
	ts := NewTimerSet(func(id string) { fired <- id })

	ts.Arm("a", 10*time.Millisecond)
	select {
	case id := <-fired:
		assert.Equal(t, "a", id)
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	ts.Arm("b", 10*time.Millisecond)
	ts.Cancel("b")
	select {
	case <-fired:
		t.Fatal("canceled timer fired")
	case <-time.After(50 * time.Millisecond):
	}

	// Re-arming replaces the previous schedule.
	ts.Arm("c", time.Hour)
	ts.Arm("c", 10*time.Millisecond)
	select {
	case id := <-fired:
		assert.Equal(t, "c", id)
	case <-time.After(time.Second):
		t.Fatal("re-armed timer never fired")
	}
	ts.StopAll()
}
