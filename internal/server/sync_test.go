package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mbrelay/internal/bot"
	"github.com/woozymasta/mbrelay/internal/metabans"
	"github.com/woozymasta/mbrelay/internal/models"
	"github.com/woozymasta/mbrelay/internal/plugin"
)

type recordingExecutor struct {
	mu       sync.Mutex
	commands []string
}

func (e *recordingExecutor) Exec(_ context.Context, cmd string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, cmd)
	return "", nil
}

func (e *recordingExecutor) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

type banStore struct {
	bans    []models.Penalty
	clients map[int64]*models.ClientRecord
}

func newBanStore(n int) *banStore {
	s := &banStore{clients: make(map[int64]*models.ClientRecord, n)}
	for i := int64(1); i <= int64(n); i++ {
		s.clients[i] = &models.ClientRecord{ID: i, GUID: fmt.Sprintf("guid-%d", i), Name: fmt.Sprintf("player%d", i)}
		s.bans = append(s.bans, models.Penalty{ID: i, Type: models.PenaltyBan, ClientID: i, Reason: "cheat"})
	}

	return s
}

func (s *banStore) ActiveBans(context.Context, time.Time, time.Time) ([]models.Penalty, error) {
	return s.bans, nil
}

func (s *banStore) GetClient(_ context.Context, id int64) (*models.ClientRecord, error) {
	return s.clients[id], nil
}

// slowMetabans answers every query of a call with OK after delay.
func slowMetabans(delay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		time.Sleep(delay)

		var responses []map[string]any
		for i := 0; ; i++ {
			action := r.PostForm.Get(fmt.Sprintf("requests[%d][action]", i))
			if action == "" {
				break
			}
			responses = append(responses, map[string]any{
				"status":     "OK",
				"request":    map[string]string{"action": action},
				"fetch_time": "0.010 s",
				"data":       map[string]any{},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"responses": responses})
	}
}

func TestSyncCommandOutlivesJobTimeout(t *testing.T) {
	mbSrv := httptest.NewServer(slowMetabans(25 * time.Millisecond))
	t.Cleanup(mbSrv.Close)

	cfg := testConfig()
	cfg.Metabans.Timeout = 20 * time.Millisecond
	cfg.Plugin.SyncTimeout = 10 * time.Second

	exec := &recordingExecutor{}
	roster := bot.NewRoster(bot.NewConsole(exec, bot.Templates{}, zerolog.Nop()), time.Hour, zerolog.Nop())
	mb := metabans.New(metabans.Options{URL: mbSrv.URL, Timeout: 5 * time.Second, Logger: zerolog.Nop()})

	relay, err := plugin.New(plugin.Config{Game: "bfbc2", MessageType: plugin.MessageNone},
		mb, roster, newBanStore(200), zerolog.Nop())
	require.NoError(t, err)

	srv := New(relay, roster, mb, cfg)
	require.Less(t, srv.jobTimeout, 4*25*time.Millisecond)
	srv.StartWorkers()

	ts := &testServer{srv: srv, handler: srv.Run()}
	rec := ts.do(http.MethodPost, "/api/commands",
		`{"command":"!metabanssync","admin":{"cid":"1","guid":"admin","name":"Admin","level":100}}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code)

	srv.StopWorkers()

	var told []string
	for _, cmd := range exec.Commands() {
		if msg, ok := strings.CutPrefix(cmd, "tell 1 "); ok {
			told = append(told, strings.Trim(msg, `"`))
		}
	}

	assert.Equal(t, []string{
		"will now send 200 bans to metabans.com",
		"50 bans sent",
		"50 bans sent",
		"50 bans sent",
		"50 bans sent",
		"all active bans sent to metabans.com",
	}, told)
}

func TestJobContext(t *testing.T) {
	cfg := testConfig()
	cfg.Plugin.SyncTimeout = 0
	ts := newTestServer(t, cfg, "")
	t.Cleanup(ts.srv.StopWorkers)

	ctx, cancel := ts.srv.jobContext(job{event: plugin.Event{Type: plugin.EventAuth}})
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(ts.srv.jobTimeout), deadline, time.Second)

	ctx, cancel = ts.srv.jobContext(job{command: "mbc"})
	defer cancel()
	_, ok = ctx.Deadline()
	assert.True(t, ok)

	ctx, cancel = ts.srv.jobContext(job{command: "metabanssync"})
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
