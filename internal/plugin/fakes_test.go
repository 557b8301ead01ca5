package plugin

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
	"github.com/woozymasta/mbrelay/internal/metabans"
	"github.com/woozymasta/mbrelay/internal/models"
)

type fakeClient struct {
	guid, name, ip, pbid string
	level                int
	masked               bool

	mu       sync.Mutex
	messages []string
	kicks    []string
	tempbans []time.Duration
}

func (c *fakeClient) GUID() string { return c.guid }
func (c *fakeClient) Name() string { return c.name }
func (c *fakeClient) IP() string   { return c.ip }
func (c *fakeClient) PBID() string { return c.pbid }
func (c *fakeClient) Level() int   { return c.level }
func (c *fakeClient) Masked() bool { return c.masked }

func (c *fakeClient) Message(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeClient) Kick(_ context.Context, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kicks = append(c.kicks, reason)
	return nil
}

func (c *fakeClient) TempBan(_ context.Context, _ string, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempbans = append(c.tempbans, d)
	return nil
}

func (c *fakeClient) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

type fakeConsole struct {
	clients []Client

	mu   sync.Mutex
	said []string
	big  []string
}

func (f *fakeConsole) Say(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, msg)
	return nil
}

func (f *fakeConsole) SayBig(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.big = append(f.big, msg)
	return nil
}

func (f *fakeConsole) Clients() []Client { return f.clients }

func (f *fakeConsole) FindClient(query string) []Client {
	var out []Client
	for _, c := range f.clients {
		if c.GUID() == query || strings.Contains(strings.ToLower(c.Name()), strings.ToLower(query)) {
			out = append(out, c)
		}
	}
	return out
}

type fakeStore struct {
	bans    []models.Penalty
	clients map[int64]*models.ClientRecord
}

func (s *fakeStore) ActiveBans(context.Context, time.Time, time.Time) ([]models.Penalty, error) {
	return s.bans, nil
}

func (s *fakeStore) GetClient(_ context.Context, id int64) (*models.ClientRecord, error) {
	return s.clients[id], nil
}

type fakeLocator map[string]string

func (l fakeLocator) GetCountryCode(ip string) string { return l[ip] }

// fakeMetabans answers every indexed request with respond and records them.
type fakeMetabans struct {
	respond func(req map[string]string) map[string]any

	mu       sync.Mutex
	calls    int
	requests []map[string]string
}

func (f *fakeMetabans) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	var responses []map[string]any
	for i := 0; ; i++ {
		prefix := fmt.Sprintf("requests[%d][", i)
		req := map[string]string{}
		for k, v := range r.PostForm {
			if strings.HasPrefix(k, prefix) {
				req[strings.TrimSuffix(strings.TrimPrefix(k, prefix), "]")] = v[0]
			}
		}
		if len(req) == 0 {
			break
		}
		f.requests = append(f.requests, req)

		resp := map[string]any{"status": "OK", "data": map[string]any{}}
		if f.respond != nil {
			if custom := f.respond(req); custom != nil {
				resp = custom
			}
		}
		resp["request"] = map[string]string{"action": req["action"]}
		resp["fetch_time"] = "0.010 s"
		responses = append(responses, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"responses": responses})
}

func (f *fakeMetabans) Requests() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.requests...)
}

func (f *fakeMetabans) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func okStatus(data map[string]any) map[string]any {
	return map[string]any{"status": "OK", "data": data}
}

func errStatus(code int, msg string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": msg}}
}

type harness struct {
	plugin  *Plugin
	mb      *fakeMetabans
	console *fakeConsole
	store   *fakeStore
}

func testConfig() Config {
	return Config{
		Game:            "bfbc2",
		GroupName:       "server-1",
		BanMessage:      "METABANS $clientname ($clientguid) $reason",
		MessageType:     MessageBig,
		AdminsLevel:     40,
		NoReasonLevel:   80,
		TempBanFallback: 30 * time.Second,
		MinTempBan:      30 * time.Second,
	}
}

func newHarness(t *testing.T, cfg Config, clients ...Client) *harness {
	t.Helper()

	mb := &fakeMetabans{}
	srv := httptest.NewServer(mb)
	t.Cleanup(srv.Close)

	client := metabans.New(metabans.Options{
		URL:     srv.URL,
		Timeout: 5 * time.Second,
		Logger:  zerolog.Nop(),
	})

	console := &fakeConsole{clients: clients}
	store := &fakeStore{clients: map[int64]*models.ClientRecord{}}

	p, err := New(cfg, client, console, store, zerolog.Nop(), WithLocator(fakeLocator{"1.2.3.4": "DE"}))
	if err != nil {
		t.Fatalf("new plugin: %v", err)
	}

	return &harness{plugin: p, mb: mb, console: console, store: store}
}
