package bot

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/woozymasta/mbrelay/internal/game"
	"github.com/woozymasta/mbrelay/internal/models"
	"github.com/woozymasta/mbrelay/internal/plugin"
)

// Player is a connected client known from bot events.
type Player struct {
	console *Console
	seen    time.Time
	info    models.ClientInfo
	mu      sync.RWMutex
}

func (p *Player) snapshot() models.ClientInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.info
}

// GUID implements plugin.Client.
func (p *Player) GUID() string { return p.snapshot().GUID }

// Name implements plugin.Client.
func (p *Player) Name() string { return p.snapshot().Name }

// IP implements plugin.Client.
func (p *Player) IP() string { return p.snapshot().IP }

// PBID implements plugin.Client.
func (p *Player) PBID() string { return p.snapshot().PBID }

// Level implements plugin.Client.
func (p *Player) Level() int { return p.snapshot().Level }

// Masked implements plugin.Client.
func (p *Player) Masked() bool { return p.snapshot().Masked }

// Message sends a private message to the player.
func (p *Player) Message(ctx context.Context, msg string) error {
	return p.console.tell(ctx, p, msg)
}

// Kick removes the player from the server.
func (p *Player) Kick(ctx context.Context, reason string) error {
	return p.console.kick(ctx, p, reason)
}

// TempBan bans the player for d.
func (p *Player) TempBan(ctx context.Context, reason string, d time.Duration) error {
	return p.console.tempBan(ctx, p, reason, d)
}

func (p *Player) fill(v vars) vars {
	info := p.snapshot()
	v.cid, v.name, v.guid = info.CID, info.Name, info.GUID

	return v
}

// Roster tracks connected players and implements plugin.Console.
type Roster struct {
	*Console

	log        zerolog.Logger
	staleAfter time.Duration

	// players maps a slot key to *Player.
	players sync.Map
}

// NewRoster returns an empty roster. Players not reported for staleAfter
// are dropped by Run.
func NewRoster(console *Console, staleAfter time.Duration, logger zerolog.Logger) *Roster {
	return &Roster{Console: console, staleAfter: staleAfter, log: logger}
}

func rosterKey(info models.ClientInfo) string {
	if info.CID != "" {
		return info.CID
	}

	return "guid:" + info.GUID
}

// Update records info and returns the matching player.
func (r *Roster) Update(info models.ClientInfo) *Player {
	key := rosterKey(info)
	v, loaded := r.players.LoadOrStore(key, &Player{console: r.Console, info: info, seen: time.Now()})
	p := v.(*Player)

	if loaded {
		p.mu.Lock()
		if p.info.GUID != info.GUID && info.GUID != "" {
			r.log.Debug().Str("cid", info.CID).Str("old", p.info.GUID).Str("new", info.GUID).Msg("Slot reused")
		}
		p.info = info
		p.seen = time.Now()
		p.mu.Unlock()
	}

	return p
}

// Detached returns a player for info without tracking it, for events
// about players that are not connected.
func (r *Roster) Detached(info models.ClientInfo) *Player {
	return &Player{console: r.Console, info: info, seen: time.Now()}
}

// Remove forgets the player in the slot of info.
func (r *Roster) Remove(info models.ClientInfo) {
	r.players.Delete(rosterKey(info))
}

// Len returns the number of tracked players.
func (r *Roster) Len() int {
	n := 0
	r.players.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}

func (r *Roster) list() []*Player {
	var out []*Player
	r.players.Range(func(_, v any) bool {
		out = append(out, v.(*Player))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return rosterKey(out[i].snapshot()) < rosterKey(out[j].snapshot())
	})

	return out
}

// Clients implements plugin.Console.
func (r *Roster) Clients() []plugin.Client {
	players := r.list()
	out := make([]plugin.Client, 0, len(players))
	for _, p := range players {
		out = append(out, p)
	}

	return out
}

// FindClient implements plugin.Console. A slot id, guid or exact name
// selects one player; otherwise every name containing query matches.
func (r *Roster) FindClient(query string) []plugin.Client {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	needle := strings.ToLower(game.StripColors(query))
	players := r.list()

	for _, p := range players {
		info := p.snapshot()
		if info.CID == query || strings.EqualFold(info.GUID, query) ||
			strings.ToLower(game.StripColors(info.Name)) == needle {
			return []plugin.Client{p}
		}
	}

	var out []plugin.Client
	for _, p := range players {
		if strings.Contains(strings.ToLower(game.StripColors(p.Name())), needle) {
			out = append(out, p)
		}
	}

	return out
}

// Run drops stale players until ctx is done.
func (r *Roster) Run(ctx context.Context) {
	if r.staleAfter <= 0 {
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.gc(time.Now())
		}
	}
}

func (r *Roster) gc(now time.Time) {
	r.players.Range(func(key, v any) bool {
		p := v.(*Player)
		p.mu.RLock()
		stale := now.Sub(p.seen) > r.staleAfter
		p.mu.RUnlock()

		if stale {
			r.players.Delete(key)
			r.log.Trace().Str("key", key.(string)).Msg("Stale player dropped")
		}
		return true
	})
}
