// Package plugin relays admin bot events to Metabans and turns Metabans
// verdicts back into bot actions: kicks, ban messages and admin notices.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/woozymasta/mbrelay/internal/game"
	"github.com/woozymasta/mbrelay/internal/metabans"
)

// Ban message channels.
const (
	MessageNone   = "none"
	MessageNormal = "normal"
	MessageBig    = "big"
)

// Config holds the plugin preferences.
type Config struct {
	// Commands maps "name" or "name-alias" to the minimum admin level.
	Commands map[string]int

	// Game is the bot game name, e.g. "bfbc2" or "cod4".
	Game      string
	GroupName string

	// BanMessage is broadcast when a connecting player is banned on Metabans.
	// $clientname, $clientguid and $reason are substituted.
	BanMessage  string
	MessageType string

	AdminsLevel   int
	NoReasonLevel int

	// TempBanFallback is the assessment length of a tempban event without duration.
	TempBanFallback time.Duration
	// MinTempBan skips tempban events shorter than this.
	MinTempBan time.Duration
	// SightingCooldown suppresses repeated sightings from update events. Zero disables it.
	SightingCooldown time.Duration

	// TempBanBanned tempbans players with an expiring Metabans ban
	// until the expiry instead of kicking them.
	TempBanBanned bool
}

// Plugin reacts to bot events and admin commands.
type Plugin struct {
	mb       *metabans.Client
	console  Console
	store    BanStore
	geo      Locator
	log      zerolog.Logger
	commands map[string]*command
	cfg      Config
	gameName string

	// sightings holds the last sighting time per xxhash of a player guid.
	sightings sync.Map
	disabled  atomic.Bool
}

// Option customizes a Plugin.
type Option func(*Plugin)

// WithLocator adds player countries to admin notices.
func WithLocator(l Locator) Option {
	return func(p *Plugin) { p.geo = l }
}

// New validates the configuration and builds the command table.
// An unsupported game is reported as game.ErrUnsupportedGame.
func New(
	cfg Config,
	mb *metabans.Client,
	console Console,
	store BanStore,
	logger zerolog.Logger,
	opts ...Option,
) (*Plugin, error) {
	gameName, err := game.MetabansName(cfg.Game)
	if err != nil {
		return nil, err
	}

	switch cfg.MessageType {
	case MessageNone, MessageNormal, MessageBig:
	case "":
		cfg.MessageType = MessageNone
	default:
		return nil, fmt.Errorf("invalid message type %q", cfg.MessageType)
	}

	if cfg.TempBanFallback <= 0 {
		cfg.TempBanFallback = 30 * time.Second
	}

	p := &Plugin{
		mb:       mb,
		console:  console,
		store:    store,
		log:      logger,
		cfg:      cfg,
		gameName: gameName,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.commands, err = p.buildCommands(cfg.Commands); err != nil {
		return nil, err
	}

	p.log.Info().
		Str("game", gameName).
		Int("admins_level", cfg.AdminsLevel).
		Str("message_type", cfg.MessageType).
		Msg("Metabans plugin ready")

	return p, nil
}

// Enabled reports whether the plugin still talks to Metabans.
// It turns false for good after an authentication failure.
func (p *Plugin) Enabled() bool {
	return !p.disabled.Load()
}

// GameName returns the Metabans name of the configured game.
func (p *Plugin) GameName() string {
	return p.gameName
}

// Run expires sighting cool-down entries until ctx is done.
func (p *Plugin) Run(ctx context.Context) {
	if p.cfg.SightingCooldown <= 0 {
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.gcSightings(time.Now())
		}
	}
}

func (p *Plugin) gcSightings(now time.Time) {
	p.sightings.Range(func(key, value any) bool {
		if t, ok := value.(time.Time); !ok || now.Sub(t) > p.cfg.SightingCooldown {
			p.sightings.Delete(key)
		}
		return true
	})
}

// coolingDown reports whether guid was sighted within the cool-down and
// records the sighting otherwise.
func (p *Plugin) coolingDown(guid string, now time.Time) bool {
	if p.cfg.SightingCooldown <= 0 {
		return false
	}

	key := xxhash.Sum64String(guid)
	if v, ok := p.sightings.Load(key); ok {
		if t, ok := v.(time.Time); ok && now.Sub(t) < p.cfg.SightingCooldown {
			return true
		}
	}
	p.sightings.Store(key, now)

	return false
}

// HandleEvent forwards one bot event to Metabans. Events are dropped
// while the plugin is disabled.
func (p *Plugin) HandleEvent(ctx context.Context, ev Event) error {
	if !p.Enabled() {
		p.log.Debug().Str("event", string(ev.Type)).Msg("Plugin disabled, event dropped")
		return nil
	}
	if ev.Client == nil {
		return nil
	}

	c := ev.Client
	log := p.log.With().Str("event", string(ev.Type)).Str("player", c.Name()).Logger()

	var err error
	switch ev.Type {
	case EventAuth, EventUpdate:
		if ev.Type == EventUpdate && p.coolingDown(c.GUID(), time.Now()) {
			log.Trace().Msg("Sighting skipped by cool-down")
			return nil
		}
		log.Info().Msg("Sending sighting event to Metabans")
		var status *metabans.PlayerStatus
		if status, err = p.sight(ctx, c); err == nil {
			p.onStatus(ctx, c, status)
		}

	case EventBan:
		log.Info().Msg("Sending ban event to Metabans")
		_, err = p.assess(ctx, c, metabans.AssessBlack, 0, ev.Data.ReasonText())

	case EventTempBan:
		length := p.cfg.TempBanFallback
		if ev.Data.Duration != nil {
			length = time.Duration(*ev.Data.Duration * float64(time.Minute)).Truncate(time.Second)
		}
		log.Debug().Dur("duration", length).Msg("Tempban duration")
		if length < p.cfg.MinTempBan {
			return nil
		}
		log.Info().Msg("Sending tempban event to Metabans")
		_, err = p.assess(ctx, c, metabans.AssessBlack, length, ev.Data.ReasonText())

	case EventUnban:
		log.Info().Msg("Sending unban event to Metabans")
		_, err = p.assess(ctx, c, metabans.AssessNone, 0, ev.Data.ReasonText())

	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEvent, ev.Type)
	}

	if err != nil {
		p.logError(log, err)
	}

	return err
}

// logError logs a Metabans failure and disables the plugin on bad credentials.
func (p *Plugin) logError(log zerolog.Logger, err error) {
	if errors.Is(err, metabans.ErrAuthentication) {
		log.Error().Err(err).Msg("Bad Metabans username or api key, disabling Metabans plugin")
		p.disabled.Store(true)
		return
	}

	log.Error().Err(err).Msg("Metabans request failed")
}

func (p *Plugin) sight(ctx context.Context, c Client) (*metabans.PlayerStatus, error) {
	return p.mb.SightPlayer(ctx, p.gameName, p.cfg.GroupName, metabans.Player{
		UID:          c.GUID(),
		Name:         c.Name(),
		IP:           c.IP(),
		AlternateUID: c.PBID(),
	})
}

func (p *Plugin) assess(
	ctx context.Context,
	c Client,
	t metabans.AssessmentType,
	length time.Duration,
	reason string,
) (*metabans.PlayerStatus, error) {
	return p.mb.AssessPlayer(ctx, p.gameName, c.GUID(), t, length, game.StripColors(reason))
}
