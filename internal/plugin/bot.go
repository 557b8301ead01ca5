package plugin

import (
	"context"
	"time"

	"github.com/woozymasta/mbrelay/internal/models"
)

// Client is a player connected to the game server, as seen by the admin bot.
type Client interface {
	GUID() string
	Name() string
	IP() string
	PBID() string
	Level() int
	// Masked reports whether the player hides their admin group.
	Masked() bool

	Message(ctx context.Context, msg string) error
	Kick(ctx context.Context, reason string) error
	TempBan(ctx context.Context, reason string, d time.Duration) error
}

// Console broadcasts to the game server and looks up connected players.
type Console interface {
	Say(ctx context.Context, msg string) error
	SayBig(ctx context.Context, msg string) error
	Clients() []Client
	// FindClient returns every connected player matching query
	// (slot id, guid or part of a name).
	FindClient(query string) []Client
}

// BanStore is the admin bot's penalty database.
type BanStore interface {
	ActiveBans(ctx context.Context, now, permanentSince time.Time) ([]models.Penalty, error)
	GetClient(ctx context.Context, id int64) (*models.ClientRecord, error)
}

// Locator resolves a player IP to an ISO country code, empty when unknown.
type Locator interface {
	GetCountryCode(ip string) string
}

// EventType names a bot event the plugin reacts to.
type EventType string

// Bot events.
const (
	EventAuth    EventType = "auth"
	EventUpdate  EventType = "update"
	EventBan     EventType = "ban"
	EventTempBan EventType = "tempban"
	EventUnban   EventType = "unban"
)

// Event is a moderation or connection event raised by the bot.
type Event struct {
	Client Client
	Type   EventType
	Data   models.EventData
}
