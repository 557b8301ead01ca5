// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/mbrelay/internal/logger"
	"github.com/woozymasta/mbrelay/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"MBRELAY"`
	Metabans  Metabans      `group:"Metabans Options" namespace:"metabans" env-namespace:"MBRELAY_METABANS"`
	Plugin    Plugin        `group:"Plugin Options" namespace:"plugin" env-namespace:"MBRELAY_PLUGIN"`
	RCON      RCON          `group:"RCON Options" namespace:"rcon" env-namespace:"MBRELAY_RCON"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"MBRELAY_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MBRELAY_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"MBRELAY_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MBRELAY_LOG"`

	Check        []string `long:"check" description:"Log the Metabans status of a player guid and exit (repeatable)"`
	CheckAccount []string `long:"check-account" description:"Log whether a Metabans account name is available and exit (repeatable)"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds bridge API configuration.
type Server struct {
	// betteralign:ignore

	Address     string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Bridge API listen address" default:":8080"`
	AuthToken   string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Bearer token required from the admin bot"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"8192"`
	TrustProxy  bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	Workers     int    `long:"workers" env:"WORKERS" description:"Number of workers calling Metabans" default:"4"`
	QueueSize   int    `long:"queue-size" env:"QUEUE_SIZE" description:"Pending events and commands before new ones are dropped" default:"1000"`
}

// Metabans holds the Metabans account and API client configuration.
type Metabans struct {
	// betteralign:ignore

	URL       string        `long:"url" env:"URL" description:"Metabans API endpoint" default:"http://metabans.com/api"`
	Username  string        `short:"u" long:"username" env:"USERNAME" description:"Metabans account username"`
	APIKey    string        `short:"k" long:"api-key" env:"API_KEY" description:"Metabans account API key"`
	GroupName string        `long:"group-name" env:"GROUP_NAME" description:"Group sightings are reported under, usually the server name"`
	Timeout   time.Duration `long:"timeout" env:"TIMEOUT" description:"Metabans request timeout" default:"30s"`
}

// Plugin holds the relay behavior.
type Plugin struct {
	// betteralign:ignore

	Game             string         `short:"g" long:"game" env:"GAME" description:"Bot game name (bfbc2, moh, cod4, cod5, cod6, cod7, homefront)" default:"bfbc2"`
	AdminsLevel      int            `long:"admins-level" env:"ADMINS_LEVEL" description:"Minimum level notified about watched and protected players" default:"40"`
	NoReasonLevel    int            `long:"noreason-level" env:"NOREASON_LEVEL" description:"Minimum level allowed to assess without a reason" default:"100"`
	MessageType      string         `long:"message-type" env:"MESSAGE_TYPE" description:"How the ban message is shown" choice:"none" choice:"normal" choice:"big" default:"big"`
	BanMessage       string         `long:"ban-message" env:"BAN_MESSAGE" description:"Broadcast when a Metabans banned player connects ($clientname, $clientguid, $reason)" default:"METABANS $clientname ($clientguid) $reason"`
	TempBanFallback  time.Duration  `long:"tempban-fallback" env:"TEMPBAN_FALLBACK" description:"Assessment length of a tempban without duration" default:"30s"`
	MinTempBan       time.Duration  `long:"tempban-min" env:"TEMPBAN_MIN" description:"Tempbans shorter than this are not sent" default:"30s"`
	TempBanBanned    bool           `long:"tempban-banned" env:"TEMPBAN_BANNED" description:"Tempban players with an expiring Metabans ban until expiry instead of kicking"`
	SyncTimeout      time.Duration  `long:"sync-timeout" env:"SYNC_TIMEOUT" description:"Limit for a whole ban sync started in game, 0 for none; each chunk is bounded by the Metabans timeout" default:"30m"`
	SightingCooldown time.Duration  `long:"sighting-cooldown" env:"SIGHTING_COOLDOWN" description:"Ignore update sightings of a player seen within duration" default:"5m"`
	Commands         map[string]int `long:"command" env:"COMMANDS" env-delim:"," description:"Command level as name[-alias]:level" default:"metabanssync:100" default:"metabanscheck-mbc:20" default:"metabanswatch-mbw:20" default:"metabansprotect-mbp:20" default:"metabansclear-mbx:20"`
}

// RCON holds the game server console configuration.
type RCON struct {
	// betteralign:ignore

	Address  string        `short:"r" long:"address" env:"ADDRESS" description:"RCON address host:port" default:"127.0.0.1:27015"`
	Password string        `short:"p" long:"password" env:"PASSWORD" description:"RCON password"`
	Timeout  time.Duration `long:"timeout" env:"TIMEOUT" description:"RCON dial and command timeout" default:"10s"`
	Roster   time.Duration `long:"roster-ttl" env:"ROSTER_TTL" description:"Forget players not reported by the bot within duration" default:"30m"`
	Say      string        `long:"say" env:"SAY" description:"Chat broadcast command template" default:"say \"{message}\""`
	SayBig   string        `long:"say-big" env:"SAY_BIG" description:"Big broadcast command template" default:"bigtext \"{message}\""`
	Tell     string        `long:"tell" env:"TELL" description:"Private message command template" default:"tell {cid} \"{message}\""`
	Kick     string        `long:"kick" env:"KICK" description:"Kick command template" default:"kick {cid} \"{reason}\""`
	TempBan  string        `long:"tempban" env:"TEMPBAN" description:"Temporary ban command template" default:"tempban {cid} {minutes} \"{reason}\""`
}

// Storage holds admin bot database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to the admin bot SQLite database" default:"b3.db"`
	Sync          bool   `long:"sync" description:"Send every active ban of the database to Metabans and exit"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `long:"path" env:"PATH" description:"Path to MMDB file, empty disables countries in admin notices"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"120"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// Maintenance reports whether a one-shot task was requested instead of serving.
func (c *Config) Maintenance() bool {
	return c.Storage.Sync || len(c.Check) > 0 || len(c.CheckAccount) > 0
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if err := cfg.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return &cfg
}

func (c *Config) validate() error {
	if c.Server.AuthToken == "" && !c.Maintenance() && c.Storage.GenerateCount == 0 {
		return errors.New("required flag `-t, --auth-token' or environment variable `MBRELAY_AUTH_TOKEN` was not specified")
	}

	if (c.Metabans.Username == "") != (c.Metabans.APIKey == "") {
		return errors.New("metabans username and api key must be set together")
	}

	if c.Server.Workers < 1 {
		return fmt.Errorf("at least one worker is required, got %d", c.Server.Workers)
	}

	if c.Server.QueueSize < 1 {
		return fmt.Errorf("queue size must be positive, got %d", c.Server.QueueSize)
	}

	return nil
}
