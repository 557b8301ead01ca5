package server

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/mbrelay/internal/bot"
	"github.com/woozymasta/mbrelay/internal/metabans"
	"github.com/woozymasta/mbrelay/internal/plugin"
)

// Relay is the Metabans plugin as seen by the bridge.
type Relay interface {
	HandleEvent(ctx context.Context, ev plugin.Event) error
	Dispatch(ctx context.Context, admin plugin.Client, name, args string) error
	HasCommand(name string) bool
	LongRunning(name string) bool
	Enabled() bool
	GameName() string
}

// Server holds the dependencies, configuration, and runtime state required
// to handle bridge requests and background Metabans processing.
type Server struct {
	// relay receives queued events and commands.
	relay Relay

	// roster tracks the players reported by the admin bot.
	roster *bot.Roster

	// metabans serves live status lookups.
	metabans *metabans.Client

	// metrics exposes queue and job counters on /metrics.
	metrics *metrics

	// queue is a buffered channel used to pass jobs from HTTP handlers
	// to background workers, so the bot never waits on Metabans.
	queue chan job

	// shutdown is closed to stop background goroutines.
	shutdown chan struct{}

	// queueMu guards queue against sends after StopWorkers closed it.
	queueMu     sync.RWMutex
	queueClosed bool

	// ctx bounds every job and is canceled once workers have drained the queue.
	ctx    context.Context
	cancel context.CancelFunc

	// authToken is the bearer token the admin bot must present.
	authToken string

	// wg waits for workers to finish processing before shutdown completes.
	wg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// workers is the size of the worker pool.
	workers int

	// jobTimeout bounds a single event or command, Metabans round trips included.
	jobTimeout time.Duration

	// syncTimeout bounds long-running commands such as a full ban sync. Zero means no limit.
	syncTimeout time.Duration

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// job is a unit of work processed by background workers: either a bot
// event or an admin command.
type job struct {
	admin   plugin.Client
	event   plugin.Event
	command string
	args    string
}

func (j job) isCommand() bool {
	return j.command != ""
}
