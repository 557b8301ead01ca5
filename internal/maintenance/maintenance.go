// Package maintenance provides one-shot tasks run instead of the bridge server:
// ban sync, player status checks and account name checks.
package maintenance

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mbrelay/internal/config"
	"github.com/woozymasta/mbrelay/internal/metabans"
)

// checkWorkers bounds concurrent Metabans status checks.
const checkWorkers = 4

// Syncer sends the active bans of the bot database to Metabans.
type Syncer interface {
	Sync(ctx context.Context, progress func(msg string)) error
	GameName() string
}

// Metabans is the part of the API client maintenance tasks use.
type Metabans interface {
	PlayerStatus(ctx context.Context, gameName, playerUID string) (*metabans.PlayerStatus, error)
	AccountAvailability(ctx context.Context, names ...string) ([]metabans.AccountAvailability, error)
}

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, syncer Syncer, mb Metabans) bool {
	if !cfg.Maintenance() {
		return false
	}

	if len(cfg.CheckAccount) > 0 {
		checkAccounts(ctx, mb, cfg.CheckAccount)
	}

	if len(cfg.Check) > 0 {
		log.Info().Int("count", len(cfg.Check)).Msgf("Checking players with %d workers...", checkWorkers)
		runWorkerPool(ctx, cfg.Check, func(uid string) {
			checkPlayer(ctx, mb, syncer.GameName(), uid)
		})
	}

	if cfg.Storage.Sync {
		log.Info().Msg("Sending active bans to Metabans...")
		err := syncer.Sync(ctx, func(msg string) {
			log.Info().Msg(msg)
		})
		if err != nil {
			log.Error().Err(err).Msg("Ban sync failed")
		} else {
			log.Info().Msg("Ban sync completed")
		}
	}

	return true
}

func checkAccounts(ctx context.Context, mb Metabans, names []string) {
	accounts, err := mb.AccountAvailability(ctx, names...)
	if err != nil {
		log.Error().Err(err).Strs("accounts", names).Msg("Account availability check failed")
		return
	}

	for i, a := range accounts {
		name := string(a.AccountName)
		if name == "" && i < len(names) {
			name = names[i]
		}
		log.Info().Str("account", name).Bool("available", a.IsAvailable).Msg("Account name")
	}
}

func checkPlayer(ctx context.Context, mb Metabans, gameName, uid string) {
	logCtx := log.With().Str("guid", uid).Logger()

	status, err := mb.PlayerStatus(ctx, gameName, uid)
	if err != nil {
		if code, ok := metabans.ErrorCode(err); ok && code == metabans.CodeUnknownPlayer {
			logCtx.Info().Msg("Player is unknown at Metabans")
			return
		}
		logCtx.Error().Err(err).Msg("Status check failed")
		return
	}
	if status == nil {
		logCtx.Warn().Msg("No response from Metabans")
		return
	}

	ev := logCtx.Info().
		Bool("banned", status.IsBanned).
		Bool("blacklisted", status.IsBlacklisted).
		Bool("whitelisted", status.IsWhitelisted).
		Bool("watched", status.IsWatched).
		Str("reason", string(status.Reason)).
		Str("inherited", string(status.InheritedBlacklist))
	if expires, ok := status.Expires(); ok {
		ev = ev.Time("expires", expires)
	}
	ev.Msg("Player status")
}

func runWorkerPool(ctx context.Context, items []string, fn func(string)) {
	jobs := make(chan string, len(items))
	var wg sync.WaitGroup

	for i := 0; i < checkWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if ctx.Err() != nil {
					continue
				}
				fn(item)
			}
		}()
	}

	for _, item := range items {
		jobs <- item
	}
	close(jobs)

	wg.Wait()
}
