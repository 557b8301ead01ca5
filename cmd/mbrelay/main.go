// main is the entry point of the mbrelay application.
// It initializes the configuration, logger, bot database, Metabans client,
// game server console and plugin, and starts the bridge API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mbrelay/internal/bot"
	"github.com/woozymasta/mbrelay/internal/config"
	"github.com/woozymasta/mbrelay/internal/fake"
	"github.com/woozymasta/mbrelay/internal/geoip"
	"github.com/woozymasta/mbrelay/internal/logger"
	"github.com/woozymasta/mbrelay/internal/maintenance"
	"github.com/woozymasta/mbrelay/internal/metabans"
	"github.com/woozymasta/mbrelay/internal/plugin"
	"github.com/woozymasta/mbrelay/internal/rcon"
	"github.com/woozymasta/mbrelay/internal/server"
	"github.com/woozymasta/mbrelay/internal/storage"
	"github.com/woozymasta/mbrelay/internal/vars"
)

func main() {
	cfg := config.Parse()

	logFile := logger.Setup(cfg.Logger)
	defer func() { _ = logFile.Close() }()

	log.Info().Str("version", vars.Version).Msg("Starting mbrelay service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// GeoIP is optional, countries are only shown in admin notices
	var (
		opts        []plugin.Option
		geoProvider *geoip.Provider
	)
	if cfg.GeoIP.Path != "" {
		log.Info().Msg("Checking GeoIP database...")
		if _, err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		var err error
		geoProvider, err = geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
			geoProvider = nil
		} else {
			opts = append(opts, plugin.WithLocator(geoProvider))
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()

	if cfg.Storage.GenerateCount > 0 {
		if err := fake.GenerateData(ctx, store, cfg.Storage.GenerateCount); err != nil {
			log.Error().Err(err).Msg("Failed to generate fake data")
		}
		return
	}

	mb := metabans.New(metabans.Options{
		Logger:    logger.Component("metabans"),
		URL:       cfg.Metabans.URL,
		UserAgent: vars.UserAgent(),
		Username:  cfg.Metabans.Username,
		APIKey:    cfg.Metabans.APIKey,
		Timeout:   cfg.Metabans.Timeout,
	})

	// Game server console
	rc := rcon.New(rcon.Options{
		Logger:   logger.Component("rcon"),
		Address:  cfg.RCON.Address,
		Password: cfg.RCON.Password,
		Timeout:  cfg.RCON.Timeout,
	})
	defer func() {
		if err := rc.Close(); err != nil && !errors.Is(err, rcon.ErrClosed) {
			log.Error().Err(err).Msg("Error closing RCON connection")
		}
	}()

	console := bot.NewConsole(rc, bot.Templates{
		Say:     cfg.RCON.Say,
		SayBig:  cfg.RCON.SayBig,
		Tell:    cfg.RCON.Tell,
		Kick:    cfg.RCON.Kick,
		TempBan: cfg.RCON.TempBan,
	}, logger.Component("console"))
	roster := bot.NewRoster(console, cfg.RCON.Roster, logger.Component("roster"))

	relay, err := plugin.New(plugin.Config{
		Commands:         cfg.Plugin.Commands,
		Game:             cfg.Plugin.Game,
		GroupName:        cfg.Metabans.GroupName,
		BanMessage:       cfg.Plugin.BanMessage,
		MessageType:      cfg.Plugin.MessageType,
		AdminsLevel:      cfg.Plugin.AdminsLevel,
		NoReasonLevel:    cfg.Plugin.NoReasonLevel,
		TempBanFallback:  cfg.Plugin.TempBanFallback,
		MinTempBan:       cfg.Plugin.MinTempBan,
		SightingCooldown: cfg.Plugin.SightingCooldown,
		TempBanBanned:    cfg.Plugin.TempBanBanned,
	}, mb, roster, store, logger.Component("plugin"), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Metabans plugin")
	}

	if maintenance.Run(ctx, cfg, relay, mb) {
		return
	}

	go relay.Run(ctx)
	go roster.Run(ctx)
	if geoProvider != nil {
		go geoProvider.Watch(ctx, cfg.GeoIP.URL, cfg.GeoIP.Interval)
	}

	// Init server
	srvHandler := server.New(relay, roster, mb, cfg)

	// Background queue
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srvHandler.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Metabans.Timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	<-ctx.Done()
	stop()

	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	log.Info().Msg("Server exited")
}
