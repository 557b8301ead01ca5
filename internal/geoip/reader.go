package geoip

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Provider resolves player countries from a GeoLite2 database that can be
// swapped while lookups are running.
type Provider struct {
	db   *geoip2.Reader
	path string
	mu   sync.RWMutex
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db, path: path}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil

	return err
}

// Reload reopens the database file. The previous reader stays in use if
// the new file cannot be opened.
func (p *Provider) Reload() error {
	db, err := geoip2.Open(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.db
	p.db = db
	p.mu.Unlock()

	if old != nil {
		return old.Close()
	}

	return nil
}

// Watch refreshes the database from url every interval and reloads it
// after a download, until ctx is done.
func (p *Provider) Watch(ctx context.Context, url string, interval time.Duration) {
	if interval <= 0 || url == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		updated, err := EnsureDB(ctx, p.path, url, interval)
		if err != nil {
			log.Error().Err(err).Msg("Failed to refresh GeoIP database")
			continue
		}
		if !updated {
			continue
		}

		if err := p.Reload(); err != nil {
			log.Error().Err(err).Msg("Failed to reload GeoIP database")
			continue
		}
		log.Info().Str("path", p.path).Msg("GeoIP database reloaded")
	}
}

// GetCountryCode returns the ISO country code of ipStr, e.g. "DE".
// It is empty for invalid or unknown addresses and on a nil or closed Provider.
func (p *Provider) GetCountryCode(ipStr string) string {
	if p == nil {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.db == nil {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}
