package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/woozymasta/mbrelay/internal/game"
	"github.com/woozymasta/mbrelay/internal/metabans"
	"github.com/woozymasta/mbrelay/internal/models"
)

const (
	// maxBansPerCall bounds the bans sent in one bulk request.
	maxBansPerCall = 50
	// permanentBanWindow is how far back permanent bans are synced.
	permanentBanWindow = 90 * 24 * time.Hour
)

// Sync sends every active ban of the bot database to Metabans, in chunks.
// progress receives the same messages an admin sees in game.
func (p *Plugin) Sync(ctx context.Context, progress func(msg string)) error {
	if !p.Enabled() {
		return ErrDisabled
	}

	now := time.Now()
	bans, err := p.store.ActiveBans(ctx, now, now.Add(-permanentBanWindow))
	if err != nil {
		return fmt.Errorf("load active bans: %w", err)
	}

	if len(bans) == 0 {
		progress("no active ban found")
		return nil
	}
	progress(fmt.Sprintf("will now send %d bans to metabans.com", len(bans)))

	for start := 0; start < len(bans); start += maxBansPerCall {
		end := min(start+maxBansPerCall, len(bans))

		queries, err := p.banQueries(ctx, bans[start:end], now)
		if err != nil {
			return err
		}

		res, err := p.mb.SendBulk(ctx, queries)
		if err != nil {
			return err
		}
		if res.AuthFailed() {
			return metabans.ErrAuthentication
		}

		progress(fmt.Sprintf("%d bans sent", res.CountOK(metabans.ActionAssessPlayer)))
		p.logStats(res.Stats)
	}

	progress("all active bans sent to metabans.com")

	return nil
}

// banQueries builds sightings for the distinct banned players followed by
// one black assessment per ban.
func (p *Plugin) banQueries(ctx context.Context, bans []models.Penalty, now time.Time) ([]metabans.Query, error) {
	var (
		sightings   []metabans.Query
		assessments []metabans.Query
		seen        = make(map[int64]struct{}, len(bans))
	)

	for _, ban := range bans {
		if ban.Type != models.PenaltyBan && ban.Type != models.PenaltyTempBan {
			continue
		}

		c, err := p.store.GetClient(ctx, ban.ClientID)
		if err != nil {
			return nil, fmt.Errorf("load client %d: %w", ban.ClientID, err)
		}
		if c == nil {
			p.log.Debug().Int64("client_id", ban.ClientID).Msg("Could not find client")
			continue
		}

		if _, ok := seen[c.ID]; !ok {
			seen[c.ID] = struct{}{}
			sightings = append(sightings, metabans.SightQuery(p.gameName, p.cfg.GroupName, metabans.Player{
				UID:          c.GUID,
				Name:         c.Name,
				IP:           c.IP,
				AlternateUID: c.PBID,
			}))
		}

		q := metabans.AssessQuery(p.gameName, c.GUID, metabans.AssessBlack, ban.Remaining(now), game.StripColors(ban.Reason))
		p.log.Trace().Str("guid", c.GUID).Dur("length", q.AssessmentLength).Msg("Add ban")
		assessments = append(assessments, q)
	}

	return append(sightings, assessments...), nil
}

func (p *Plugin) logStats(stats metabans.Stats) {
	for _, key := range stats.Keys() {
		s := stats.Summary(key)
		p.log.Debug().
			Str("key", key).
			Int("calls", s.Count).
			Float64("min_ms", s.Min).
			Float64("max_ms", s.Max).
			Float64("mean_ms", s.Mean).
			Float64("stddev_ms", s.StdDev).
			Msg("Metabans call stats")
	}
}
