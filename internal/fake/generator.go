// Package fake populates a bot database with random clients and penalties for testing ban sync.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mbrelay/internal/models"
)

// Store is the part of the bot database the generator writes to.
type Store interface {
	SaveClient(ctx context.Context, c models.ClientRecord) (int64, error)
	AddPenalty(ctx context.Context, p models.Penalty) (int64, error)
}

var (
	namePrefixes = []string{"Sn1per", "Ghost", "Viper", "^1Red", "^4Blue", "Noob", "xX_Killer", "Medic", "Tank", "Ranger"}
	reasons      = []string{"aimbot", "wallhack", "team killing", "spawn camping", "racism", "spam", "ban evasion"}
	keywords     = []string{"", "", "cheat", "tk", "lang", "spam"}
	penaltyTypes = []string{
		models.PenaltyBan, models.PenaltyTempBan, models.PenaltyTempBan,
		models.PenaltyKick, models.PenaltyWarning, models.PenaltyNotice,
	}
)

// GenerateData populates the storage with count randomized clients,
// each carrying zero to three penalties spread over the last 120 days.
func GenerateData(ctx context.Context, store Store, count int) error {
	now := time.Now()
	penalties := 0

	for i := 0; i < count; i++ {
		seen := now.Add(-time.Duration(rand.Intn(120*24*60)) * time.Minute)

		client := models.ClientRecord{
			GUID:      fmt.Sprintf("%016X%016X", rand.Uint64(), rand.Uint64()),
			PBID:      fmt.Sprintf("%016x%016x", rand.Uint64(), rand.Uint64()),
			Name:      fmt.Sprintf("%s%d", namePrefixes[rand.Intn(len(namePrefixes))], rand.Intn(1000)),
			IP:        fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255)),
			LastVisit: seen,
		}

		id, err := store.SaveClient(ctx, client)
		if err != nil {
			return fmt.Errorf("save client %s: %w", client.GUID, err)
		}

		for n := rand.Intn(4); n > 0; n-- {
			if _, err := store.AddPenalty(ctx, randomPenalty(id, seen)); err != nil {
				return fmt.Errorf("add penalty for client %d: %w", id, err)
			}
			penalties++
		}

		if (i+1)%100 == 0 {
			log.Debug().Msgf("Generated %d/%d clients", i+1, count)
		}
	}

	log.Info().Int("clients", count).Int("penalties", penalties).Msg("Fake data generated")

	return nil
}

func randomPenalty(clientID int64, seen time.Time) models.Penalty {
	p := models.Penalty{
		Type:     penaltyTypes[rand.Intn(len(penaltyTypes))],
		ClientID: clientID,
		AdminID:  int64(rand.Intn(5)),
		Keyword:  keywords[rand.Intn(len(keywords))],
		Reason:   reasons[rand.Intn(len(reasons))],
		TimeAdd:  seen.Add(-time.Duration(rand.Intn(60)) * time.Minute),
		Inactive: rand.Float32() < 0.1,
	}

	switch p.Type {
	case models.PenaltyBan:
		p.Duration = -1
	case models.PenaltyTempBan:
		// Up to 30 days, so some are expired and some still running.
		p.Duration = int64(rand.Intn(30*24*60) + 1)
		p.TimeExpire = p.TimeAdd.Add(time.Duration(p.Duration) * time.Minute)
	default:
		p.TimeExpire = p.TimeAdd
	}

	return p
}
