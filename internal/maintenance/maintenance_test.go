package maintenance

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/woozymasta/mbrelay/internal/config"
	"github.com/woozymasta/mbrelay/internal/metabans"
)

type fakeSyncer struct {
	synced bool
}

func (f *fakeSyncer) Sync(_ context.Context, progress func(string)) error {
	f.synced = true
	progress("no active ban found")
	return nil
}

func (f *fakeSyncer) GameName() string { return "COD_4" }

type fakeMetabans struct {
	mu       sync.Mutex
	checked  []string
	accounts []string
}

func (f *fakeMetabans) PlayerStatus(_ context.Context, gameName, uid string) (*metabans.PlayerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, gameName+"/"+uid)

	if uid == "unknown" {
		return nil, &metabans.APIError{Code: metabans.CodeUnknownPlayer}
	}
	if uid == "empty" {
		return nil, nil
	}

	return &metabans.PlayerStatus{IsWatched: true}, nil
}

func (f *fakeMetabans) AccountAvailability(_ context.Context, names ...string) ([]metabans.AccountAvailability, error) {
	f.accounts = append(f.accounts, names...)

	out := make([]metabans.AccountAvailability, len(names))
	for i, n := range names {
		out[i] = metabans.AccountAvailability{AccountName: metabans.FlexString(n), IsAvailable: i%2 == 0}
	}

	return out, nil
}

func TestRunNothing(t *testing.T) {
	syncer, mb := &fakeSyncer{}, &fakeMetabans{}

	assert.False(t, Run(context.Background(), &config.Config{}, syncer, mb))
	assert.False(t, syncer.synced)
}

func TestRunTasks(t *testing.T) {
	cfg := &config.Config{
		Check:        []string{"g1", "g2", "unknown", "empty", "g5"},
		CheckAccount: []string{"free", "taken"},
	}
	cfg.Storage.Sync = true
	syncer, mb := &fakeSyncer{}, &fakeMetabans{}

	assert.True(t, Run(context.Background(), cfg, syncer, mb))
	assert.True(t, syncer.synced)
	assert.Equal(t, []string{"free", "taken"}, mb.accounts)

	sort.Strings(mb.checked)
	assert.Equal(t, []string{"COD_4/empty", "COD_4/g1", "COD_4/g2", "COD_4/g5", "COD_4/unknown"}, mb.checked)
}
