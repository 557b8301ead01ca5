package plugin

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/mbrelay/internal/metabans"
	"github.com/woozymasta/mbrelay/internal/models"
)

func TestDispatchLevels(t *testing.T) {
	user := &fakeClient{guid: "guid-user", name: "User", level: 1}
	h := newHarness(t, testConfig(), user)
	ctx := context.Background()

	require.NoError(t, h.plugin.Dispatch(ctx, user, "!mbc", "User"))
	assert.Equal(t, []string{"^7You do not have sufficient access to use !metabanscheck"}, user.Messages())
	assert.Zero(t, h.mb.Calls())

	err := h.plugin.Dispatch(ctx, user, "metabansnuke", "")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestCheckCommand(t *testing.T) {
	admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
	joe := &fakeClient{guid: "guid-joe", name: "Joe", level: 1}
	h := newHarness(t, testConfig(), admin, joe)

	expires := time.Date(2030, time.March, 1, 12, 0, 0, 0, time.Local)
	h.mb.respond = func(map[string]string) map[string]any {
		return okStatus(map[string]any{
			"is_banned":           true,
			"is_blacklisted":      true,
			"inherited_blacklist": "Other Clan",
			"assessment_expires":  expires.Unix(),
			"reason":              "wallhack",
		})
	}

	require.NoError(t, h.plugin.Dispatch(context.Background(), admin, "metabanscheck", "joe"))

	reqs := h.mb.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "mbo_player_status", reqs[0]["action"])
	assert.Equal(t, "guid-joe", reqs[0]["player_uid"])

	assert.Equal(t, []string{
		"Joe Metabans status is : banned by Other Clan",
		"ban will expire on " + expires.Format(expiryLayout),
		"reason: wallhack",
	}, admin.Messages())
	assert.Equal(t, []string{"wallhack"}, joe.kicks)
}

func TestCheckCommandNoStatus(t *testing.T) {
	admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
	joe := &fakeClient{guid: "guid-joe", name: "Joe"}
	h := newHarness(t, testConfig(), admin, joe)

	require.NoError(t, h.plugin.Dispatch(context.Background(), admin, "mbc", "Joe"))
	assert.Equal(t, []string{"Joe has no particular status on Metabans"}, admin.Messages())
}

func TestCheckCommandEmptyAnswer(t *testing.T) {
	admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
	joe := &fakeClient{guid: "guid-joe", name: "Joe"}
	h := newHarness(t, testConfig(), admin, joe)
	h.mb.respond = func(map[string]string) map[string]any {
		return map[string]any{"status": "OK", "data": nil}
	}

	require.NoError(t, h.plugin.Dispatch(context.Background(), admin, "mbc", "Joe"))
	assert.Equal(t, []string{"no response from Metabans"}, admin.Messages())
	assert.Empty(t, joe.kicks)

	require.NoError(t, h.plugin.HandleEvent(context.Background(), Event{Type: EventAuth, Client: joe}))
	assert.Empty(t, joe.kicks)
	assert.Empty(t, h.console.big)
}

func TestCheckCommandErrors(t *testing.T) {
	tests := []struct {
		response map[string]any
		want     string
		name     string
	}{
		{name: "unknown player", response: errStatus(metabans.CodeUnknownPlayer, "unknown"), want: "Joe is unknown at Metabans.com"},
		{name: "other error", response: errStatus(3, "bad game"), want: "Metabans replied with error metabans error 3: bad game"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
			joe := &fakeClient{guid: "guid-joe", name: "Joe"}
			h := newHarness(t, testConfig(), admin, joe)
			h.mb.respond = func(map[string]string) map[string]any { return tt.response }

			err := h.plugin.Dispatch(context.Background(), admin, "mbc", "Joe")
			require.Error(t, err)
			assert.Equal(t, []string{tt.want}, admin.Messages())
			assert.True(t, h.plugin.Enabled())
		})
	}
}

func TestTargetLookup(t *testing.T) {
	admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
	h := newHarness(t, testConfig(), admin,
		&fakeClient{guid: "g1", name: "Joe"},
		&fakeClient{guid: "g2", name: "Joey"},
	)
	ctx := context.Background()

	require.NoError(t, h.plugin.Dispatch(ctx, admin, "mbc", ""))
	require.NoError(t, h.plugin.Dispatch(ctx, admin, "mbc", "nobody"))
	require.NoError(t, h.plugin.Dispatch(ctx, admin, "mbc", "joe"))

	assert.Equal(t, []string{
		"^7Invalid parameters",
		"^7No players found matching nobody",
		"^7Players matching joe: Joe, Joey",
	}, admin.Messages())
	assert.Zero(t, h.mb.Calls())
}

func TestWatchCommand(t *testing.T) {
	admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
	joe := &fakeClient{guid: "guid-joe", name: "Joe", level: 1}
	h := newHarness(t, testConfig(), admin, joe)
	h.mb.respond = func(map[string]string) map[string]any {
		return okStatus(map[string]any{"is_watched": true, "reason": "speed hack"})
	}

	require.NoError(t, h.plugin.Dispatch(context.Background(), admin, "mbw", "joe ^1speed^7 hack"))

	reqs := h.mb.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "watch", reqs[0]["assessment_type"])
	assert.Equal(t, "speed hack", reqs[0]["reason"])

	assert.Equal(t, []string{
		"Joe Metabans status is : watched",
		"reason: speed hack",
		"METABANS: Joe is under watch for : speed hack",
	}, admin.Messages())
}

func TestAssessCommandGuards(t *testing.T) {
	mod := &fakeClient{guid: "guid-mod", name: "Mod", level: 40}
	boss := &fakeClient{guid: "guid-boss", name: "Boss", level: 100}
	ghost := &fakeClient{guid: "guid-ghost", name: "Ghost", level: 100, masked: true}
	h := newHarness(t, testConfig(), mod, boss, ghost)
	ctx := context.Background()

	require.NoError(t, h.plugin.Dispatch(ctx, mod, "mbw", "boss"))
	require.NoError(t, h.plugin.Dispatch(ctx, mod, "mbw", "boss cheating"))
	require.NoError(t, h.plugin.Dispatch(ctx, mod, "mbp", "ghost trusted"))
	require.NoError(t, h.plugin.Dispatch(ctx, mod, "mbx", "boss mistake"))

	assert.Equal(t, []string{
		"^1ERROR: ^7You must supply a reason",
		"^7Boss ^7is a higher level player, can't do",
		"^7Ghost ^7is a masked higher level player, can't protect",
		"^7Boss ^7is a higher level player, can't clear",
	}, mod.Messages())
	assert.Zero(t, h.mb.Calls())
}

func TestNoReasonLevel(t *testing.T) {
	boss := &fakeClient{guid: "guid-boss", name: "Boss", level: 100}
	joe := &fakeClient{guid: "guid-joe", name: "Joe"}
	h := newHarness(t, testConfig(), boss, joe)

	require.NoError(t, h.plugin.Dispatch(context.Background(), boss, "mbp", "joe"))

	reqs := h.mb.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "white", reqs[0]["assessment_type"])
	_, hasReason := reqs[0]["reason"]
	assert.False(t, hasReason)
}

func TestUnknownPlayerIsSighted(t *testing.T) {
	admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
	joe := &fakeClient{guid: "guid-joe", name: "Joe", ip: "5.6.7.8"}
	h := newHarness(t, testConfig(), admin, joe)
	h.mb.respond = func(req map[string]string) map[string]any {
		if req["action"] == "mb_assess_player" {
			return errStatus(metabans.CodeUnknownPlayer, "unknown player")
		}
		return nil
	}
	ctx := context.Background()

	err := h.plugin.Dispatch(ctx, admin, "mbw", "joe griefing")
	require.Error(t, err)

	reqs := h.mb.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "mb_assess_player", reqs[0]["action"])
	assert.Equal(t, "mb_sight_player", reqs[1]["action"])
	assert.Equal(t, "5.6.7.8", reqs[1]["player_ip"])

	require.Error(t, h.plugin.Dispatch(ctx, admin, "mbx", "joe oops"))
	assert.Len(t, h.mb.Requests(), 3, "clear does not sight unknown players")

	assert.Equal(t, []string{
		"Joe was unknown at Metabans.com. try again",
		"Joe is unknown at Metabans.com",
	}, admin.Messages())
}

func TestSyncCommand(t *testing.T) {
	admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
	h := newHarness(t, testConfig(), admin)

	now := time.Now()
	h.store.clients[1] = &models.ClientRecord{ID: 1, GUID: "g1", Name: "One", IP: "1.1.1.1", PBID: "pb1"}
	h.store.clients[2] = &models.ClientRecord{ID: 2, GUID: "g2", Name: "Two"}
	h.store.bans = []models.Penalty{
		{ID: 10, Type: models.PenaltyBan, ClientID: 1, Reason: "^1cheat"},
		{ID: 11, Type: models.PenaltyTempBan, ClientID: 1, TimeExpire: now.Add(time.Hour)},
		{ID: 12, Type: models.PenaltyBan, ClientID: 2},
		{ID: 13, Type: models.PenaltyBan, ClientID: 3},
	}

	require.NoError(t, h.plugin.Dispatch(context.Background(), admin, "metabanssync", ""))

	assert.Equal(t, 1, h.mb.Calls())
	reqs := h.mb.Requests()
	require.Len(t, reqs, 5)

	assert.Equal(t, "mb_sight_player", reqs[0]["action"])
	assert.Equal(t, "g1", reqs[0]["player_uid"])
	assert.Equal(t, "pb1", reqs[0]["alternate_uid"])
	assert.Equal(t, "mb_sight_player", reqs[1]["action"])
	assert.Equal(t, "g2", reqs[1]["player_uid"])

	assert.Equal(t, "mb_assess_player", reqs[2]["action"])
	assert.Equal(t, "black", reqs[2]["assessment_type"])
	assert.Equal(t, "cheat", reqs[2]["reason"])
	assert.Empty(t, reqs[2]["assessment_length"])

	assert.Equal(t, "g1", reqs[3]["player_uid"])
	assert.NotEmpty(t, reqs[3]["assessment_length"])
	assert.Equal(t, "g2", reqs[4]["player_uid"])

	assert.Equal(t, []string{
		"will now send 4 bans to metabans.com",
		"3 bans sent",
		"all active bans sent to metabans.com",
	}, admin.Messages())
}

func TestSyncChunks(t *testing.T) {
	h := newHarness(t, testConfig())

	for i := int64(1); i <= 120; i++ {
		h.store.clients[i] = &models.ClientRecord{ID: i, GUID: fmt.Sprintf("g%d", i), Name: fmt.Sprintf("p%d", i)}
		h.store.bans = append(h.store.bans, models.Penalty{ID: i, Type: models.PenaltyBan, ClientID: i})
	}

	var progress []string
	require.NoError(t, h.plugin.Sync(context.Background(), func(msg string) { progress = append(progress, msg) }))

	assert.Equal(t, 3, h.mb.Calls())
	assert.Len(t, h.mb.Requests(), 240)
	assert.Equal(t, []string{
		"will now send 120 bans to metabans.com",
		"50 bans sent",
		"50 bans sent",
		"20 bans sent",
		"all active bans sent to metabans.com",
	}, progress)
}

func TestSyncNoBans(t *testing.T) {
	h := newHarness(t, testConfig())

	var progress []string
	require.NoError(t, h.plugin.Sync(context.Background(), func(msg string) { progress = append(progress, msg) }))

	assert.Equal(t, []string{"no active ban found"}, progress)
	assert.Zero(t, h.mb.Calls())
}

func TestSyncAuthFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.clients[1] = &models.ClientRecord{ID: 1, GUID: "g1"}
	h.store.bans = []models.Penalty{{Type: models.PenaltyBan, ClientID: 1}}
	h.mb.respond = func(map[string]string) map[string]any {
		return errStatus(metabans.CodeAuthentication, "bad key")
	}

	admin := &fakeClient{guid: "guid-admin", name: "Admin", level: 100}
	err := h.plugin.Dispatch(context.Background(), admin, "metabanssync", "")
	require.ErrorIs(t, err, metabans.ErrAuthentication)
	assert.False(t, h.plugin.Enabled())
	assert.Contains(t, admin.Messages(), "bad METABANS username or api_key. Disabling Metaban plugin")
}

func TestHasCommand(t *testing.T) {
	h := newHarness(t, testConfig())

	assert.True(t, h.plugin.HasCommand("metabanssync"))
	assert.True(t, h.plugin.HasCommand("!MBW"))
	assert.False(t, h.plugin.HasCommand("mbz"))
}

func TestLongRunning(t *testing.T) {
	h := newHarness(t, testConfig())

	assert.True(t, h.plugin.LongRunning("metabanssync"))
	assert.True(t, h.plugin.LongRunning("!MetabansSync"))
	assert.False(t, h.plugin.LongRunning("mbc"))
	assert.False(t, h.plugin.LongRunning("nothing"))
}
