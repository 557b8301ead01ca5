package metabans

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Action is the name of a Metabans API call.
type Action string

// Metabans API actions.
const (
	ActionPlayerStatus        Action = "mbo_player_status"
	ActionAccountAvailability Action = "mbo_availability_account_name"
	ActionSightPlayer         Action = "mb_sight_player"
	ActionAssessPlayer        Action = "mb_assess_player"
)

// maxAssessmentReasonLength is the longest reason Metabans stores.
const maxAssessmentReasonLength = 200

// AssessmentType is the mark put on a player by mb_assess_player.
type AssessmentType string

// Assessment types accepted by Metabans.
const (
	AssessNone  AssessmentType = "none"
	AssessWatch AssessmentType = "watch"
	AssessWhite AssessmentType = "white"
	AssessBlack AssessmentType = "black"
)

// Player identifies a player on a game server.
type Player struct {
	UID          string
	Name         string
	IP           string
	AlternateUID string
}

// Query is one logical Metabans request. Zero-valued optional fields are not sent.
type Query struct {
	Action         Action
	GameName       string
	GroupName      string
	AccountName    string
	PlayerUID      string
	PlayerName     string
	PlayerIP       string
	AlternateUID   string
	AssessmentType AssessmentType
	Reason         string

	// AssessmentLength is sent in whole seconds and only when positive.
	AssessmentLength time.Duration
}

// StatusQuery builds a mbo_player_status query.
func StatusQuery(gameName, playerUID string) Query {
	return Query{Action: ActionPlayerStatus, GameName: gameName, PlayerUID: playerUID}
}

// AccountQuery builds a mbo_availability_account_name query.
func AccountQuery(accountName string) Query {
	return Query{Action: ActionAccountAvailability, AccountName: accountName}
}

// SightQuery builds a mb_sight_player query.
func SightQuery(gameName, groupName string, p Player) Query {
	return Query{
		Action:       ActionSightPlayer,
		GameName:     gameName,
		GroupName:    groupName,
		PlayerUID:    p.UID,
		PlayerName:   p.Name,
		PlayerIP:     p.IP,
		AlternateUID: p.AlternateUID,
	}
}

// AssessQuery builds a mb_assess_player query. Reasons longer than the
// service limit are cut.
func AssessQuery(gameName, playerUID string, t AssessmentType, length time.Duration, reason string) Query {
	if r := []rune(reason); len(r) > maxAssessmentReasonLength {
		reason = string(r[:maxAssessmentReasonLength])
	}

	return Query{
		Action:           ActionAssessPlayer,
		GameName:         gameName,
		PlayerUID:        playerUID,
		AssessmentType:   t,
		AssessmentLength: length,
		Reason:           reason,
	}
}

// fields returns the wire fields of q in a stable order.
func (q Query) fields() [][2]string {
	out := [][2]string{{"action", string(q.Action)}}
	add := func(name, value string) {
		if value != "" {
			out = append(out, [2]string{name, value})
		}
	}

	add("game_name", q.GameName)
	add("group_name", q.GroupName)
	add("account_name", q.AccountName)
	add("player_uid", q.PlayerUID)
	add("player_name", q.PlayerName)
	add("player_ip", q.PlayerIP)
	add("alternate_uid", q.AlternateUID)
	add("assessment_type", string(q.AssessmentType))

	if secs := int64(q.AssessmentLength / time.Second); secs > 0 {
		add("assessment_length", strconv.FormatInt(secs, 10))
	}
	add("reason", q.Reason)

	return out
}

// Encode flattens queries into the indexed requests[i][field] parameter
// scheme. Index i is the position of the query in the slice.
func Encode(queries []Query) url.Values {
	params := make(url.Values, len(queries)*4)
	for i, q := range queries {
		for _, f := range q.fields() {
			params.Set(fmt.Sprintf("requests[%d][%s]", i, f[0]), f[1])
		}
	}

	return params
}
