// Package models defines the data structures shared by the bridge API and the penalty database.
package models

import "time"

// Penalty types stored by the admin bot.
const (
	PenaltyBan     = "Ban"
	PenaltyTempBan = "TempBan"
	PenaltyKick    = "Kick"
	PenaltyWarning = "Warning"
	PenaltyNotice  = "Notice"
)

// Penalty is a row of the admin bot penalties table.
type Penalty struct {
	TimeAdd    time.Time `json:"time_add"`
	TimeEdit   time.Time `json:"time_edit"`
	TimeExpire time.Time `json:"time_expire"` // zero when permanent
	Type       string    `json:"type"`
	Keyword    string    `json:"keyword"`
	Reason     string    `json:"reason"`
	Data       string    `json:"data"`
	ID         int64     `json:"id"`
	ClientID   int64     `json:"client_id"`
	AdminID    int64     `json:"admin_id"`
	Duration   int64     `json:"duration"` // minutes
	Inactive   bool      `json:"inactive"`
}

// Permanent reports whether the penalty never expires.
func (p Penalty) Permanent() bool {
	return p.TimeExpire.IsZero()
}

// Remaining returns how long the penalty still runs at now.
// It is zero for permanent or expired penalties.
func (p Penalty) Remaining(now time.Time) time.Duration {
	if p.Permanent() || !p.TimeExpire.After(now) {
		return 0
	}

	return p.TimeExpire.Sub(now).Truncate(time.Second)
}

// ClientRecord is a row of the admin bot clients table.
type ClientRecord struct {
	TimeAdd   time.Time `json:"time_add"`
	LastVisit time.Time `json:"last_visit"`
	GUID      string    `json:"guid"`
	PBID      string    `json:"pbid"`
	Name      string    `json:"name"`
	IP        string    `json:"ip"`
	ID        int64     `json:"id"`
}

// ClientInfo is a connected player as reported by the bot.
type ClientInfo struct {
	CID    string `json:"cid"`
	GUID   string `json:"guid"`
	Name   string `json:"name"`
	IP     string `json:"ip,omitempty"`
	PBID   string `json:"pbid,omitempty"`
	Level  int    `json:"level"`
	Masked bool   `json:"masked,omitempty"`
}

// EventRequest is the payload the bot posts for every moderation event.
type EventRequest struct {
	Data   EventData  `json:"data"`
	Type   string     `json:"type"`
	Client ClientInfo `json:"client"`
}

// CommandRequest is an admin command typed in game and forwarded by the bot.
type CommandRequest struct {
	Command string     `json:"command"`
	Args    string     `json:"args"`
	Admin   ClientInfo `json:"admin"`
}
