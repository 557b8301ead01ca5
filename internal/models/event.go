package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EventData is the free-form payload of a bot event: either a plain
// string or an object with text, reason, keyword and duration in minutes.
type EventData struct {
	// Duration is nil when the bot did not report one.
	Duration *float64 `json:"duration,omitempty"`
	Text     string   `json:"text,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Keyword  string   `json:"keyword,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *EventData) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*d = EventData{}
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = EventData{Text: s}
		return nil
	}

	var raw struct {
		Text     string          `json:"text"`
		Reason   string          `json:"reason"`
		Keyword  string          `json:"keyword"`
		Duration json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*d = EventData{Text: raw.Text, Reason: raw.Reason, Keyword: raw.Keyword}
	if len(raw.Duration) == 0 || bytes.Equal(raw.Duration, []byte("null")) {
		return nil
	}

	s := strings.Trim(string(raw.Duration), `"`)
	minutes, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s: %w", raw.Duration, err)
	}
	d.Duration = &minutes

	return nil
}

// ReasonText renders the reason the way the bot displays it:
// the plain text, or "#keyword reason" for structured data.
func (d EventData) ReasonText() string {
	if d.Text != "" {
		return d.Text
	}
	if d.Keyword != "" {
		return "#" + d.Keyword + " " + d.Reason
	}

	return d.Reason
}
