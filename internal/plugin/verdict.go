package plugin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/woozymasta/mbrelay/internal/metabans"
)

const expiryLayout = "Monday, 02. January 2006 03:04PM -0700"

// onStatus applies a Metabans verdict to a connected player.
func (p *Plugin) onStatus(ctx context.Context, c Client, status *metabans.PlayerStatus) {
	if status == nil {
		p.log.Warn().Str("player", c.Name()).Msg("No response from Metabans")
		return
	}

	switch {
	case status.IsBanned:
		p.onBanned(ctx, c, status)
	case status.IsWhitelisted:
		p.notifyAdmins(ctx, c, fmt.Sprintf("METABANS: %s is protected", p.describe(c)))
	case status.IsWatched:
		p.notifyAdmins(ctx, c, fmt.Sprintf("METABANS: %s is under watch for : %s", p.describe(c), status.Reason))
	}
}

func (p *Plugin) onBanned(ctx context.Context, c Client, status *metabans.PlayerStatus) {
	reason := string(status.Reason)
	log := p.log.With().Str("player", c.Name()).Str("guid", c.GUID()).Logger()

	var err error
	if expires, ok := status.Expires(); ok && p.cfg.TempBanBanned && time.Until(expires) > time.Second {
		log.Info().Time("expires", expires).Msg("Player banned on Metabans, tempbanning")
		err = c.TempBan(ctx, reason, time.Until(expires).Truncate(time.Second))
	} else {
		log.Info().Str("inherited", string(status.InheritedBlacklist)).Msg("Player banned on Metabans, kicking")
		err = c.Kick(ctx, reason)
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to remove banned player")
	}

	msg := p.banMessage(c, reason)
	if msg == "" {
		return
	}

	switch p.cfg.MessageType {
	case MessageNormal:
		err = p.console.Say(ctx, msg)
	case MessageBig:
		err = p.console.SayBig(ctx, msg)
	default:
		log.Info().Msg(msg)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Failed to broadcast ban message")
	}
}

func (p *Plugin) banMessage(c Client, reason string) string {
	if p.cfg.BanMessage == "" {
		return ""
	}

	return strings.NewReplacer(
		"$clientname", c.Name(),
		"$clientguid", c.GUID(),
		"$reason", reason,
	).Replace(p.cfg.BanMessage)
}

// notifyAdmins messages every connected admin except the player the notice is about.
func (p *Plugin) notifyAdmins(ctx context.Context, subject Client, msg string) {
	for _, c := range p.console.Clients() {
		if c.Level() < p.cfg.AdminsLevel {
			continue
		}
		if c.GUID() == subject.GUID() {
			p.log.Info().Str("player", c.Name()).Str("msg", msg).Msg("Not telling admin about themselves")
			continue
		}
		p.tell(ctx, c, msg)
	}
}

// describe renders a player name, with the country when it is known.
func (p *Plugin) describe(c Client) string {
	if p.geo == nil || c.IP() == "" {
		return c.Name()
	}
	if cc := p.geo.GetCountryCode(c.IP()); cc != "" {
		return c.Name() + " (" + cc + ")"
	}

	return c.Name()
}

// tellStatus reports a verdict to an admin, then applies it to the target.
func (p *Plugin) tellStatus(ctx context.Context, admin, target Client, status *metabans.PlayerStatus) {
	if status == nil {
		p.tell(ctx, admin, "no response from Metabans")
		return
	}

	name := target.Name()
	switch {
	case status.IsBlacklisted:
		if status.InheritedBlacklist != "" {
			p.tellf(ctx, admin, "%s Metabans status is : banned by %s", name, status.InheritedBlacklist)
		} else {
			p.tellf(ctx, admin, "%s Metabans status is : banned", name)
		}
		if expires, ok := status.Expires(); ok {
			p.tellf(ctx, admin, "ban will expire on %s", expires.Format(expiryLayout))
		}
	case status.IsWhitelisted:
		p.tellf(ctx, admin, "%s Metabans status is : protected", name)
	case status.IsWatched:
		p.tellf(ctx, admin, "%s Metabans status is : watched", name)
	default:
		p.tellf(ctx, admin, "%s has no particular status on Metabans", name)
		p.onStatus(ctx, target, status)
		return
	}

	if status.Reason != "" {
		p.tellf(ctx, admin, "reason: %s", status.Reason)
	}

	p.onStatus(ctx, target, status)
}

func (p *Plugin) tell(ctx context.Context, c Client, msg string) {
	if err := c.Message(ctx, msg); err != nil {
		p.log.Warn().Err(err).Str("player", c.Name()).Msg("Failed to message player")
	}
}

func (p *Plugin) tellf(ctx context.Context, c Client, format string, args ...any) {
	p.tell(ctx, c, fmt.Sprintf(format, args...))
}
