// Package bot implements the plugin collaborators on top of the bridge:
// a roster of connected players reported by the admin bot, and game
// server actions issued over RCON.
package bot

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Executor runs a raw console command on the game server.
type Executor interface {
	Exec(ctx context.Context, command string) (string, error)
}

// Templates are RCON command lines. {cid}, {name}, {guid}, {message},
// {reason}, {minutes} and {seconds} are substituted.
type Templates struct {
	Say     string
	SayBig  string
	Tell    string
	Kick    string
	TempBan string
}

// DefaultTemplates are used for every template left empty.
var DefaultTemplates = Templates{
	Say:     `say "{message}"`,
	SayBig:  `bigtext "{message}"`,
	Tell:    `tell {cid} "{message}"`,
	Kick:    `kick {cid} "{reason}"`,
	TempBan: `tempban {cid} {minutes} "{reason}"`,
}

// Console issues game server actions through RCON.
type Console struct {
	exec Executor
	log  zerolog.Logger
	tpl  Templates
}

// NewConsole returns a console running tpl through exec.
func NewConsole(exec Executor, tpl Templates, logger zerolog.Logger) *Console {
	tpl.Say = orDefault(tpl.Say, DefaultTemplates.Say)
	tpl.SayBig = orDefault(tpl.SayBig, DefaultTemplates.SayBig)
	tpl.Tell = orDefault(tpl.Tell, DefaultTemplates.Tell)
	tpl.Kick = orDefault(tpl.Kick, DefaultTemplates.Kick)
	tpl.TempBan = orDefault(tpl.TempBan, DefaultTemplates.TempBan)

	return &Console{exec: exec, tpl: tpl, log: logger}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}

	return s
}

// Say broadcasts msg in chat.
func (c *Console) Say(ctx context.Context, msg string) error {
	return c.run(ctx, c.tpl.Say, vars{message: msg})
}

// SayBig broadcasts msg in the most noticeable way the game offers.
func (c *Console) SayBig(ctx context.Context, msg string) error {
	return c.run(ctx, c.tpl.SayBig, vars{message: msg})
}

func (c *Console) tell(ctx context.Context, p *Player, msg string) error {
	return c.run(ctx, c.tpl.Tell, p.fill(vars{message: msg}))
}

func (c *Console) kick(ctx context.Context, p *Player, reason string) error {
	return c.run(ctx, c.tpl.Kick, p.fill(vars{reason: reason}))
}

func (c *Console) tempBan(ctx context.Context, p *Player, reason string, d time.Duration) error {
	return c.run(ctx, c.tpl.TempBan, p.fill(vars{reason: reason, duration: d}))
}

type vars struct {
	cid, name, guid string
	message, reason string
	duration        time.Duration
}

func (v vars) render(tpl string) string {
	minutes := int64(math.Ceil(v.duration.Minutes()))

	return strings.NewReplacer(
		"{cid}", v.cid,
		"{name}", quote(v.name),
		"{guid}", v.guid,
		"{message}", quote(v.message),
		"{reason}", quote(v.reason),
		"{minutes}", strconv.FormatInt(minutes, 10),
		"{seconds}", strconv.FormatInt(int64(v.duration.Seconds()), 10),
	).Replace(tpl)
}

// quote keeps a value inside a double quoted RCON argument.
func quote(s string) string {
	return strings.ReplaceAll(s, `"`, `'`)
}

func (c *Console) run(ctx context.Context, tpl string, v vars) error {
	cmd := v.render(tpl)

	out, err := c.exec.Exec(ctx, cmd)
	if err != nil {
		c.log.Error().Err(err).Str("command", cmd).Msg("RCON command failed")
		return err
	}

	c.log.Trace().Str("command", cmd).Str("response", out).Msg("RCON command sent")

	return nil
}
