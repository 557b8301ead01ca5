package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/woozymasta/mbrelay/internal/game"
	"github.com/woozymasta/mbrelay/internal/metabans"
)

type commandFunc func(ctx context.Context, admin Client, args string) error

type command struct {
	run   commandFunc
	name  string
	alias string
	level int
}

// DefaultCommands are the command levels used when none are configured.
var DefaultCommands = map[string]int{
	"metabanssync":        100,
	"metabanscheck-mbc":   20,
	"metabanswatch-mbw":   20,
	"metabansprotect-mbp": 20,
	"metabansclear-mbx":   20,
}

// buildCommands resolves "name[-alias]" entries against the known handlers.
func (p *Plugin) buildCommands(levels map[string]int) (map[string]*command, error) {
	if len(levels) == 0 {
		levels = DefaultCommands
	}

	handlers := map[string]commandFunc{
		"metabanscheck":   p.cmdCheck,
		"metabanswatch":   p.cmdWatch,
		"metabansprotect": p.cmdProtect,
		"metabansclear":   p.cmdClear,
		"metabanssync":    p.cmdSync,
	}

	table := make(map[string]*command, len(levels)*2)
	for spec, level := range levels {
		if level < 0 {
			return nil, fmt.Errorf("%w: %s:%d", ErrInvalidLevel, spec, level)
		}

		name, alias, _ := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), "-")
		run, ok := handlers[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
		}

		cmd := &command{name: name, alias: alias, level: level, run: run}
		for _, key := range []string{name, alias} {
			if key == "" {
				continue
			}
			if _, dup := table[key]; dup {
				return nil, fmt.Errorf("%w: %q", ErrCommandConflict, key)
			}
			table[key] = cmd
		}
	}

	return table, nil
}

// Commands returns the registered command names with their aliases, sorted.
func (p *Plugin) Commands() []string {
	seen := make(map[string]struct{}, len(p.commands))
	out := make([]string, 0, len(p.commands))
	for _, cmd := range p.commands {
		if _, ok := seen[cmd.name]; ok {
			continue
		}
		seen[cmd.name] = struct{}{}
		if cmd.alias != "" {
			out = append(out, cmd.name+"-"+cmd.alias)
		} else {
			out = append(out, cmd.name)
		}
	}
	sort.Strings(out)

	return out
}

// HasCommand reports whether name or alias is registered.
func (p *Plugin) HasCommand(name string) bool {
	_, ok := p.commands[normalizeCommand(name)]
	return ok
}

// LongRunning reports whether the command behind name makes many Metabans
// calls in a row, so it must not share the deadline of a single event.
func (p *Plugin) LongRunning(name string) bool {
	cmd, ok := p.commands[normalizeCommand(name)]
	return ok && cmd.name == "metabanssync"
}

func normalizeCommand(name string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(name), "!@"))
}

// Dispatch runs an admin command typed in game. name may carry the bot
// command prefix. Unknown commands return ErrUnknownCommand; every other
// outcome is reported to the admin in game.
func (p *Plugin) Dispatch(ctx context.Context, admin Client, name, args string) error {
	name = normalizeCommand(name)
	cmd, ok := p.commands[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	if admin.Level() < cmd.level {
		p.tellf(ctx, admin, "^7You do not have sufficient access to use !%s", cmd.name)
		return nil
	}

	if !p.Enabled() {
		p.tell(ctx, admin, "Metabans plugin is disabled")
		return ErrDisabled
	}

	p.log.Debug().
		Str("admin", admin.Name()).
		Str("command", cmd.name).
		Str("args", args).
		Msg("Running command")

	return cmd.run(ctx, admin, strings.TrimSpace(args))
}

// parseArgs splits "<player> [<reason>]".
func parseArgs(args string) (target, reason string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", "", false
	}

	target = fields[0]
	reason = strings.TrimSpace(strings.TrimPrefix(args, target))

	return target, game.StripColors(reason), true
}

// findTarget resolves a player for admin, listing candidates when the query is ambiguous.
func (p *Plugin) findTarget(ctx context.Context, admin Client, query string) (Client, bool) {
	matches := p.console.FindClient(query)
	switch len(matches) {
	case 0:
		p.tellf(ctx, admin, "^7No players found matching %s", query)
		return nil, false
	case 1:
		return matches[0], true
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name())
	}
	p.tellf(ctx, admin, "^7Players matching %s: %s", query, strings.Join(names, ", "))

	return nil, false
}

// reportError tells admin about a failed Metabans call.
// unknown is sent instead of the error text for unknown players.
func (p *Plugin) reportError(ctx context.Context, admin Client, err error, unknown string) {
	if errors.Is(err, metabans.ErrAuthentication) {
		p.logError(p.log, err)
		p.tell(ctx, admin, "bad METABANS username or api_key. Disabling Metaban plugin")
		return
	}

	if code, ok := metabans.ErrorCode(err); ok && code == metabans.CodeUnknownPlayer && unknown != "" {
		p.tell(ctx, admin, unknown)
		return
	}

	p.logError(p.log, err)
	p.tellf(ctx, admin, "Metabans replied with error %s", err)
}

func (p *Plugin) cmdCheck(ctx context.Context, admin Client, args string) error {
	query, _, ok := parseArgs(args)
	if !ok {
		p.tell(ctx, admin, "^7Invalid parameters")
		return nil
	}

	target, ok := p.findTarget(ctx, admin, query)
	if !ok {
		return nil
	}

	p.log.Debug().Str("player", target.Name()).Str("guid", target.GUID()).Msg("Checking player")

	status, err := p.mb.PlayerStatus(ctx, p.gameName, target.GUID())
	if err != nil {
		p.reportError(ctx, admin, err, fmt.Sprintf("%s is unknown at Metabans.com", target.Name()))
		return err
	}

	p.tellStatus(ctx, admin, target, status)

	return nil
}

func (p *Plugin) cmdWatch(ctx context.Context, admin Client, args string) error {
	return p.assessCommand(ctx, admin, args, metabans.AssessWatch, "watch")
}

func (p *Plugin) cmdProtect(ctx context.Context, admin Client, args string) error {
	return p.assessCommand(ctx, admin, args, metabans.AssessWhite, "protect")
}

func (p *Plugin) cmdClear(ctx context.Context, admin Client, args string) error {
	return p.assessCommand(ctx, admin, args, metabans.AssessNone, "clear")
}

func (p *Plugin) assessCommand(
	ctx context.Context,
	admin Client,
	args string,
	t metabans.AssessmentType,
	verb string,
) error {
	query, reason, ok := parseArgs(args)
	if !ok {
		p.tell(ctx, admin, "^7Invalid parameters")
		return nil
	}

	if reason == "" && admin.Level() < p.cfg.NoReasonLevel {
		p.tell(ctx, admin, "^1ERROR: ^7You must supply a reason")
		return nil
	}

	target, ok := p.findTarget(ctx, admin, query)
	if !ok {
		return nil
	}

	if target.Level() > admin.Level() {
		switch {
		case target.Masked():
			p.tellf(ctx, admin, "^7%s ^7is a masked higher level player, can't %s", target.Name(), verb)
		case t == metabans.AssessNone:
			p.tellf(ctx, admin, "^7%s ^7is a higher level player, can't clear", target.Name())
		default:
			p.tellf(ctx, admin, "^7%s ^7is a higher level player, can't do", target.Name())
		}
		return nil
	}

	p.log.Info().
		Str("admin", admin.Name()).
		Str("player", target.Name()).
		Str("assessment", string(t)).
		Msg("Assessing player on Metabans")

	status, err := p.assess(ctx, target, t, 0, reason)
	if err == nil {
		p.tellStatus(ctx, admin, target, status)
		return nil
	}

	unknown := fmt.Sprintf("%s is unknown at Metabans.com", target.Name())
	if code, ok := metabans.ErrorCode(err); ok && code == metabans.CodeUnknownPlayer && t != metabans.AssessNone {
		if _, serr := p.sight(ctx, target); serr != nil {
			p.log.Warn().Err(serr).Str("player", target.Name()).Msg("Failed to sight unknown player")
		}
		unknown = fmt.Sprintf("%s was unknown at Metabans.com. try again", target.Name())
	}
	p.reportError(ctx, admin, err, unknown)

	return err
}

func (p *Plugin) cmdSync(ctx context.Context, admin Client, _ string) error {
	err := p.Sync(ctx, func(msg string) { p.tell(ctx, admin, msg) })
	if err != nil {
		p.reportError(ctx, admin, err, "")
	}

	return err
}
