// Package game maps admin bot game identifiers to Metabans game names and
// cleans in-game text before it leaves the server.
package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedGame is returned for a game Metabans has no name for.
var ErrUnsupportedGame = errors.New("unsupported game")

// metabansNames is the closed set of games the relay can report for.
var metabansNames = map[string]string{
	"bfbc2":     "BF_BC2",
	"moh":       "MOH_2010",
	"cod4":      "COD_4",
	"cod5":      "COD_5",
	"cod6":      "COD_6",
	"cod7":      "COD_7",
	"homefront": "HOMEFRONT",
}

// MetabansName returns the Metabans game identifier for a bot game name.
func MetabansName(botGame string) (string, error) {
	name, ok := metabansNames[botGame]
	if !ok {
		return "", fmt.Errorf("%w %q, expected one of: %s", ErrUnsupportedGame, botGame, strings.Join(Supported(), ", "))
	}

	return name, nil
}

// Supported lists the bot game names in lexical order.
func Supported() []string {
	games := make([]string, 0, len(metabansNames))
	for g := range metabansNames {
		games = append(games, g)
	}
	sort.Strings(games)

	return games
}
