package game

import (
	"regexp"
	"strings"
)

// colorCode matches Quake-style color markup: a caret and one digit.
var colorCode = regexp.MustCompile(`\^[0-9]`)

// StripColors removes color codes from text and trims surrounding whitespace.
// Removal repeats until nothing matches, so "^^11" is fully cleaned and
// StripColors(StripColors(s)) == StripColors(s).
func StripColors(text string) string {
	for {
		cleaned := colorCode.ReplaceAllString(text, "")
		if cleaned == text {
			break
		}
		text = cleaned
	}

	return strings.TrimSpace(text)
}
