package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetabansName(t *testing.T) {
	want := map[string]string{
		"bfbc2":     "BF_BC2",
		"moh":       "MOH_2010",
		"cod4":      "COD_4",
		"cod5":      "COD_5",
		"cod6":      "COD_6",
		"cod7":      "COD_7",
		"homefront": "HOMEFRONT",
	}

	for botGame, mb := range want {
		got, err := MetabansName(botGame)
		require.NoError(t, err, botGame)
		assert.Equal(t, mb, got)
	}
	assert.Len(t, Supported(), len(want))
}

func TestMetabansNameUnsupported(t *testing.T) {
	for _, g := range []string{"", "bf3", "BFBC2", "cod", "urt", "cod4 "} {
		_, err := MetabansName(g)
		assert.ErrorIs(t, err, ErrUnsupportedGame, g)
	}

	_, err := MetabansName("bf3")
	require.Error(t, err)
	assert.Equal(t, `unsupported game "bf3", expected one of: bfbc2, cod4, cod5, cod6, cod7, homefront, moh`, err.Error())
}

func TestStripColors(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "^1red ^7white", want: "red white"},
		{in: "  ^3cheater  ", want: "cheater"},
		{in: "no colors", want: "no colors"},
		{in: "  padded  ", want: "padded"},
		{in: "^^11", want: ""},
		{in: "^a ^ x", want: "^a ^ x"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StripColors(tt.in), tt.in)
	}
}

func TestStripColorsRemovesEveryPair(t *testing.T) {
	for n := 0; n < 6; n++ {
		in := strings.Repeat("a^5", n) + "b"
		assert.Equal(t, strings.Repeat("a", n)+"b", StripColors(in))
	}
}

func TestStripColorsIdempotent(t *testing.T) {
	for _, in := range []string{"^1^2x", " ^^11 ok ", "^9", "plain", "^^^123"} {
		once := StripColors(in)
		assert.Equal(t, once, StripColors(once), in)
	}
}
