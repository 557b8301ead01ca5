package vars

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitShort(t *testing.T) {
	prev := Commit
	t.Cleanup(func() { Commit = prev })

	Commit = "da15c174cd2ada1ad247906536c101e8f6799def"
	assert.Equal(t, "da15c17", CommitShort())
	assert.Equal(t, "da15c17", Info().CommitShort)

	Commit = "abc"
	assert.Equal(t, "abc", CommitShort())
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, Name+"/"+Version+" (+"+URL+")", UserAgent())
}

func TestInfoGoVersion(t *testing.T) {
	info := Info()
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, "mbrelay", info.Name)
}

func TestModuleVersionFallback(t *testing.T) {
	v := moduleVersion("dev")
	assert.True(t, v == "dev" || strings.HasPrefix(v, "v"), v)
	assert.NotEqual(t, "(devel)", v)
}
