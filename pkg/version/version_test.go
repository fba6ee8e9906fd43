package version_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macropower/rulebook/pkg/version"
)

func TestGet(t *testing.T) {
	t.Parallel()

	info := version.Get()
	assert.Equal(t, version.GetVersion(), info.Version)
	assert.NotEmpty(t, info.Revision)
	assert.Contains(t, info.Platform, "/")

	out := info.String()
	assert.True(t, strings.HasPrefix(out, "rulebook "+info.Version+"\n"))
	assert.Contains(t, out, info.GoVersion)
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "rulebook/"+version.GetVersion(), version.UserAgent())
}
