package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	// Given: a test binary, built without ldflags

	// When: reading the resolved version
	v := Short()

	// Then: it is "dev" or a semver tag
	require.NotEmpty(t, v)
	if v == "dev" {
		return
	}
	semverRegex := regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	assert.True(t, semverRegex.MatchString(v), "got %s", v)
}

func TestString_ReturnsFormattedString(t *testing.T) {
	str := String()

	assert.True(t, strings.HasPrefix(str, "codegrip "+Short()))
	assert.Contains(t, str, "commit")
	assert.Contains(t, str, runtime.Version())
}

func TestGetInfo_PrefersLdflags(t *testing.T) {
	// Given: values injected as ldflags would
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldVersion, oldCommit, oldDate })
	Version, Commit, Date = "1.4.0", "abc1234", "2026-01-02T03:04:05Z"

	// When: reading the info
	info := GetInfo()

	// Then: they are used verbatim
	assert.Equal(t, "1.4.0", info.Version)
	assert.Equal(t, "abc1234", info.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.Date)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.Equal(t, "1.4.0", Short())
}

func TestGetInfo_IsJSONSerializable(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(data, &parsed))
	for _, key := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, parsed, key)
	}
}
