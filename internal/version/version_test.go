package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfoShortensCommit(t *testing.T) {
	oldVersion, oldCommit := Version, CommitHash
	t.Cleanup(func() { Version, CommitHash = oldVersion, oldCommit })

	Version = "1.4.0"
	CommitHash = "0123456789abcdef"
	assert.Equal(t, "1.4.0 (0123456)", GetInfo())

	info := Get()
	assert.Equal(t, "1.4.0", info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Equal(t, "wadesk/1.4.0", UserAgent())
}
