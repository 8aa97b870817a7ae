package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name     string
		version  string
		wantLine string
	}{
		{name: "release", version: "0.1.0", wantLine: "tmlineage v0.1.0"},
		{name: "prerelease", version: "1.2.3-rc.1", wantLine: "tmlineage v1.2.3-rc.1"},
		{name: "dev build", version: "dev", wantLine: "tmlineage vdev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetArgs([]string{})

			require.NoError(t, cmd.Execute())

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, 2)
			assert.Equal(t, tt.wantLine, lines[0])
			assert.Contains(t, lines[1], "TrackMate")
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test")

	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.False(t, cmd.HasAvailableFlags(), "version takes no flags")
}
