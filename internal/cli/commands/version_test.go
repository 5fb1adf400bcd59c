package commands

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	info := BuildInfo{Version: "1.2.3", BuildDate: "2026-01-02", GitCommit: "abc123"}

	tests := []struct {
		name    string
		args    []string
		wantOut []string
		exact   string
	}{
		{
			name:    "full",
			wantOut: []string{"leapseed v1.2.3", "commit: abc123", "built:  2026-01-02", runtime.Version()},
		},
		{
			name:  "short",
			args:  []string{"--short"},
			exact: "1.2.3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			if tt.exact != "" {
				assert.Equal(t, tt.exact, buf.String())
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand(BuildInfo{Version: "test"})
	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.Flags().Lookup("short"))
}
