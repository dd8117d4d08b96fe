package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr string
	}{
		{name: "blank", line: "", want: nil},
		{name: "plain words", line: "ffmpeg -f v4l2 -i /dev/video0", want: []string{"ffmpeg", "-f", "v4l2", "-i", "/dev/video0"}},
		{name: "double quoted argument", line: `capture --label "pothole report"`, want: []string{"capture", "--label", "pothole report"}},
		{name: "single quoted argument", line: `capture --label 'pothole report'`, want: []string{"capture", "--label", "pothole report"}},
		{name: "escaped space", line: `capture road\ photo`, want: []string{"capture", "road photo"}},
		{name: "commented out", line: `# ffmpeg -f v4l2`, want: nil},
		{name: "dangling quote", line: `capture "oops`, wantErr: "unterminated quote"},
		{name: "dangling escape", line: `capture oops\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := splitCommand(tc.line)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMustSplitCommandPanicsOnInvalidDefault(t *testing.T) {
	require.Panics(t, func() {
		_ = mustSplitCommand(`capture "unterminated`)
	})
}
