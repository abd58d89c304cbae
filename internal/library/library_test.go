package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpisodePath(t *testing.T) {
	l := New("/srv/tv", ".mp4")

	assert.Equal(t, "/srv/tv/Severance", l.ShowDir("Severance"))
	assert.Equal(t, "/srv/tv/Severance/Season 2", l.SeasonDir("Severance", 2))
	assert.Equal(t, "/srv/tv/Severance/Season 2/Severance - S02E07.mp4", l.EpisodePath("Severance", 2, 7))
	assert.Equal(t, "/srv/tv/Show/Season 12/Show - S12E103.mkv", New("/srv/tv", "mkv").EpisodePath("Show", 12, 103))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Severance", "Severance"},
		{"  Love/Death + Robots ", "Love-Death + Robots"},
		{"What If...?", "What If"},
		{"Star Trek: Picard", "Star Trek - Picard"},
		{"..", "Unknown"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}
}

func TestEnsureSeasonDirAndExists(t *testing.T) {
	l := New(t.TempDir(), "mp4")

	dir, err := l.EnsureSeasonDir("Show", 1)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	path := l.EpisodePath("Show", 1, 1)
	assert.False(t, Exists(path))

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.False(t, Exists(path), "empty files are leftovers")

	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	assert.True(t, Exists(path))
	assert.False(t, Exists(filepath.Dir(path)))
}
