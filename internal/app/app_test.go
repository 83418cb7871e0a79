package app

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gowvp/moodline/internal/conf"
	"github.com/stretchr/testify/require"
)

func TestSetupLogWritesStdoutAndFile(t *testing.T) {
	bc := conf.DefaultConfig()
	bc.Log.Dir = t.TempDir()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	prev := slog.Default()
	defer slog.SetDefault(prev)

	log, clean, err := SetupLog(&bc)
	require.NoError(t, err)
	log.Info("analysis finished", "filename", "clip.mp4")
	clean()

	os.Stdout = stdout
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Contains(t, string(out), `"filename":"clip.mp4"`)

	files, err := filepath.Glob(filepath.Join(bc.Log.Dir, "moodline_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	b, err := os.ReadFile(files[0])
	require.NoError(t, err)
	require.Contains(t, string(b), `"filename":"clip.mp4"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warn"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}
