package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gowvp/moodline/internal/core/emotion"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, threshold float64) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewStore(
		filepath.Join(root, "uploads"),
		filepath.Join(root, "frames"),
		filepath.Join(root, "graphs"),
		threshold,
	)
	require.NoError(t, err)
	return s, root
}

func TestNewStoreIdempotent(t *testing.T) {
	s, root := newStore(t, 0)
	_, err := NewStore(s.UploadDir(), filepath.Join(root, "frames"), filepath.Join(root, "graphs"), 0)
	require.NoError(t, err)
}

func TestPutOpen(t *testing.T) {
	s, root := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, emotion.KindFrame, "a.mp4_frame_30.jpg", []byte("jpeg"), emotion.ContentTypeJPEG))
	require.FileExists(t, filepath.Join(root, "frames", "a.mp4_frame_30.jpg"))

	// 同名覆盖
	require.NoError(t, s.Put(ctx, emotion.KindFrame, "a.mp4_frame_30.jpg", []byte("jpeg2"), emotion.ContentTypeJPEG))

	a, err := s.Open(ctx, emotion.KindFrame, "a.mp4_frame_30.jpg")
	require.NoError(t, err)
	defer a.Close()
	b, err := io.ReadAll(a)
	require.NoError(t, err)
	require.Equal(t, "jpeg2", string(b))
	require.EqualValues(t, 5, a.Size)
	require.Equal(t, "image/jpeg", a.ContentType)

	_, err = s.Open(ctx, emotion.KindGraph, "a.mp4_frame_30.jpg")
	require.ErrorIs(t, err, emotion.ErrArtifactNotFound)
	_, err = s.Open(ctx, emotion.KindFrame, "../graphs/x.png")
	require.ErrorIs(t, err, emotion.ErrArtifactNotFound)

	entries, err := os.ReadDir(filepath.Join(root, "frames"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestSaveUpload(t *testing.T) {
	s, root := newStore(t, 0)
	path, err := s.SaveUpload(context.Background(), "clip.mp4", strings.NewReader("video"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "uploads", "clip.mp4"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "video", string(b))

	_, err = s.SaveUpload(context.Background(), "../clip.mp4", strings.NewReader("video"))
	require.ErrorIs(t, err, emotion.ErrInvalidFilename)
}

func TestCheckCapacity(t *testing.T) {
	s, _ := newStore(t, 0)
	require.NoError(t, s.CheckCapacity(context.Background()))

	tight, _ := newStore(t, 0.0001)
	u, err := disk.Usage(tight.UploadDir())
	if err != nil || u.UsedPercent < 0.0001 {
		t.Skip("disk usage unavailable")
	}
	require.ErrorIs(t, tight.CheckCapacity(context.Background()), emotion.ErrInsufficientStorage)
}

func TestPrune(t *testing.T) {
	s, root := newStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, emotion.KindFrame, "old.mp4_frame_30.jpg", []byte("jpeg"), emotion.ContentTypeJPEG))
	require.NoError(t, s.Put(ctx, emotion.KindGraph, "old.mp4_emotion_graph.png", []byte("png"), emotion.ContentTypePNG))
	require.NoError(t, s.Put(ctx, emotion.KindFrame, "new.mp4_frame_30.jpg", []byte("jpeg"), emotion.ContentTypeJPEG))
	_, err := s.SaveUpload(ctx, "old.mp4", strings.NewReader("video"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	for _, p := range []string{
		filepath.Join(root, "frames", "old.mp4_frame_30.jpg"),
		filepath.Join(root, "graphs", "old.mp4_emotion_graph.png"),
		filepath.Join(root, "uploads", "old.mp4"),
	} {
		require.NoError(t, os.Chtimes(p, past, past))
	}

	n, err := s.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.FileExists(t, filepath.Join(root, "frames", "new.mp4_frame_30.jpg"))
	require.NoFileExists(t, filepath.Join(root, "uploads", "old.mp4"))
}
