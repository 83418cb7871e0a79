package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/gowvp/moodline/internal/core/emotion"
	"github.com/shirou/gopsutil/v4/disk"
)

var (
	_ emotion.ArtifactStore  = (*Store)(nil)
	_ emotion.DiskGuard      = (*Store)(nil)
	_ emotion.ArtifactPruner = (*Store)(nil)
)

// Store 本地目录存储，上传视频、帧预览、图表各占一个目录
type Store struct {
	uploadDir string
	dirs      map[emotion.ArtifactKind]string
	// threshold 磁盘使用率上限(%)，0 表示不检查
	threshold float64
}

// NewStore 创建目录，已存在时不做处理
func NewStore(uploadDir, frameDir, graphDir string, threshold float64) (*Store, error) {
	s := Store{
		uploadDir: uploadDir,
		dirs: map[emotion.ArtifactKind]string{
			emotion.KindFrame: frameDir,
			emotion.KindGraph: graphDir,
		},
		threshold: threshold,
	}
	for _, dir := range []string{uploadDir, frameDir, graphDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return &s, nil
}

// UploadDir 上传视频保存目录
func (s *Store) UploadDir() string {
	return s.uploadDir
}

// SaveUpload implements emotion.ArtifactStore.
// 同名文件直接覆盖
func (s *Store) SaveUpload(_ context.Context, name string, r io.Reader) (string, error) {
	if !emotion.ValidArtifactName(name) {
		return "", emotion.ErrInvalidFilename
	}
	path := filepath.Join(s.uploadDir, name)
	if err := writeFileAtomic(path, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	}); err != nil {
		return "", err
	}
	return path, nil
}

// Put implements emotion.ArtifactStore.
func (s *Store) Put(_ context.Context, kind emotion.ArtifactKind, name string, data []byte, _ string) error {
	dir, ok := s.dirs[kind]
	if !ok {
		return fmt.Errorf("unknown artifact kind %q", kind)
	}
	if !emotion.ValidArtifactName(name) {
		return emotion.ErrInvalidFilename
	}
	return writeFileAtomic(filepath.Join(dir, name), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Open implements emotion.ArtifactStore.
func (s *Store) Open(_ context.Context, kind emotion.ArtifactKind, name string) (*emotion.Artifact, error) {
	dir, ok := s.dirs[kind]
	if !ok || !emotion.ValidArtifactName(name) {
		return nil, emotion.ErrArtifactNotFound
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, emotion.ErrArtifactNotFound
		}
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, emotion.ErrArtifactNotFound
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &emotion.Artifact{
		ReadCloser:  f,
		Size:        st.Size(),
		ContentType: contentType,
		ModTime:     st.ModTime(),
	}, nil
}

// CheckCapacity implements emotion.DiskGuard.
// 任一目录所在磁盘使用率达到阈值即拒绝写入
func (s *Store) CheckCapacity(ctx context.Context) error {
	if s.threshold <= 0 {
		return nil
	}
	for _, dir := range []string{s.uploadDir, s.dirs[emotion.KindFrame], s.dirs[emotion.KindGraph]} {
		usage, err := disk.UsageWithContext(ctx, dir)
		if err != nil {
			slog.WarnContext(ctx, "disk usage", "dir", dir, "err", err)
			continue
		}
		if usage.UsedPercent >= s.threshold {
			return fmt.Errorf("%w: %s used %.1f%% >= %.1f%%", emotion.ErrInsufficientStorage, dir, usage.UsedPercent, s.threshold)
		}
	}
	return nil
}

// Prune implements emotion.ArtifactPruner.
// 只处理目录下的普通文件，不递归
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	var removed int
	var errs []error
	for _, dir := range []string{s.uploadDir, s.dirs[emotion.KindFrame], s.dirs[emotion.KindGraph]} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(before) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					slog.WarnContext(ctx, "failed to delete artifact", "path", path, "err", err)
				}
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// writeFileAtomic 先写临时文件再重命名，读取方不会看到写了一半的文件
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
