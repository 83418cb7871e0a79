package minioadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gowvp/moodline/internal/adapter/localfs"
	"github.com/gowvp/moodline/internal/core/emotion"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	_ emotion.ArtifactStore  = (*Store)(nil)
	_ emotion.ArtifactPruner = (*Store)(nil)
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// Store 帧预览与图表存入 MinIO，上传视频先落本地供 ffmpeg 解码，再归档到桶中
type Store struct {
	client  *miniogo.Client
	bucket  string
	uploads *localfs.Store
}

func NewStore(cfg Config, uploads *localfs.Store) (*Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket, uploads: uploads}, nil
}

// EnsureBucket 桶不存在时创建
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// ObjectKey 对象名为 {kind}/{name}
func ObjectKey(kind emotion.ArtifactKind, name string) string {
	return string(kind) + "/" + name
}

// SaveUpload implements emotion.ArtifactStore.
// 归档失败不影响本次分析
func (s *Store) SaveUpload(ctx context.Context, name string, r io.Reader) (string, error) {
	path, err := s.uploads.SaveUpload(ctx, name, r)
	if err != nil {
		return "", err
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, "uploads/"+name, path, miniogo.PutObjectOptions{}); err != nil {
		slog.WarnContext(ctx, "archive upload", "name", name, "err", err)
	}
	return path, nil
}

// Put implements emotion.ArtifactStore.
func (s *Store) Put(ctx context.Context, kind emotion.ArtifactKind, name string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, ObjectKey(kind, name), bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", ObjectKey(kind, name), err)
	}
	return nil
}

// Open implements emotion.ArtifactStore.
func (s *Store) Open(ctx context.Context, kind emotion.ArtifactKind, name string) (*emotion.Artifact, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ObjectKey(kind, name), miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapErr(err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapErr(err)
	}
	return &emotion.Artifact{
		ReadCloser:  obj,
		Size:        st.Size,
		ContentType: st.ContentType,
		ModTime:     st.LastModified,
	}, nil
}

// Prune implements emotion.ArtifactPruner.
// 先清理本地上传目录，再删除桶中 LastModified 早于 before 的对象
func (s *Store) Prune(ctx context.Context, before time.Time) (int, error) {
	removed, err := s.uploads.Prune(ctx, before)
	errs := []error{err}

	for _, prefix := range []string{string(emotion.KindFrame) + "/", string(emotion.KindGraph) + "/", "uploads/"} {
		listed := s.client.ListObjects(ctx, s.bucket, miniogo.ListObjectsOptions{Prefix: prefix, Recursive: true})
		expired := make(chan miniogo.ObjectInfo)

		var selected int
		var listErr error
		var wg sync.WaitGroup
		wg.Go(func() {
			defer close(expired)
			selected, listErr = selectExpired(ctx, listed, before, expired)
		})

		var failed int
		for e := range s.client.RemoveObjects(ctx, s.bucket, expired, miniogo.RemoveObjectsOptions{}) {
			failed++
			slog.WarnContext(ctx, "failed to delete object", "key", e.ObjectName, "err", e.Err)
		}
		wg.Wait()

		removed += selected - failed
		if listErr != nil {
			errs = append(errs, fmt.Errorf("list %s: %w", prefix, listErr))
		}
	}
	return removed, errors.Join(errs...)
}

// selectExpired 将 LastModified 早于 before 的对象写入 out，返回写入数量
func selectExpired(ctx context.Context, in <-chan miniogo.ObjectInfo, before time.Time, out chan<- miniogo.ObjectInfo) (int, error) {
	var n int
	for obj := range in {
		if obj.Err != nil {
			return n, obj.Err
		}
		if !obj.LastModified.Before(before) {
			continue
		}
		select {
		case out <- obj:
			n++
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
	return n, nil
}

func mapErr(err error) error {
	switch miniogo.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return emotion.ErrArtifactNotFound
	}
	return err
}
