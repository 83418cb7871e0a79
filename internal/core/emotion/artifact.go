package emotion

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ArtifactKind 产物分类，同时也是存储目录或对象前缀
type ArtifactKind string

const (
	KindFrame ArtifactKind = "frames"
	KindGraph ArtifactKind = "graphs"
)

const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
)

// Artifact 可读取的产物，调用方负责 Close
type Artifact struct {
	io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ArtifactStore 上传文件与分析产物的存储
type ArtifactStore interface {
	// SaveUpload 保存上传的视频，返回可供解码的本地路径
	SaveUpload(ctx context.Context, name string, r io.Reader) (string, error)
	// Put 写入产物，同名覆盖
	Put(ctx context.Context, kind ArtifactKind, name string, data []byte, contentType string) error
	// Open 读取产物，不存在返回 ErrArtifactNotFound
	Open(ctx context.Context, kind ArtifactKind, name string) (*Artifact, error)
}

// DiskGuard 写入前检查存储容量，空间不足返回 ErrInsufficientStorage
type DiskGuard interface {
	CheckCapacity(ctx context.Context) error
}

// ArtifactPruner 删除修改时间早于 before 的上传视频与产物
type ArtifactPruner interface {
	Prune(ctx context.Context, before time.Time) (int, error)
}

// FrameName 帧预览文件名 {filename}_frame_{ordinal}.jpg
func FrameName(filename string, ordinal int) string {
	return filename + "_frame_" + strconv.Itoa(ordinal) + ".jpg"
}

// GraphName 情绪曲线图文件名 {filename}_emotion_graph.png
func GraphName(filename string) string {
	return filename + "_emotion_graph.png"
}

// SanitizeFilename 去掉客户端传来的目录部分并做 NFC 规范化
// 结果为空或为 . / .. 时返回 ErrInvalidFilename
func SanitizeFilename(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", ErrInvalidFilename
	}
	switch name {
	case "", ".", "..", "/":
		return "", ErrInvalidFilename
	}
	return name, nil
}

// ValidArtifactName 产物名不能包含路径
func ValidArtifactName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
