package emotion

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

// fakeSource 生成 total 帧纯色图像
type fakeSource struct {
	fps    float64
	total  int
	failAt int // 第几帧解码失败，0 表示不失败
	shade  uint8

	read   int
	closed bool
}

func (f *fakeSource) FrameRate() float64 { return f.fps }

func (f *fakeSource) advance() error {
	if f.failAt > 0 && f.read+1 == f.failAt {
		return errors.New("corrupt packet")
	}
	if f.read >= f.total {
		return io.EOF
	}
	f.read++
	return nil
}

func (f *fakeSource) Next() (image.Image, error) {
	if err := f.advance(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(f.read) + f.shade
	}
	img.Set(0, 0, color.White)
	return img, nil
}

func (f *fakeSource) Skip() error { return f.advance() }

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func openerOf(src *fakeSource) VideoOpener {
	return VideoOpenerFunc(func(context.Context, string) (VideoSource, error) {
		return src, nil
	})
}

// classifierFunc 函数形式的分类器
type classifierFunc func(ctx context.Context, in AnalyzeRequest) (AnalyzeResult, error)

func (f classifierFunc) Analyze(ctx context.Context, in AnalyzeRequest) (AnalyzeResult, error) {
	return f(ctx, in)
}

// sequenceClassifier 依次返回 labels，"error" 表示该次调用失败
func sequenceClassifier(labels ...string) Classifier {
	var i int
	return classifierFunc(func(context.Context, AnalyzeRequest) (AnalyzeResult, error) {
		defer func() { i++ }()
		if i >= len(labels) || labels[i] == "error" {
			return AnalyzeResult{}, errors.New("face could not be detected")
		}
		return SingleResult(FaceAnalysis{DominantEmotion: labels[i]}), nil
	})
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) key(kind ArtifactKind, name string) string {
	return string(kind) + "/" + name
}

func (m *memStore) SaveUpload(_ context.Context, name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects["uploads/"+name] = b
	return "/uploads/" + name, nil
}

func (m *memStore) Put(_ context.Context, kind ArtifactKind, name string, data []byte, _ string) error {
	if m.failPut {
		return errors.New("disk full")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[m.key(kind, name)] = data
	return nil
}

func (m *memStore) Open(_ context.Context, kind ArtifactKind, name string) (*Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[m.key(kind, name)]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return &Artifact{
		ReadCloser: io.NopCloser(bytes.NewReader(b)),
		Size:       int64(len(b)),
		ModTime:    time.Now(),
	}, nil
}

func (m *memStore) has(kind ArtifactKind, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[m.key(kind, name)]
	return ok
}

type memRuns struct {
	mu   sync.Mutex
	runs []*AnalysisRun
}

func (m *memRuns) Run() RunStorer { return m }

func (m *memRuns) Find(_ context.Context, out *[]*AnalysisRun, _ orm.Pager, _ ...orm.QueryOption) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*out = append(*out, m.runs...)
	return int64(len(m.runs)), nil
}

func (m *memRuns) Get(_ context.Context, out *AnalysisRun, _ ...orm.QueryOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return gorm.ErrRecordNotFound
	}
	*out = *m.runs[len(m.runs)-1]
	return nil
}

func (m *memRuns) Add(_ context.Context, r *AnalysisRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *memRuns) DeleteBefore(_ context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.runs[:0]
	for _, r := range m.runs {
		if !r.CreatedAt.Time.Before(t) {
			kept = append(kept, r)
		}
	}
	n := int64(len(m.runs) - len(kept))
	m.runs = kept
	return n, nil
}

func (m *memStore) get(kind ArtifactKind, name string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[m.key(kind, name)]
}
