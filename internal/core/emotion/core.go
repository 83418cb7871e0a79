package emotion

import (
	"net/url"
	"strings"
	"time"

	"github.com/gowvp/moodline/pkg/chart"
)

// ChartRenderer 将时间线渲染为 PNG
type ChartRenderer interface {
	Render(s chart.Series) ([]byte, error)
}

// Core business domain
type Core struct {
	store      Storer
	artifacts  ArtifactStore
	opener     VideoOpener
	classifier ClassifierAdapter
	chart      ChartRenderer
	guard      DiskGuard
	pruner     ArtifactPruner
	sampler    Sampler

	jpegQuality int
	publicURL   string
}

type Option func(*Core)

// WithArtifactStore 上传文件、帧预览与图表的存储
func WithArtifactStore(s ArtifactStore) Option {
	return func(c *Core) {
		c.artifacts = s
	}
}

func WithVideoOpener(o VideoOpener) Option {
	return func(c *Core) {
		c.opener = o
	}
}

// WithClassifier timeout 为单帧分析超时，0 表示只受请求上下文约束
func WithClassifier(cli Classifier, timeout time.Duration, detectorBackend string) Option {
	return func(c *Core) {
		c.classifier = NewClassifierAdapter(cli, timeout, detectorBackend)
	}
}

func WithChartRenderer(r ChartRenderer) Option {
	return func(c *Core) {
		c.chart = r
	}
}

// WithDiskGuard 上传前检查磁盘容量
func WithDiskGuard(g DiskGuard) Option {
	return func(c *Core) {
		c.guard = g
	}
}

// WithPruner 过期清理时删除的本地文件
func WithPruner(p ArtifactPruner) Option {
	return func(c *Core) {
		c.pruner = p
	}
}

// WithSamplingInterval 每 n 帧分析一帧
func WithSamplingInterval(n int) Option {
	return func(c *Core) {
		c.sampler = NewSampler(n)
	}
}

func WithJPEGQuality(q int) Option {
	return func(c *Core) {
		c.jpegQuality = q
	}
}

// WithPublicURL 帧预览链接前缀，为空时返回相对路径 /frame/{name}
func WithPublicURL(u string) Option {
	return func(c *Core) {
		c.publicURL = strings.TrimRight(u, "/")
	}
}

// NewCore create business domain
// store 为 nil 时不记录分析历史
func NewCore(store Storer, opts ...Option) Core {
	c := Core{
		store:       store,
		sampler:     NewSampler(30),
		jpegQuality: 90,
		chart:       chart.NewRenderer(12, 6),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// FrameURL 帧预览在客户端可访问的地址
func (c Core) FrameURL(name string) string {
	return c.publicURL + "/frame/" + url.PathEscape(name)
}

// SamplingInterval 当前的采样间隔
func (c Core) SamplingInterval() int {
	return c.sampler.Interval()
}
