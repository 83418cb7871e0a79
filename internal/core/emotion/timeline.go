package emotion

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/gowvp/moodline/pkg/chart"
)

// Observation 某一时刻的情绪
type Observation struct {
	Time    float64 `json:"time"`
	Emotion Label   `json:"emotion"`
}

// Timeline 按时间排列的观测与帧预览，两者下标一一对应
// 分析失败的帧预览为 nil
type Timeline struct {
	Observations []Observation
	Previews     []*string
	Failures     int
}

func (t *Timeline) Len() int {
	return len(t.Observations)
}

// Series 图表数据，error 对应 NaN 使曲线断开
func (t *Timeline) Series() chart.Series {
	ticks := make([]string, len(Labels))
	for i, l := range Labels {
		ticks[i] = string(l)
	}
	s := chart.Series{
		Title:  "Time vs Emotion Graph",
		XLabel: "Time (seconds)",
		YLabel: "Emotion",
		X:      make([]float64, 0, len(t.Observations)),
		Y:      make([]float64, 0, len(t.Observations)),
		YTicks: ticks,
	}
	for _, o := range t.Observations {
		y := math.NaN()
		if v, ok := o.Emotion.Ordinal(); ok {
			y = float64(v)
		}
		s.X = append(s.X, o.Time)
		s.Y = append(s.Y, y)
	}
	return s
}

// Aggregator 按采样顺序收集分类结果，成功的帧写入预览图
type Aggregator struct {
	filename string
	store    ArtifactStore
	quality  int
	ref      func(name string) string

	timeline Timeline
}

// NewAggregator ref 将预览文件名转换为返回给客户端的引用
func NewAggregator(filename string, store ArtifactStore, quality int, ref func(string) string) *Aggregator {
	if ref == nil {
		ref = func(name string) string { return name }
	}
	return &Aggregator{
		filename: filename,
		store:    store,
		quality:  quality,
		ref:      ref,
		timeline: Timeline{
			Observations: make([]Observation, 0, 16),
			Previews:     make([]*string, 0, 16),
		},
	}
}

// Add 追加一帧的结果，预览写入失败时返回 ErrArtifactPersist
func (a *Aggregator) Add(ctx context.Context, frame SampledFrame, out Outcome) error {
	var preview *string
	if out.OK() {
		name := FrameName(a.filename, frame.Ordinal)
		data, err := EncodeJPEG(frame.Image, a.quality)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %w", ErrArtifactPersist, name, err)
		}
		if err := a.store.Put(ctx, KindFrame, name, data, ContentTypeJPEG); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrArtifactPersist, name, err)
		}
		ref := a.ref(name)
		preview = &ref
	} else {
		a.timeline.Failures++
	}

	a.timeline.Observations = append(a.timeline.Observations, Observation{
		Time:    frame.Timestamp,
		Emotion: out.Emotion(),
	})
	a.timeline.Previews = append(a.timeline.Previews, preview)
	return nil
}

func (a *Aggregator) Timeline() *Timeline {
	return &a.timeline
}

// EncodeJPEG quality 超出 1~100 时使用默认质量
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Result 接口返回体
type Result struct {
	Message       string        `json:"message"`
	FrameEmotions []Observation `json:"frame_emotions"`
	Frames        []*string     `json:"frames"`
	GraphName     string        `json:"graph_name"`
}

// NewResult 组装返回体，空时间线也返回空数组而非 null
func NewResult(t *Timeline, graphName string) *Result {
	obs := t.Observations
	if obs == nil {
		obs = []Observation{}
	}
	frames := t.Previews
	if frames == nil {
		frames = []*string{}
	}
	return &Result{
		Message:       "success",
		FrameEmotions: obs,
		Frames:        frames,
		GraphName:     graphName,
	}
}
