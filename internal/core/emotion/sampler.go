package emotion

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"iter"
	"log/slog"
	"math"
)

// VideoSource 按解码顺序读取的视频帧流
// 只能顺序读取一次，用完由打开者负责 Close
type VideoSource interface {
	// FrameRate 每秒帧数，无法获取时返回 0
	FrameRate() float64
	// Next 解码并返回下一帧，流结束返回 io.EOF
	Next() (image.Image, error)
	// Skip 跳过下一帧且不生成图像，流结束返回 io.EOF
	Skip() error
	Close() error
}

// VideoOpener 打开视频文件
type VideoOpener interface {
	Open(ctx context.Context, path string) (VideoSource, error)
}

// VideoOpenerFunc 函数形式的 VideoOpener
type VideoOpenerFunc func(ctx context.Context, path string) (VideoSource, error)

func (f VideoOpenerFunc) Open(ctx context.Context, path string) (VideoSource, error) {
	return f(ctx, path)
}

// SampledFrame 被选中分析的帧
type SampledFrame struct {
	// Ordinal 从 1 开始的解码序号
	Ordinal int
	// Timestamp Ordinal / 帧率，单位秒
	Timestamp float64
	Image     image.Image
}

// Sampler 每 interval 帧选取一帧
type Sampler struct {
	interval int
}

// NewSampler interval 小于 1 时按 1 处理
func NewSampler(interval int) Sampler {
	return Sampler{interval: max(interval, 1)}
}

func (s Sampler) Interval() int {
	return s.interval
}

// Selected 序号能被 interval 整除时选中，序号从 1 开始
func (s Sampler) Selected(ordinal int) bool {
	return ordinal%s.interval == 0
}

// Timestamp 帧序号对应的秒数
func Timestamp(ordinal int, fps float64) float64 {
	return float64(ordinal) / fps
}

// ValidFrameRate 帧率必须为有限正数
func ValidFrameRate(fps float64) bool {
	return fps > 0 && !math.IsInf(fps, 0) && !math.IsNaN(fps)
}

// SampleStats 采样过程的计数
type SampleStats struct {
	Decoded  int
	Selected int
}

// Sample 返回被选中帧的惰性序列，按序号升序产出
// 未选中的帧只跳过不解码为图像；序列只能遍历一次
// 第一帧就解码失败视为视频不可读，之后的解码错误视为流结束
func (s Sampler) Sample(ctx context.Context, src VideoSource, stats *SampleStats) (iter.Seq2[SampledFrame, error], error) {
	fps := src.FrameRate()
	if !ValidFrameRate(fps) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrameRate, fps)
	}
	if stats == nil {
		stats = new(SampleStats)
	}

	var started bool
	return func(yield func(SampledFrame, error) bool) {
		if started {
			yield(SampledFrame{}, errors.New("frame sequence already consumed"))
			return
		}
		started = true

		for ordinal := 1; ; ordinal++ {
			if err := ctx.Err(); err != nil {
				yield(SampledFrame{}, err)
				return
			}

			selected := s.Selected(ordinal)
			var (
				img image.Image
				err error
			)
			if selected {
				img, err = src.Next()
			} else {
				err = src.Skip()
			}

			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ordinal == 1 {
					yield(SampledFrame{}, fmt.Errorf("%w: %w", ErrVideoUnreadable, err))
					return
				}
				slog.WarnContext(ctx, "decode stopped early", "ordinal", ordinal, "err", err)
				return
			}

			stats.Decoded++
			if !selected {
				continue
			}
			stats.Selected++
			frame := SampledFrame{
				Ordinal:   ordinal,
				Timestamp: Timestamp(ordinal, fps),
				Image:     img,
			}
			if !yield(frame, nil) {
				return
			}
		}
	}, nil
}
