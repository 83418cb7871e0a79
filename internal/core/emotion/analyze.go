package emotion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gowvp/moodline/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("emotion")

// Upload 保存上传的视频并立即分析
func (c Core) Upload(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, filename)
	}
	if c.guard != nil {
		if err := c.guard.CheckCapacity(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	path, err := c.artifacts.SaveUpload(ctx, name, r)
	if err != nil {
		return nil, fmt.Errorf("%w: save upload %s: %w", ErrArtifactPersist, name, err)
	}
	metrics.ObserveStage("upload", start)

	return c.Analyze(ctx, name, path)
}

// Analyze 对本地视频文件执行 采样 -> 分类 -> 聚合 -> 绘图
// 单帧分类失败记为 error 继续处理，视频不可读或产物写入失败时整个请求失败
func (c Core) Analyze(ctx context.Context, filename, path string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "emotion.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("filename", filename))

	metrics.ActiveAnalyses.Inc()
	defer metrics.ActiveAnalyses.Dec()

	start := time.Now()
	sum := runSummary{
		ID:               uuid.NewString(),
		Filename:         filename,
		SamplingInterval: c.sampler.Interval(),
	}
	log := slog.With("run_id", sum.ID, "filename", filename)

	result, err := c.analyze(ctx, filename, path, &sum)
	if err != nil {
		sum.Status = RunStatusFailed
		sum.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.AnalysesTotal.WithLabelValues(RunStatusFailed).Inc()
		log.ErrorContext(ctx, "analyze video", "err", err)
	} else {
		sum.Status = RunStatusSuccess
		metrics.AnalysesTotal.WithLabelValues(RunStatusSuccess).Inc()
		log.InfoContext(ctx, "analyze video",
			"frames", sum.FramesDecoded,
			"observations", sum.Observations,
			"failures", sum.Failures,
			"cost", time.Since(start).String(),
		)
	}
	metrics.ObserveStage("total", start)
	c.recordRun(ctx, &sum, start)
	return result, err
}

func (c Core) analyze(ctx context.Context, filename, path string, sum *runSummary) (*Result, error) {
	if c.opener == nil || c.artifacts == nil {
		return nil, errors.New("emotion core is not fully configured")
	}

	src, err := c.opener.Open(ctx, path)
	if err != nil {
		if errors.Is(err, ErrVideoUnreadable) || errors.Is(err, ErrInvalidFrameRate) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrVideoUnreadable, err)
	}
	defer src.Close()

	sum.FrameRate = src.FrameRate()
	var stats SampleStats
	frames, err := c.sampler.Sample(ctx, src, &stats)
	if err != nil {
		return nil, err
	}

	sampleStart := time.Now()
	agg := NewAggregator(filename, c.artifacts, c.jpegQuality, c.FrameURL)
	for frame, err := range frames {
		if err != nil {
			return nil, err
		}

		ctx, span := tracer.Start(ctx, "emotion.Classify")
		span.SetAttributes(attribute.Int("ordinal", frame.Ordinal))
		classifyStart := time.Now()
		out := c.classifier.Classify(ctx, frame.Image)
		metrics.ClassifierDuration.Observe(time.Since(classifyStart).Seconds())
		metrics.FramesClassifiedTotal.WithLabelValues(out.Emotion().String()).Inc()
		if !out.OK() {
			span.RecordError(out.Err)
			slog.DebugContext(ctx, "classify frame", "ordinal", frame.Ordinal, "err", out.Err)
		}
		span.End()

		if err := agg.Add(ctx, frame, out); err != nil {
			return nil, err
		}
	}
	metrics.ObserveStage("sample", sampleStart)
	metrics.FramesDecodedTotal.Add(float64(stats.Decoded))

	timeline := agg.Timeline()
	sum.FramesDecoded = stats.Decoded
	sum.Observations = timeline.Len()
	sum.Failures = timeline.Failures

	renderStart := time.Now()
	graph := GraphName(filename)
	png, err := c.chart.Render(timeline.Series())
	if err != nil {
		return nil, fmt.Errorf("%w: render %s: %w", ErrArtifactPersist, graph, err)
	}
	if err := c.artifacts.Put(ctx, KindGraph, graph, png, ContentTypePNG); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactPersist, graph, err)
	}
	metrics.ObserveStage("render", renderStart)
	sum.GraphName = graph

	return NewResult(timeline, graph), nil
}

// OpenArtifact 读取帧预览或图表，名称包含路径时视为不存在
func (c Core) OpenArtifact(ctx context.Context, kind ArtifactKind, name string) (*Artifact, error) {
	if !ValidArtifactName(name) {
		return nil, ErrArtifactNotFound
	}
	return c.artifacts.Open(ctx, kind, name)
}
