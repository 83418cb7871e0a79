package emotion

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"
)

// FaceAnalysis 单张人脸的分析结果
type FaceAnalysis struct {
	DominantEmotion string
	Emotion         map[string]float64
	FaceConfidence  float64
}

type resultKind uint8

const (
	resultInvalid resultKind = iota
	resultSingle
	resultMultiple
)

// AnalyzeResult 分类器返回值，单个结果或多个结果二选一
type AnalyzeResult struct {
	kind     resultKind
	single   FaceAnalysis
	multiple []FaceAnalysis
}

// SingleResult 分类器直接返回一个结果
func SingleResult(f FaceAnalysis) AnalyzeResult {
	return AnalyzeResult{kind: resultSingle, single: f}
}

// MultipleResult 分类器返回结果列表，按分类器的顺序保存
func MultipleResult(fs []FaceAnalysis) AnalyzeResult {
	return AnalyzeResult{kind: resultMultiple, multiple: fs}
}

// Dominant 取主导情绪，多个结果时取第一个
func (r AnalyzeResult) Dominant() (string, error) {
	switch r.kind {
	case resultSingle:
		return r.single.DominantEmotion, nil
	case resultMultiple:
		if len(r.multiple) == 0 {
			return "", ErrNoFace
		}
		return r.multiple[0].DominantEmotion, nil
	default:
		return "", ErrMalformedResult
	}
}

// AnalyzeRequest 单帧分析请求
type AnalyzeRequest struct {
	Image            image.Image
	Actions          []string
	DetectorBackend  string
	EnforceDetection bool
}

// Classifier 外部情绪分类服务
type Classifier interface {
	Analyze(ctx context.Context, in AnalyzeRequest) (AnalyzeResult, error)
}

// Outcome 单帧分类结果，Err 为空表示成功
type Outcome struct {
	Label Label
	Err   error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Emotion 时间线中记录的情绪，失败为 error
func (o Outcome) Emotion() Label {
	if o.Err != nil {
		return LabelError
	}
	return o.Label
}

// ClassifierAdapter 将分类器的各种失败统一为 Outcome
type ClassifierAdapter struct {
	cli             Classifier
	timeout         time.Duration
	detectorBackend string
}

func NewClassifierAdapter(cli Classifier, timeout time.Duration, detectorBackend string) ClassifierAdapter {
	return ClassifierAdapter{cli: cli, timeout: timeout, detectorBackend: detectorBackend}
}

// Classify 分析一帧，不返回错误，不 panic
func (a ClassifierAdapter) Classify(ctx context.Context, img image.Image) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: fmt.Errorf("classifier panic: %v", r)}
		}
	}()
	if a.cli == nil {
		return Outcome{Err: fmt.Errorf("classifier not configured")}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	res, err := a.cli.Analyze(ctx, AnalyzeRequest{
		Image:            img,
		Actions:          []string{"emotion"},
		DetectorBackend:  a.detectorBackend,
		EnforceDetection: false,
	})
	if err != nil {
		return Outcome{Err: err}
	}
	raw, err := res.Dominant()
	if err != nil {
		return Outcome{Err: err}
	}
	label, ok := ParseLabel(raw)
	if !ok {
		slog.WarnContext(ctx, "classifier returned unknown emotion", "emotion", raw)
		return Outcome{Err: fmt.Errorf("%w: %q", ErrUnexpectedLabel, raw)}
	}
	return Outcome{Label: label}
}
