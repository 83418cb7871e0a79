package classifieradapter

import (
	"context"
	"fmt"

	"github.com/gowvp/moodline/internal/core/emotion"
	"github.com/gowvp/moodline/pkg/deepface"
)

var _ emotion.Classifier = (*Adapter)(nil)

// Analyzer DeepFace REST 客户端与 gRPC 客户端的共同接口
type Analyzer interface {
	Analyze(ctx context.Context, in *deepface.AnalyzeRequest) (*deepface.AnalyzeResponse, error)
}

// Adapter 将帧编码为 JPEG 后交给 Analyzer，并把响应转换为领域结果
type Adapter struct {
	cli     Analyzer
	quality int
}

func NewAdapter(cli Analyzer, quality int) *Adapter {
	return &Adapter{cli: cli, quality: quality}
}

// Analyze implements emotion.Classifier.
func (a *Adapter) Analyze(ctx context.Context, in emotion.AnalyzeRequest) (emotion.AnalyzeResult, error) {
	img, err := emotion.EncodeJPEG(in.Image, a.quality)
	if err != nil {
		return emotion.AnalyzeResult{}, fmt.Errorf("encode frame: %w", err)
	}
	resp, err := a.cli.Analyze(ctx, &deepface.AnalyzeRequest{
		Image:            img,
		Actions:          in.Actions,
		DetectorBackend:  in.DetectorBackend,
		EnforceDetection: in.EnforceDetection,
	})
	if err != nil {
		return emotion.AnalyzeResult{}, err
	}
	return ToResult(resp)
}

// ToResult 单个对象对应 SingleResult，列表按原顺序对应 MultipleResult
func ToResult(resp *deepface.AnalyzeResponse) (emotion.AnalyzeResult, error) {
	if resp == nil {
		return emotion.AnalyzeResult{}, emotion.ErrMalformedResult
	}
	if resp.Single != nil {
		return emotion.SingleResult(toFace(*resp.Single)), nil
	}
	faces := make([]emotion.FaceAnalysis, 0, len(resp.Multiple))
	for _, f := range resp.Multiple {
		faces = append(faces, toFace(f))
	}
	return emotion.MultipleResult(faces), nil
}

func toFace(f deepface.Face) emotion.FaceAnalysis {
	return emotion.FaceAnalysis{
		DominantEmotion: f.DominantEmotion,
		Emotion:         f.Emotion,
		FaceConfidence:  f.FaceConfidence,
	}
}
