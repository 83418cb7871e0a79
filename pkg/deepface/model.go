package deepface

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrMalformedResponse 响应结构无法识别
var ErrMalformedResponse = errors.New("deepface: malformed response")

type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Face 一张人脸的分析结果
type Face struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Emotion         map[string]float64 `json:"emotion"`
	FaceConfidence  float64            `json:"face_confidence"`
	Region          *Region            `json:"region,omitempty"`
}

// AnalyzeResponse Single 与 Multiple 只会有一个生效
// 不同版本的 DeepFace 可能返回单个对象或列表
type AnalyzeResponse struct {
	Single   *Face
	Multiple []Face
}

type errorResponse struct {
	Error string `json:"error"`
}

// DecodeAnalyzeResponse 兼容以下几种响应
//
//	{"results": [...]}
//	{"instance_1": {...}, "instance_2": {...}}
//	{"dominant_emotion": ...}
//	[...]
func DecodeAnalyzeResponse(b []byte) (*AnalyzeResponse, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}

	switch b[0] {
	case '[':
		var faces []Face
		if err := json.Unmarshal(b, &faces); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return &AnalyzeResponse{Multiple: faces}, nil
	case '{':
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformedResponse, b[0])
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if raw, ok := fields["error"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return nil, fmt.Errorf("deepface: %s", msg)
	}
	if raw, ok := fields["results"]; ok {
		return DecodeAnalyzeResponse(raw)
	}
	if _, ok := fields["dominant_emotion"]; ok {
		var face Face
		if err := json.Unmarshal(b, &face); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return &AnalyzeResponse{Single: &face}, nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if strings.HasPrefix(k, "instance_") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: missing dominant_emotion", ErrMalformedResponse)
	}
	slices.SortFunc(keys, compareInstance)
	faces := make([]Face, 0, len(keys))
	for _, k := range keys {
		var face Face
		if err := json.Unmarshal(fields[k], &face); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, k, err)
		}
		faces = append(faces, face)
	}
	return &AnalyzeResponse{Multiple: faces}, nil
}

// compareInstance instance_2 排在 instance_10 之前
func compareInstance(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}
