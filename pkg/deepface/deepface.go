// Package deepface DeepFace REST API 客户端
// 服务端通常以 deepface/api 启动，默认端口 5005
package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	// URL 服务地址，如 http://127.0.0.1:5005
	URL string
	// ImageField 图片字段名，旧版本为 img_path，新版本为 img
	ImageField string
}

type Engine struct {
	cfg Config
	cli *http.Client
}

func NewEngine() Engine {
	return Engine{
		cli: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
			},
		},
	}
}

func (e Engine) SetConfig(cfg Config) Engine {
	if cfg.ImageField == "" {
		cfg.ImageField = "img_path"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	e.cfg = cfg
	return e
}

// AnalyzeRequest 单张图片分析请求
type AnalyzeRequest struct {
	// JPEG 编码后的图片
	Image            []byte
	Actions          []string
	DetectorBackend  string
	EnforceDetection bool
}

// Analyze 调用 /analyze
func (e *Engine) Analyze(ctx context.Context, in *AnalyzeRequest) (*AnalyzeResponse, error) {
	data := map[string]any{
		e.cfg.ImageField:    DataURI(in.Image),
		"actions":           in.Actions,
		"enforce_detection": in.EnforceDetection,
	}
	if in.DetectorBackend != "" {
		data["detector_backend"] = in.DetectorBackend
	}

	body, err := e.post(ctx, "/analyze", data)
	if err != nil {
		return nil, err
	}
	return DecodeAnalyzeResponse(body)
}

// DataURI 图片以 base64 data uri 形式传输
func DataURI(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}

// post 发送 POST 请求，非 200 时返回服务端的错误信息
func (e *Engine) post(ctx context.Context, path string, data map[string]any) ([]byte, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if json.Unmarshal(b, &er) == nil && er.Error != "" {
			return nil, fmt.Errorf("deepface %s: %d %s", path, resp.StatusCode, er.Error)
		}
		return nil, fmt.Errorf("deepface %s: %d %s", path, resp.StatusCode, bytes.TrimSpace(b))
	}
	return b, nil
}
