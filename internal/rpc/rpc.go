package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gowvp/moodline/pkg/deepface"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// AnalyzeMethod 情绪分析服务方法，请求与响应均为 google.protobuf.Struct
// 字段与 DeepFace REST API 保持一致
const AnalyzeMethod = "/moodline.v1.EmotionService/Analyze"

// EmotionClient 封装 gRPC 情绪分析服务客户端
type EmotionClient struct {
	conn *grpc.ClientConn
}

// NewEmotionClient 创建客户端并在后台做一次健康检查
func NewEmotionClient(addr string, opts ...grpc.DialOption) (*EmotionClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", addr, err)
	}
	c := EmotionClient{conn: conn}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Check(ctx); err != nil {
			slog.Error("HealthCheck", "addr", addr, "err", err)
			return
		}
		slog.Info("HealthCheck OK", "addr", addr)
	}()
	return &c, nil
}

// Check 健康检查，非 SERVING 状态返回错误
func (c *EmotionClient) Check(ctx context.Context) error {
	resp, err := grpc_health_v1.NewHealthClient(c.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("classifier status %s", resp.GetStatus())
	}
	return nil
}

// Analyze 分析单张图片，响应结构与 REST API 相同
func (c *EmotionClient) Analyze(ctx context.Context, in *deepface.AnalyzeRequest) (*deepface.AnalyzeResponse, error) {
	actions := make([]any, 0, len(in.Actions))
	for _, a := range in.Actions {
		actions = append(actions, a)
	}
	req, err := structpb.NewStruct(map[string]any{
		"img":               deepface.DataURI(in.Image),
		"actions":           actions,
		"detector_backend":  in.DetectorBackend,
		"enforce_detection": in.EnforceDetection,
	})
	if err != nil {
		return nil, err
	}

	var resp structpb.Struct
	if err := c.conn.Invoke(ctx, AnalyzeMethod, req, &resp); err != nil {
		return nil, err
	}
	b, err := protojson.Marshal(&resp)
	if err != nil {
		return nil, err
	}
	return deepface.DecodeAnalyzeResponse(b)
}

func (c *EmotionClient) Close() error {
	return c.conn.Close()
}
