package ffwork

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeInfo 视频流的基本信息
type ProbeInfo struct {
	Width     int
	Height    int
	FrameRate float64
	Duration  float64
	NbFrames  int64
	Codec     string
	// Rotation 显示旋转角度，归一化到 [0, 360)
	// 为 90/270 时 Width/Height 已按 ffmpeg 自动旋转后的输出交换
	Rotation int
}

type probeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		SideDataList []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
		Tags struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe 使用 ffprobe 读取第一个视频流的信息
func Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,avg_frame_rate,r_frame_rate,nb_frames:stream_side_data=rotation:stream_tags=rotate:format=duration",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return ParseProbe(out)
}

// ParseProbe 解析 ffprobe -of json 的输出
// avg_frame_rate 为 0/0 时回退到 r_frame_rate
// ffmpeg 默认按 display matrix 自动旋转，旋转 90/270 度时输出帧宽高互换
func ParseProbe(b []byte) (*ProbeInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("no video stream")
	}
	s := out.Streams[0]
	info := ProbeInfo{
		Width:     s.Width,
		Height:    s.Height,
		Codec:     s.CodecName,
		FrameRate: ParseRate(s.AvgFrameRate),
	}
	if info.FrameRate <= 0 {
		info.FrameRate = ParseRate(s.RFrameRate)
	}
	rotation, _ := strconv.ParseFloat(s.Tags.Rotate, 64)
	for _, sd := range s.SideDataList {
		if sd.Rotation != nil {
			rotation = *sd.Rotation
			break
		}
	}
	info.Rotation = normalizeRotation(rotation)
	if info.Rotation == 90 || info.Rotation == 270 {
		info.Width, info.Height = info.Height, info.Width
	}
	info.NbFrames, _ = strconv.ParseInt(s.NbFrames, 10, 64)
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	return &info, nil
}

// ParseRate 解析 30000/1001 或 25 形式的帧率，无法解析返回 0
func ParseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return max(n, 0)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return max(n/d, 0)
}

// normalizeRotation 四舍五入到 90 的倍数并归一化到 [0, 360)
func normalizeRotation(deg float64) int {
	r := int(math.Round(deg/90)) * 90 % 360
	if r < 0 {
		r += 360
	}
	return r
}
