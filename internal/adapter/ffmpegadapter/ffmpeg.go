package ffmpegadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gowvp/moodline/internal/core/emotion"
	"github.com/gowvp/moodline/pkg/ffwork"
)

var _ emotion.VideoSource = (*ffwork.Decoder)(nil)

// NewOpener 使用本机 ffprobe/ffmpeg 解码视频文件
func NewOpener() emotion.VideoOpener {
	return emotion.VideoOpenerFunc(Open)
}

// Open 探测失败或无法启动 ffmpeg 时返回 ErrVideoUnreadable
func Open(ctx context.Context, path string) (emotion.VideoSource, error) {
	d, err := ffwork.OpenFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", emotion.ErrVideoUnreadable, err)
	}
	info := d.Info()
	slog.DebugContext(ctx, "open video",
		"path", path,
		"codec", info.Codec,
		"size", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"fps", info.FrameRate,
		"duration", info.Duration,
		"nb_frames", info.NbFrames,
	)
	return d, nil
}
