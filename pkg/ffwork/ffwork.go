package ffwork

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

type (
	// FrameData 一帧 RGB24 原始数据
	// Data 指向解码器内部缓冲，下一次读取后失效
	FrameData struct {
		FrameNum      uint64
		Width, Height int
		Data          []byte
	}

	// Decoder 通过 ffmpeg 将视频文件解码为 RGB24 帧，按顺序拉取
	Decoder struct {
		path      string
		info      ProbeInfo
		frameSize int
		buf       []byte

		cmd       *exec.Cmd
		cancel    context.CancelFunc
		reader    *bufio.Reader
		wg        sync.WaitGroup
		ffmpegLog *queue.CirQueue[string]

		frameCount uint64
		waitOnce   sync.Once
		waitErr    error
		closeOnce  sync.Once
	}
)

// OpenFile 探测并开始解码视频文件
func OpenFile(ctx context.Context, path string) (*Decoder, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, path, *info)
}

// Open 使用已知的视频信息开始解码
func Open(ctx context.Context, path string, info ProbeInfo) (*Decoder, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", info.Width, info.Height)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d := Decoder{
		path:      path,
		info:      info,
		frameSize: info.Width * info.Height * 3,
		cancel:    cancel,
		ffmpegLog: queue.NewCirQueue[string](100),
	}
	d.buf = make([]byte, d.frameSize)

	d.cmd = exec.CommandContext(ctx, "ffmpeg", d.buildFFmpegArgs()...)
	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := d.cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := d.cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	d.reader = bufio.NewReaderSize(stdout, d.frameSize*2)
	d.wg.Go(func() { d.readStderr(stderr) })
	return &d, nil
}

func (d *Decoder) buildFFmpegArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nostdin",
		"-i", d.path,
		"-map", "0:v:0",
		"-vsync", "0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
}

// readStderr 读取 ffmpeg 的 stderr 输出用于日志记录
func (d *Decoder) readStderr(stderr io.Reader) {
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		d.ffmpegLog.Push(scan.Text())
	}
}

func (d *Decoder) Info() ProbeInfo {
	return d.info
}

func (d *Decoder) FrameRate() float64 {
	return d.info.FrameRate
}

func (d *Decoder) FrameSize() int {
	return d.frameSize
}

// Read 读取下一帧，流结束返回 io.EOF
// ffmpeg 异常退出时返回其错误与最近的日志
func (d *Decoder) Read() (*FrameData, error) {
	_, err := io.ReadFull(d.reader, d.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if werr := d.wait(); werr != nil {
			return nil, fmt.Errorf("ffmpeg exited: %w: %s", werr, strings.Join(d.Log(), "; "))
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("incomplete frame %d: %w", d.frameCount+1, err)
	default:
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}

	d.frameCount++
	return &FrameData{
		FrameNum: d.frameCount,
		Width:    d.info.Width,
		Height:   d.info.Height,
		Data:     d.buf,
	}, nil
}

// Skip 丢弃下一帧
func (d *Decoder) Skip() error {
	_, err := d.Read()
	return err
}

// Next 读取下一帧并转换为图像
func (d *Decoder) Next() (image.Image, error) {
	f, err := d.Read()
	if err != nil {
		return nil, err
	}
	return f.Image(), nil
}

func (d *Decoder) FrameCount() uint64 {
	return d.frameCount
}

func (d *Decoder) Log() []string {
	return d.ffmpegLog.Range()
}

func (d *Decoder) wait() error {
	d.waitOnce.Do(func() {
		d.wg.Wait()
		d.waitErr = d.cmd.Wait()
	})
	return d.waitErr
}

// Close 终止 ffmpeg 并回收进程，可重复调用
func (d *Decoder) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.cancel()
		done := make(chan struct{})
		go func() {
			_ = d.wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			if d.cmd.Process != nil {
				if kerr := d.cmd.Process.Kill(); kerr != nil {
					err = fmt.Errorf("failed to kill ffmpeg: %w", kerr)
				}
			}
			<-done
		}
	})
	return err
}

// Image 复制为 RGBA 图像
func (f *FrameData) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	n := min(f.Width*f.Height, len(f.Data)/3)
	for i := range n {
		img.Pix[i*4] = f.Data[i*3]
		img.Pix[i*4+1] = f.Data[i*3+1]
		img.Pix[i*4+2] = f.Data[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}
