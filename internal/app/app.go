package app

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gowvp/moodline/internal/conf"
	"github.com/gowvp/moodline/internal/telemetry"
	"github.com/ixugo/goddd/pkg/system"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// Run 启动服务，直到收到退出信号
func Run(bc *conf.Bootstrap) error {
	log, clean, err := SetupLog(bc)
	if err != nil {
		return err
	}
	defer clean()

	expvar.NewString("version").Set(bc.BuildVersion)
	expvar.NewString("git_branch").Set(gitBranch)
	expvar.NewString("git_hash").Set(gitHash)
	expvar.NewString("build_time").Set(buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, bc.Telemetry, bc.BuildVersion)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("telemetry shutdown", "err", err)
		}
	}()

	handler, cleanUp, err := wireApp(bc, log)
	if err != nil {
		return err
	}
	defer cleanUp()

	svc := http.Server{
		Addr:              fmt.Sprintf(":%d", bc.Server.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// 上传后同步分析，写超时需要覆盖整个分析过程
		WriteTimeout: bc.Server.HTTP.Timeout.Duration(),
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("http server start", "port", bc.Server.HTTP.Port, "config", bc.ConfigPath)
		if err := svc.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return svc.Shutdown(ctx)
}

// 编译时通过 -ldflags 注入
var (
	gitBranch string
	gitHash   string
	buildTime string
)

// SetupLog 日志同时输出到控制台与按时间切割的文件
func SetupLog(bc *conf.Bootstrap) (*slog.Logger, func(), error) {
	dir := bc.Log.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(system.Getwd(), dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	rl, err := rotatelogs.New(
		filepath.Join(dir, "moodline_%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(dir, "moodline.log")),
		rotatelogs.WithMaxAge(bc.Log.MaxAge.Duration()),
		rotatelogs.WithRotationTime(bc.Log.RotationTime.Duration()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("rotatelogs: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, rl), &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLevel(bc.Log.Level),
	}))
	slog.SetDefault(log)
	return log, func() { _ = rl.Close() }, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
