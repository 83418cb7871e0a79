package emotion

import (
	"context"
	"log/slog"
	"time"
)

// StartCleanupWorker 每天清理一次超过 days 天的分析记录与本地文件
// days <= 0 时不启动
func (c Core) StartCleanupWorker(days int) {
	if days <= 0 {
		slog.Info("analysis cleanup disabled", "days", days)
		return
	}
	slog.Info("analysis cleanup worker started", "retain_days", days)

	// 启动时先执行一次清理
	c.cleanupExpired(context.Background(), time.Now().AddDate(0, 0, -days))

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		c.cleanupExpired(context.Background(), time.Now().AddDate(0, 0, -days))
	}
}

// cleanupExpired 先删文件再删记录，任何一步失败只记录日志
func (c Core) cleanupExpired(ctx context.Context, cutoff time.Time) (files int, runs int64) {
	slog.Info("starting analysis cleanup", "cutoff_time", cutoff.Format(time.DateTime))

	if c.pruner != nil {
		n, err := c.pruner.Prune(ctx, cutoff)
		if err != nil {
			slog.Warn("prune artifacts", "err", err)
		}
		files = n
	}
	if c.store != nil {
		n, err := c.store.Run().DeleteBefore(ctx, cutoff)
		if err != nil {
			slog.Warn("delete expired runs", "err", err)
		}
		runs = n
	}

	slog.Info("analysis cleanup completed", "files_deleted", files, "runs_deleted", runs)
	return files, runs
}
