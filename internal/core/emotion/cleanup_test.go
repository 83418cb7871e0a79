package emotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/stretchr/testify/require"
)

type pruneFunc func(context.Context, time.Time) (int, error)

func (f pruneFunc) Prune(ctx context.Context, before time.Time) (int, error) { return f(ctx, before) }

func TestCleanupExpired(t *testing.T) {
	now := time.Now()
	runs := &memRuns{runs: []*AnalysisRun{
		{ID: "old", CreatedAt: orm.Time{Time: now.AddDate(0, 0, -10)}},
		{ID: "new", CreatedAt: orm.Time{Time: now}},
	}}

	var got time.Time
	c := NewCore(runs, WithPruner(pruneFunc(func(_ context.Context, before time.Time) (int, error) {
		got = before
		return 3, nil
	})))

	cutoff := now.AddDate(0, 0, -7)
	files, deleted := c.cleanupExpired(context.Background(), cutoff)
	require.Equal(t, 3, files)
	require.EqualValues(t, 1, deleted)
	require.Equal(t, cutoff, got)
	require.Len(t, runs.runs, 1)
	require.Equal(t, "new", runs.runs[0].ID)
}

func TestCleanupExpiredPruneFailure(t *testing.T) {
	runs := &memRuns{runs: []*AnalysisRun{
		{ID: "old", CreatedAt: orm.Time{Time: time.Now().AddDate(0, 0, -10)}},
	}}
	c := NewCore(runs, WithPruner(pruneFunc(func(context.Context, time.Time) (int, error) {
		return 0, errors.New("permission denied")
	})))

	// 文件删除失败不影响记录清理
	files, deleted := c.cleanupExpired(context.Background(), time.Now())
	require.Zero(t, files)
	require.EqualValues(t, 1, deleted)
}

func TestCleanupWithoutStores(t *testing.T) {
	files, deleted := NewCore(nil).cleanupExpired(context.Background(), time.Now())
	require.Zero(t, files)
	require.Zero(t, deleted)

	// days <= 0 直接返回
	NewCore(nil).StartCleanupWorker(0)
}
