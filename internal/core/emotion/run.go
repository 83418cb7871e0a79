package emotion

import (
	"context"
	"log/slog"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/jinzhu/copier"
)

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// AnalysisRun 一次分析的摘要，仅用于历史查询，不影响分析结果
type AnalysisRun struct {
	ID               string   `gorm:"primaryKey;size:36" json:"id"`
	Filename         string   `gorm:"index;notNull;default:''" json:"filename"`
	FrameRate        float64  `gorm:"notNull;default:0" json:"frame_rate"`
	SamplingInterval int      `gorm:"notNull;default:0" json:"sampling_interval"`
	FramesDecoded    int      `gorm:"notNull;default:0" json:"frames_decoded"`
	Observations     int      `gorm:"notNull;default:0" json:"observations"`
	Failures         int      `gorm:"notNull;default:0" json:"failures"`
	GraphName        string   `gorm:"notNull;default:''" json:"graph_name"`
	Status           string   `gorm:"notNull;default:''" json:"status"`
	Error            string   `gorm:"notNull;default:''" json:"error"`
	DurationMs       int64    `gorm:"notNull;default:0" json:"duration_ms"`
	CreatedAt        orm.Time `gorm:"column:created_at;notNull;default:CURRENT_TIMESTAMP;index;comment:创建时间" json:"created_at"`
}

func (*AnalysisRun) TableName() string {
	return "analysis_runs"
}

// RunStorer 分析记录持久化
type RunStorer interface {
	Find(context.Context, *[]*AnalysisRun, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *AnalysisRun, ...orm.QueryOption) error
	Add(context.Context, *AnalysisRun) error
	// DeleteBefore 删除创建时间早于 t 的记录，返回删除条数
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// Storer data persistence
type Storer interface {
	Run() RunStorer
}

type FindRunInput struct {
	web.PagerFilter
	Filename string `form:"filename"`
	Status   string `form:"status"`
}

// runSummary 分析过程中收集的摘要
type runSummary struct {
	ID               string
	Filename         string
	FrameRate        float64
	SamplingInterval int
	FramesDecoded    int
	Observations     int
	Failures         int
	GraphName        string
	Status           string
	Error            string
	DurationMs       int64
}

// FindRuns 分页查询分析记录，按时间倒序
func (c Core) FindRuns(ctx context.Context, in *FindRunInput) ([]*AnalysisRun, int64, error) {
	if c.store == nil {
		return []*AnalysisRun{}, 0, nil
	}
	query := orm.NewQuery(2).OrderBy("created_at DESC")
	if in.Filename != "" {
		query.Where("filename = ?", in.Filename)
	}
	if in.Status != "" {
		query.Where("status = ?", in.Status)
	}

	items := make([]*AnalysisRun, 0, in.Limit())
	total, err := c.store.Run().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetRun Query a single object
func (c Core) GetRun(ctx context.Context, id string) (*AnalysisRun, error) {
	if c.store == nil {
		return nil, reason.ErrNotFound.Withf(`Get id[%s] run history disabled`, id)
	}
	var out AnalysisRun
	if err := c.store.Run().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%s] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%s] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// recordRun 写入失败只记录日志
func (c Core) recordRun(ctx context.Context, in *runSummary, start time.Time) {
	if c.store == nil {
		return
	}
	in.DurationMs = time.Since(start).Milliseconds()

	var out AnalysisRun
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	out.CreatedAt = orm.Time{Time: start}
	if err := c.store.Run().Add(context.WithoutCancel(ctx), &out); err != nil {
		slog.ErrorContext(ctx, "record analysis run", "id", out.ID, "err", err)
	}
}
