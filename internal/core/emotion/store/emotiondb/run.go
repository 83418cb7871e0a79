package emotiondb

import (
	"context"
	"time"

	"github.com/gowvp/moodline/internal/core/emotion"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ emotion.RunStorer = Run{}

// Run Related business namespaces
type Run DB

// NewRun instance object
func NewRun(db *gorm.DB) Run {
	return Run{db: db}
}

// Find implements emotion.RunStorer.
func (d Run) Find(ctx context.Context, out *[]*emotion.AnalysisRun, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := d.db.WithContext(ctx).Model(new(emotion.AnalysisRun))
	for _, fn := range opts {
		db = fn(db)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil || total <= 0 {
		return total, err
	}
	return total, db.Offset(pager.Offset()).Limit(pager.Limit()).Find(out).Error
}

// Get implements emotion.RunStorer.
func (d Run) Get(ctx context.Context, model *emotion.AnalysisRun, opts ...orm.QueryOption) error {
	db := d.db.WithContext(ctx)
	for _, fn := range opts {
		db = fn(db)
	}
	return db.First(model).Error
}

// Add implements emotion.RunStorer.
func (d Run) Add(ctx context.Context, model *emotion.AnalysisRun) error {
	return d.db.WithContext(ctx).Create(model).Error
}

// DeleteBefore implements emotion.RunStorer.
func (d Run) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result := d.db.WithContext(ctx).Where("created_at < ?", t).Delete(new(emotion.AnalysisRun))
	return result.RowsAffected, result.Error
}
