package emotiondb

import (
	"github.com/gowvp/moodline/internal/core/emotion"
	"gorm.io/gorm"
)

var _ emotion.Storer = DB{}

// DB Related business namespaces
type DB struct {
	db *gorm.DB
}

// NewDB instance object
func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// Run Get business instance
func (d DB) Run() emotion.RunStorer {
	return Run(d)
}

// AutoMigrate sync database
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		new(emotion.AnalysisRun),
	); err != nil {
		panic(err)
	}
	return d
}
