package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/gowvp/moodline/internal/conf"
	"gorm.io/gorm"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewEmotionStore,
	NewLocalStore, NewArtifactStore,
	NewClassifier, NewChartRenderer,
	NewEmotionCore, NewEmotionAPI,
)

type Usecase struct {
	Conf *conf.Bootstrap
	DB   *gorm.DB
	Log  *slog.Logger

	EmotionAPI EmotionAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	cfg := uc.Conf.Server
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	// multipart 超过该大小的部分写入临时文件
	g.MaxMultipartMemory = 32 << 20

	setupRouter(g, uc) // 设置路由处理函数
	return g
}
