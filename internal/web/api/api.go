package api

import (
	"expvar"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gowvp/moodline/internal/metrics"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var startRuntime = time.Now()

func setupRouter(r *gin.Engine, uc *Usecase) {
	r.Use(
		// 格式化输出到控制台，然后记录到日志
		// 此处不做 recover，底层 http.server 也会 recover，但不会输出方便查看的格式
		gin.CustomRecovery(func(c *gin.Context, err any) {
			slog.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		metrics.HTTP(),
		web.Logger(
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/frame"),
			web.IgnorePrefix("/graph"),
			web.IgnorePrefix("/metrics"),
			web.IgnorePrefix("/health"),
		),
	)

	r.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Accept", "Content-Length", "Content-Type", "Accept-Language",
			"Origin", "Authorization", "Referer", "User-Agent",
			"Accept-Encoding", "Cache-Control", "X-Requested-With",
		},
		MaxAge: 12 * time.Hour,
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"msg": "来到了无人的荒漠"})
	})

	r.GET("/health", web.WrapH(uc.getHealth))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterEmotion(r, uc.EmotionAPI, gzip.Gzip(gzip.DefaultCompression))
}

type getHealthOutput struct {
	Version          string    `json:"version"`
	StartAt          time.Time `json:"start_at"`
	GitBranch        string    `json:"git_branch"`
	GitHash          string    `json:"git_hash"`
	StorageDriver    string    `json:"storage_driver"`
	ClassifierDriver string    `json:"classifier_driver"`
	SamplingInterval int       `json:"sampling_interval"`
}

func (uc *Usecase) getHealth(_ *gin.Context, _ *struct{}) (getHealthOutput, error) {
	return getHealthOutput{
		Version:          uc.Conf.BuildVersion,
		GitBranch:        expvarString("git_branch"),
		GitHash:          expvarString("git_hash"),
		StartAt:          startRuntime,
		StorageDriver:    uc.Conf.Storage.Driver,
		ClassifierDriver: uc.Conf.Classifier.Driver,
		SamplingInterval: uc.Conf.Analysis.SamplingInterval,
	}, nil
}

// expvarString 变量未发布时返回空字符串
func expvarString(name string) string {
	v := expvar.Get(name)
	if v == nil {
		return ""
	}
	return strings.Trim(v.String(), `"`)
}
