package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/moodline/internal/adapter/classifieradapter"
	"github.com/gowvp/moodline/internal/adapter/ffmpegadapter"
	"github.com/gowvp/moodline/internal/adapter/localfs"
	"github.com/gowvp/moodline/internal/adapter/minioadapter"
	"github.com/gowvp/moodline/internal/conf"
	"github.com/gowvp/moodline/internal/core/emotion"
	"github.com/gowvp/moodline/internal/core/emotion/store/emotiondb"
	"github.com/gowvp/moodline/internal/rpc"
	"github.com/gowvp/moodline/pkg/chart"
	"github.com/gowvp/moodline/pkg/deepface"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/system"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

// EmotionAPI 为 http 提供业务方法
type EmotionAPI struct {
	core      emotion.Core
	maxUpload int64
}

// NewEmotionStore 创建分析历史存储层
func NewEmotionStore(db *gorm.DB) emotion.Storer {
	return emotiondb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

// NewLocalStore 本地目录，相对路径基于程序所在目录
func NewLocalStore(bc *conf.Bootstrap) (*localfs.Store, error) {
	s := bc.Storage
	return localfs.NewStore(absDir(s.UploadDir), absDir(s.FrameDir), absDir(s.GraphDir), bc.Server.DiskUsageThreshold)
}

// NewArtifactStore 根据 storage.driver 选择产物存储
func NewArtifactStore(bc *conf.Bootstrap, local *localfs.Store) (emotion.ArtifactStore, error) {
	if bc.Storage.Driver != conf.StorageDriverMinIO {
		return local, nil
	}
	m := bc.Storage.MinIO
	store, err := minioadapter.NewStore(minioadapter.Config{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		UseSSL:    m.UseSSL,
		Bucket:    m.Bucket,
	}, local)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewClassifier 根据 classifier.driver 选择 DeepFace REST 或 gRPC
func NewClassifier(bc *conf.Bootstrap) (emotion.Classifier, func(), error) {
	cfg := bc.Classifier
	quality := bc.Analysis.JPEGQuality
	switch cfg.Driver {
	case conf.ClassifierDriverGRPC:
		cli, err := rpc.NewEmotionClient(cfg.Addr)
		if err != nil {
			return nil, nil, err
		}
		return classifieradapter.NewAdapter(cli, quality), func() { _ = cli.Close() }, nil
	default:
		engine := deepface.NewEngine().SetConfig(deepface.Config{URL: cfg.Addr, ImageField: cfg.ImageField})
		return classifieradapter.NewAdapter(&engine, quality), func() {}, nil
	}
}

func NewChartRenderer(bc *conf.Bootstrap) emotion.ChartRenderer {
	return chart.NewRenderer(bc.Analysis.ChartWidthInch, bc.Analysis.ChartHeightInch)
}

// NewEmotionCore 创建情绪分析核心服务
func NewEmotionCore(
	store emotion.Storer,
	bc *conf.Bootstrap,
	artifacts emotion.ArtifactStore,
	local *localfs.Store,
	cli emotion.Classifier,
	renderer emotion.ChartRenderer,
) emotion.Core {
	core := emotion.NewCore(store,
		emotion.WithArtifactStore(artifacts),
		emotion.WithDiskGuard(local),
		emotion.WithPruner(artifactPruner(artifacts, local)),
		emotion.WithVideoOpener(ffmpegadapter.NewOpener()),
		emotion.WithClassifier(cli, bc.Classifier.Timeout.Duration(), bc.Classifier.DetectorBackend),
		emotion.WithChartRenderer(renderer),
		emotion.WithSamplingInterval(bc.Analysis.SamplingInterval),
		emotion.WithJPEGQuality(bc.Analysis.JPEGQuality),
		emotion.WithPublicURL(bc.Server.HTTP.PublicURL),
	)
	go core.StartCleanupWorker(bc.Storage.RetainDays)
	return core
}

// artifactPruner 产物存储支持清理时使用它，否则只清理本地目录
func artifactPruner(artifacts emotion.ArtifactStore, local *localfs.Store) emotion.ArtifactPruner {
	if p, ok := artifacts.(emotion.ArtifactPruner); ok {
		return p
	}
	return local
}

func NewEmotionAPI(core emotion.Core, bc *conf.Bootstrap) EmotionAPI {
	return EmotionAPI{core: core, maxUpload: bc.Server.HTTP.MaxUploadMB << 20}
}

func RegisterEmotion(g gin.IRouter, api EmotionAPI, handler ...gin.HandlerFunc) {
	g.POST("/upload", append(handler, api.upload)...)
	g.GET("/graph/:filename", api.serveArtifact(emotion.KindGraph))
	g.GET("/frame/:filename", api.serveArtifact(emotion.KindFrame))

	group := g.Group("/analyses", handler...)
	group.GET("", web.WrapH(api.findRuns))
	group.GET("/:id", web.WrapH(api.getRun))
}

// upload 接收 multipart 字段 file，同步完成分析后返回时间线
func (a EmotionAPI) upload(c *gin.Context) {
	if a.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxUpload)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			web.Fail(c, reason.ErrBadRequest.SetMsg(fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit)))
			return
		}
		web.Fail(c, reason.ErrBadRequest.SetMsg("No file part"))
		return
	}
	if fh.Filename == "" {
		web.Fail(c, reason.ErrBadRequest.SetMsg("No selected file"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		web.Fail(c, reason.ErrServer.SetMsg(err.Error()))
		return
	}
	defer f.Close()

	out, err := a.core.Upload(c.Request.Context(), fh.Filename, f)
	if err != nil {
		web.Fail(c, toReason(err))
		return
	}
	c.JSON(http.StatusOK, out)
}

// serveArtifact 返回帧预览或图表，不存在时 404
func (a EmotionAPI) serveArtifact(kind emotion.ArtifactKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filename")
		obj, err := a.core.OpenArtifact(c.Request.Context(), kind, name)
		if err != nil {
			if errors.Is(err, emotion.ErrArtifactNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": "file not found"})
				return
			}
			slog.ErrorContext(c.Request.Context(), "open artifact", "kind", kind, "name", name, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": 1, "msg": err.Error()})
			return
		}
		defer obj.Close()
		c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, obj, nil)
	}
}

// findRuns 分页查询分析历史
func (a EmotionAPI) findRuns(c *gin.Context, in *emotion.FindRunInput) (any, error) {
	items, total, err := a.core.FindRuns(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a EmotionAPI) getRun(c *gin.Context, _ *struct{}) (*emotion.AnalysisRun, error) {
	return a.core.GetRun(c.Request.Context(), c.Param("id"))
}

// toReason 将领域错误转换为接口错误
func toReason(err error) error {
	switch {
	case errors.Is(err, emotion.ErrInvalidFilename),
		errors.Is(err, emotion.ErrVideoUnreadable),
		errors.Is(err, emotion.ErrInvalidFrameRate):
		return reason.ErrBadRequest.SetMsg(err.Error())
	case errors.Is(err, emotion.ErrInsufficientStorage),
		errors.Is(err, emotion.ErrArtifactPersist):
		return reason.ErrServer.SetMsg(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return reason.ErrServer.SetMsg("analysis canceled: " + err.Error())
	default:
		return reason.ErrServer.SetMsg(err.Error())
	}
}

func absDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(system.Getwd(), dir)
}
