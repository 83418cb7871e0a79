package conf

import (
	"fmt"
	"time"
)

// Bootstrap 应用全部配置，对应 configs/config.toml
type Bootstrap struct {
	Server     Server     `toml:"server"`
	Data       Data       `toml:"data"`
	Analysis   Analysis   `toml:"analysis"`
	Storage    Storage    `toml:"storage"`
	Classifier Classifier `toml:"classifier"`
	Log        Log        `toml:"log"`
	Telemetry  Telemetry  `toml:"telemetry"`

	Debug        bool   `toml:"-" env:"MOODLINE_DEBUG"`
	BuildVersion string `toml:"-"`
	ConfigPath   string `toml:"-"`
}

type Server struct {
	HTTP HTTP `toml:"http"`
	// Debug 开启后 gin 使用 debug 模式
	Debug bool `toml:"debug" env:"MOODLINE_SERVER_DEBUG"`
	// DiskUsageThreshold 产物目录所在磁盘使用率超过该百分比时拒绝上传，0 表示不检查
	DiskUsageThreshold float64 `toml:"disk_usage_threshold" comment:"磁盘使用率阈值(%)，超过则拒绝上传，0 表示不检查" env:"MOODLINE_DISK_USAGE_THRESHOLD"`
}

type HTTP struct {
	Port int `toml:"port" env:"MOODLINE_HTTP_PORT"`
	// PublicURL 对外访问地址，用于拼接帧预览链接，如 http://localhost:5000
	PublicURL   string   `toml:"public_url" comment:"对外访问地址，用于拼接帧预览链接" env:"MOODLINE_PUBLIC_URL"`
	MaxUploadMB int64    `toml:"max_upload_mb" env:"MOODLINE_MAX_UPLOAD_MB"`
	Timeout     Duration `toml:"timeout" comment:"单次请求写超时，视频较长时需要调大"`
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	// Dsn 以 postgres/mysql 开头时使用对应驱动，否则视为 sqlite 文件路径
	Dsn             string   `toml:"dsn" comment:"postgres://... mysql://... 或 sqlite 文件路径" env:"MOODLINE_DATABASE_DSN"`
	MaxIdleConns    int32    `toml:"max_idle_conns"`
	MaxOpenConns    int32    `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

type Analysis struct {
	// SamplingInterval 每隔多少帧分析一帧
	SamplingInterval int `toml:"sampling_interval" comment:"每隔多少帧分析一帧" env:"MOODLINE_SAMPLING_INTERVAL"`
	JPEGQuality      int `toml:"jpeg_quality"`
	ChartWidthInch   int `toml:"chart_width_inch"`
	ChartHeightInch  int `toml:"chart_height_inch"`
}

const (
	StorageDriverLocal = "local"
	StorageDriverMinIO = "minio"
)

type Storage struct {
	Driver    string `toml:"driver" comment:"local 或 minio" env:"MOODLINE_STORAGE_DRIVER"`
	UploadDir string `toml:"upload_dir" env:"MOODLINE_UPLOAD_DIR"`
	FrameDir  string `toml:"frame_dir" env:"MOODLINE_FRAME_DIR"`
	GraphDir  string `toml:"graph_dir" env:"MOODLINE_GRAPH_DIR"`
	// RetainDays 本地文件与分析记录保留天数，0 表示永久保留
	RetainDays int   `toml:"retain_days" comment:"本地文件与分析记录保留天数，0 表示永久保留" env:"MOODLINE_RETAIN_DAYS"`
	MinIO      MinIO `toml:"minio"`
}

type MinIO struct {
	Endpoint  string `toml:"endpoint" env:"MOODLINE_MINIO_ENDPOINT"`
	AccessKey string `toml:"access_key" env:"MOODLINE_MINIO_ACCESS_KEY"`
	SecretKey string `toml:"secret_key" env:"MOODLINE_MINIO_SECRET_KEY"`
	UseSSL    bool   `toml:"use_ssl" env:"MOODLINE_MINIO_USE_SSL"`
	Bucket    string `toml:"bucket" env:"MOODLINE_MINIO_BUCKET"`
}

const (
	ClassifierDriverDeepFace = "deepface"
	ClassifierDriverGRPC     = "grpc"
)

type Classifier struct {
	Driver string `toml:"driver" comment:"deepface(HTTP API) 或 grpc" env:"MOODLINE_CLASSIFIER_DRIVER"`
	// Addr deepface 驱动为 http://host:port，grpc 驱动为 host:port
	Addr            string   `toml:"addr" env:"MOODLINE_CLASSIFIER_ADDR"`
	DetectorBackend string   `toml:"detector_backend" env:"MOODLINE_DETECTOR_BACKEND"`
	Timeout         Duration `toml:"timeout" comment:"单帧分析超时，超时视为该帧分析失败"`
	// ImageField deepface API 的图片字段名，旧版本为 img_path，新版本为 img
	ImageField string `toml:"image_field"`
}

type Log struct {
	Dir          string   `toml:"dir"`
	Level        string   `toml:"level" comment:"debug/info/warn/error" env:"MOODLINE_LOG_LEVEL"`
	MaxAge       Duration `toml:"max_age"`
	RotationTime Duration `toml:"rotation_time"`
}

type Telemetry struct {
	Enabled      bool    `toml:"enabled" env:"MOODLINE_TELEMETRY_ENABLED"`
	OTLPEndpoint string  `toml:"otlp_endpoint" env:"MOODLINE_OTLP_ENDPOINT"`
	ServiceName  string  `toml:"service_name"`
	SampleRate   float64 `toml:"sample_rate"`
}

// Validate 检查无法自动修正的配置
func (b *Bootstrap) Validate() error {
	if b.Analysis.SamplingInterval < 1 {
		return fmt.Errorf("analysis.sampling_interval must be >= 1, got %d", b.Analysis.SamplingInterval)
	}
	switch b.Storage.Driver {
	case StorageDriverLocal:
	case StorageDriverMinIO:
		if b.Storage.MinIO.Endpoint == "" || b.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("storage.minio endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", b.Storage.Driver)
	}
	switch b.Classifier.Driver {
	case ClassifierDriverDeepFace, ClassifierDriverGRPC:
	default:
		return fmt.Errorf("unknown classifier.driver %q", b.Classifier.Driver)
	}
	if b.Classifier.Addr == "" {
		return fmt.Errorf("classifier.addr is required")
	}
	return nil
}

// Duration 以字符串形式读写的时间间隔，如 "30s"
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
