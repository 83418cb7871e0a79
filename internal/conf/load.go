package conf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// DefaultConfig 默认配置，首次启动时会写入配置文件
func DefaultConfig() Bootstrap {
	return Bootstrap{
		Server: Server{
			HTTP: HTTP{
				Port:        5000,
				MaxUploadMB: 512,
				Timeout:     Duration(10 * time.Minute),
			},
			DiskUsageThreshold: 95,
		},
		Data: Data{
			Database: Database{
				Dsn:             "configs/data.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: Duration(6 * time.Hour),
				SlowThreshold:   Duration(200 * time.Millisecond),
			},
		},
		Analysis: Analysis{
			SamplingInterval: 30,
			JPEGQuality:      90,
			ChartWidthInch:   12,
			ChartHeightInch:  6,
		},
		Storage: Storage{
			Driver:    StorageDriverLocal,
			UploadDir: "uploads",
			FrameDir:  "frames",
			GraphDir:  "graphs",
			MinIO: MinIO{
				Bucket: "moodline",
			},
		},
		Classifier: Classifier{
			Driver:          ClassifierDriverDeepFace,
			Addr:            "http://127.0.0.1:5005",
			DetectorBackend: "mtcnn",
			Timeout:         Duration(30 * time.Second),
			ImageField:      "img_path",
		},
		Log: Log{
			Dir:          "logs",
			Level:        "info",
			MaxAge:       Duration(7 * 24 * time.Hour),
			RotationTime: Duration(24 * time.Hour),
		},
		Telemetry: Telemetry{
			OTLPEndpoint: "127.0.0.1:4317",
			ServiceName:  "moodline",
			SampleRate:   1,
		},
	}
}

// SetupConfig 读取配置文件，文件不存在时写入默认配置
// 文件之后再叠加 MOODLINE_* 环境变量
func SetupConfig(path string) (*Bootstrap, error) {
	bc := DefaultConfig()
	bc.ConfigPath = path

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := WriteConfig(&bc, path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(b, &bc); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := env.Parse(&bc); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := bc.Validate(); err != nil {
		return nil, err
	}
	return &bc, nil
}

// WriteConfig 将配置写回文件
func WriteConfig(bc *Bootstrap, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	b, err := toml.Marshal(bc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
