package emotion

import "errors"

var (
	// ErrVideoUnreadable 视频无法打开或一帧都无法解码，整个请求失败
	ErrVideoUnreadable = errors.New("video unreadable")
	// ErrInvalidFrameRate 帧率为 0 或无法获取，无法计算时间戳
	ErrInvalidFrameRate = errors.New("invalid frame rate")
	// ErrArtifactPersist 帧预览、图表或上传文件写入失败
	ErrArtifactPersist = errors.New("artifact persist failed")
	// ErrArtifactNotFound 请求的产物不存在
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrInsufficientStorage 产物目录所在磁盘空间不足
	ErrInsufficientStorage = errors.New("insufficient storage")
	// ErrInvalidFilename 上传文件名为空或包含路径
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrNoFace 分类器返回了空的检测列表
	ErrNoFace = errors.New("no face detected")
	// ErrMalformedResult 分类器返回结构无法识别
	ErrMalformedResult = errors.New("malformed classifier result")
	// ErrUnexpectedLabel 分类器返回了已知集合之外的情绪
	ErrUnexpectedLabel = errors.New("unexpected emotion label")
)
