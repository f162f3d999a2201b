package writer

import (
	"io"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kochabx/sessionkit/errors"
)

// RotateMode 日志文件轮转策略
type RotateMode int

const (
	// RotateModeTime 按固定时间间隔切分
	RotateModeTime RotateMode = iota
	// RotateModeSize 按单文件大小上限切分
	RotateModeSize
)

func (m RotateMode) String() string {
	switch m {
	case RotateModeTime:
		return "time"
	case RotateModeSize:
		return "size"
	}
	return "unknown"
}

// RotateConfig 日志轮转配置
// 两种模式各用各的子配置，另一份被忽略
type RotateConfig struct {
	Mode             RotateMode
	Filepath         string
	Filename         string
	FileExt          string
	TimeRotateConfig TimeRotateConfig
	SizeRotateConfig SizeRotateConfig
}

// TimeRotateConfig 按时间轮转配置
type TimeRotateConfig struct {
	MaxAge       int // 日志保留时间(小时)
	RotationTime int // 轮转时间间隔(小时)
}

// SizeRotateConfig 按大小轮转配置
type SizeRotateConfig struct {
	MaxSize    int  // 单个日志文件最大大小(MB)
	MaxBackups int  // 保留的旧日志文件数量
	MaxAge     int  // 日志文件保留天数
	Compress   bool // 是否压缩旧日志文件
}

// File 按配置的轮转策略创建文件输出 writer
func File(config RotateConfig) (io.Writer, error) {
	switch config.Mode {
	case RotateModeTime:
		w, err := rotatelogs.New(
			config.pattern("%Y%m%d%H%M"),
			rotatelogs.WithLinkName(config.pattern("")),
			rotatelogs.WithMaxAge(time.Duration(config.TimeRotateConfig.MaxAge)*time.Hour),
			rotatelogs.WithRotationTime(time.Duration(config.TimeRotateConfig.RotationTime)*time.Hour),
		)
		if err != nil {
			return nil, errors.Storage("log: create time rotate writer: %v", err)
		}
		return w, nil
	case RotateModeSize:
		return &lumberjack.Logger{
			Filename:   config.pattern(""),
			MaxSize:    config.SizeRotateConfig.MaxSize,
			MaxBackups: config.SizeRotateConfig.MaxBackups,
			MaxAge:     config.SizeRotateConfig.MaxAge,
			Compress:   config.SizeRotateConfig.Compress,
		}, nil
	}
	return nil, errors.Invalid("log: unsupported rotate mode %v", config.Mode)
}

// pattern 拼出日志文件完整路径，stamp 非空时嵌入文件名与扩展名之间
func (c *RotateConfig) pattern(stamp string) string {
	name := c.Filename
	if stamp != "" {
		name += "." + stamp
	}
	return filepath.Join(c.Filepath, name+"."+c.FileExt)
}
