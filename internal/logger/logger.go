package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 统一日志接口
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
}

// Options 日志初始化选项
type Options struct {
	Level   string   // debug/info/warn/error
	Writers []string // console/file
	File    string   // 文件写入路径，writer 含 file 时使用
}

type zlogger struct {
	zl zerolog.Logger
}

// New 创建 zerolog 实现，按配置组合控制台与滚动文件输出
func New(opts Options) Logger {
	var ws []io.Writer
	for _, w := range opts.Writers {
		switch w {
		case "console":
			ws = append(ws, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
		case "file":
			file := opts.File
			if file == "" {
				file = "cdprules.log"
			}
			ws = append(ws, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    50, // MB
				MaxBackups: 3,
				MaxAge:     14, // days
			})
		}
	}
	if len(ws) == 0 {
		ws = append(ws, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(ws...)).
		Level(parseLevel(opts.Level)).
		With().Timestamp().Logger()
	return &zlogger{zl: zl}
}

// NewNop 创建丢弃所有输出的日志器
func NewNop() Logger {
	return &zlogger{zl: zerolog.Nop()}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func fields(ev *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(k, kv[i+1])
	}
	return ev
}

func (l *zlogger) Debug(msg string, kv ...any) { fields(l.zl.Debug(), kv).Msg(msg) }
func (l *zlogger) Info(msg string, kv ...any)  { fields(l.zl.Info(), kv).Msg(msg) }
func (l *zlogger) Warn(msg string, kv ...any)  { fields(l.zl.Warn(), kv).Msg(msg) }

func (l *zlogger) Err(err error, msg string, kv ...any) {
	fields(l.zl.Error().Err(err), kv).Msg(msg)
}
